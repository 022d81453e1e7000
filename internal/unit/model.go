package unit

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
)

var (
	ErrNotFound                   = apperror.New(http.StatusNotFound, "unit not found")
	ErrUnitNotAvailable           = apperror.New(http.StatusConflict, "unit is not available")
	ErrUnitBorrowed               = apperror.New(http.StatusConflict, "unit is currently borrowed")
	ErrInsufficientAvailableUnits = apperror.New(http.StatusConflict, "not enough available units to remove; some units are currently borrowed")
	ErrInvalidStatus              = apperror.New(http.StatusUnprocessableEntity, "status must be available or maintenance")
	ErrInvalidCount               = apperror.New(http.StatusUnprocessableEntity, "unit count must be positive")
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusBorrowed    Status = "borrowed"
	StatusMaintenance Status = "maintenance"
)

// Unit is one physical copy of an item, identified by the code printed on its QR label.
type Unit struct {
	ID        string
	ItemID    string
	Code      string
	QRPath    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counts breaks an item's units down by status.
// Total always equals Available + Borrowed + Maintenance.
type Counts struct {
	Total       int
	Available   int
	Borrowed    int
	Maintenance int
}

// qrPath is where the label for a unit code is stored.
func qrPath(itemID, code string) string {
	return "qrcodes/" + itemID + "/" + code + ".png"
}
