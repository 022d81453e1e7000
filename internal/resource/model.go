package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
)

var (
	ErrNotFound        = apperror.New(http.StatusNotFound, "resource not found")
	ErrInvalidKind     = apperror.New(http.StatusBadRequest, "resource kind must be item or room")
	ErrEmptyName       = apperror.New(http.StatusUnprocessableEntity, "name cannot be empty")
	ErrInvalidQuantity = apperror.New(http.StatusUnprocessableEntity, "quantity must be at least 1")
	ErrInUse           = apperror.New(http.StatusConflict, "resource still has open requests")
)

// Kind tells items (tracked per physical unit) apart from rooms (counted only).
type Kind string

const (
	KindItem Kind = "item"
	KindRoom Kind = "room"
)

func (k Kind) Valid() bool {
	return k == KindItem || k == KindRoom
}

// TracksUnits reports whether each slot of capacity is backed by a physical unit.
func (k Kind) TracksUnits() bool {
	return k == KindItem
}

// Table is the table holding resources of this kind.
func (k Kind) Table() string {
	if k == KindRoom {
		return "rooms"
	}
	return "items"
}

// Resource is a borrowable item or a reservable room. Quantity is the number of
// bookings that may overlap at any instant.
type Resource struct {
	ID          string
	Kind        Kind
	Name        string
	Description string
	Quantity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter defines parameters for listing resources.
type Filter struct {
	Kind      Kind
	Keyword   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
