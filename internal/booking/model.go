package booking

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "request not found")
	ErrNotOverdue         = apperror.New(http.StatusConflict, "request is not overdue")
	ErrNoEmail            = apperror.New(http.StatusBadRequest, "request has no email address to notify")
	ErrInvalidStatus      = apperror.New(http.StatusUnprocessableEntity, "status must be one of pending, approved, rejected, cancelled")
	ErrStatusNotSupported = apperror.New(http.StatusBadRequest, "item requests have no status")
	ErrAlreadyReturned    = apperror.New(http.StatusConflict, "request has already been returned")

	// ErrCapacityExceeded is wrapped by every capacity rejection; match it with errors.Is.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// capacityExceeded builds the user-facing rejection for a fully booked resource.
func capacityExceeded(res *resource.Resource) error {
	msg := fmt.Sprintf("%s is already fully booked during the selected time slot.", res.Name)
	if res.Kind == resource.KindRoom {
		msg = fmt.Sprintf("%s is fully booked for the selected time range.", res.Name)
	}
	return apperror.Wrap(ErrCapacityExceeded, http.StatusUnprocessableEntity, msg)
}

// Status is the approval state of a room request. Item requests have none.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Occupies reports whether a room request in this status holds capacity.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusApproved
}

// Request is a booking of one resource for one slot.
type Request struct {
	ID         string
	Kind       resource.Kind
	ResourceID string
	UnitID     *string

	Name       string
	BorrowerID string
	Year       string
	Department string
	Course     string
	Email      *string
	Mobile     *string

	Slot   schedule.Slot
	Status Status

	Returned         bool
	ReturnedAt       *time.Time
	OverdueSMSSentAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Resource *resource.Resource
	Unit     *unit.Unit
}

// Occupies reports whether the request still counts against the resource's capacity.
func (r *Request) Occupies() bool {
	if r.Returned {
		return false
	}
	if r.Kind == resource.KindRoom {
		return r.Status.Occupies()
	}
	return true
}

// IsOverdue reports whether the slot ended before now and the request is still open.
func (r *Request) IsOverdue(now time.Time, loc *time.Location) bool {
	return r.Occupies() && r.Slot.EndedBefore(now, loc)
}

func (r *Request) resourceName() string {
	if r.Resource != nil {
		return r.Resource.Name
	}
	return "the " + string(r.Kind)
}

// Availability is the remaining capacity of a resource for one slot.
type Availability struct {
	Available bool
	Remaining int
	Total     int
}

// Filter defines parameters for listing requests of one kind.
type Filter struct {
	Kind       resource.Kind
	ResourceID string
	BorrowerID string
	Email      string
	Returned   *bool
	Status     Status
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortOrder  string
}

// ScanReport summarizes one overdue sweep.
type ScanReport struct {
	Overdue   int
	Notified  int
	SMSSent   int
	SMSFailed int
}
