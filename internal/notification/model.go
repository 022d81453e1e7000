package notification

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
)

var (
	ErrNotFound      = apperror.New(http.StatusNotFound, "Notification not found")
	ErrEmailRequired = apperror.New(http.StatusBadRequest, "notification requires a recipient email")
)

type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

// Action types. Overdue actions are created at most once per (email, action, related id).
const (
	ActionItemRequest  = "item_request"
	ActionRoomRequest  = "room_request"
	ActionCancelItem   = "cancel_item"
	ActionCancelRoom   = "cancel_room"
	ActionItemReturned = "item_returned"
	ActionRoomReturned = "room_returned"
	ActionOverdueItem  = "overdue_item"
	ActionOverdueRoom  = "overdue_room"
)

// ListLimit caps how many notifications a user sees.
const ListLimit = 50

type Notification struct {
	ID         string
	UserEmail  string
	Type       Type
	Title      string
	Message    string
	ActionType string
	RelatedID  *string
	IsRead     bool
	ReadAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func newNotification(email string, typ Type, title, message, action, relatedID string) *Notification {
	n := &Notification{
		UserEmail:  email,
		Type:       typ,
		Title:      title,
		Message:    message,
		ActionType: action,
	}
	if relatedID != "" {
		n.RelatedID = &relatedID
	}
	return n
}

// RequestSubmitted is sent after an item or room request is admitted.
func RequestSubmitted(email string, kind resource.Kind, name, requestID string) *Notification {
	room := kind == resource.KindRoom
	if room {
		return newNotification(email, TypeSuccess, "Room Request Submitted!",
			fmt.Sprintf("Your booking for %s has been submitted successfully.", name),
			ActionRoomRequest, requestID)
	}
	return newNotification(email, TypeSuccess, "Item Request Submitted!",
		fmt.Sprintf("Your request for %s has been submitted successfully.", name),
		ActionItemRequest, requestID)
}

// RequestCancelled is sent after a request is cancelled.
func RequestCancelled(email string, kind resource.Kind, name, requestID string) *Notification {
	room := kind == resource.KindRoom
	action, noun := ActionCancelItem, "item"
	if room {
		action, noun = ActionCancelRoom, "room"
	}
	return newNotification(email, TypeSuccess, "Request Cancelled!",
		fmt.Sprintf("Your %s request for %s has been cancelled successfully.", noun, name),
		action, requestID)
}

// RequestReturned is sent when staff mark a request returned.
func RequestReturned(email string, kind resource.Kind, name, requestID string) *Notification {
	room := kind == resource.KindRoom
	action := ActionItemReturned
	message := fmt.Sprintf("%s has been returned. Thank you!", name)
	if room {
		action = ActionRoomReturned
		message = fmt.Sprintf("Your booking for %s has been closed. Thank you!", name)
	}
	return newNotification(email, TypeSuccess, "Request Returned", message, action, requestID)
}

// RequestOverdue warns the borrower that the booking window has passed.
func RequestOverdue(email string, kind resource.Kind, name, requestID string) *Notification {
	room := kind == resource.KindRoom
	if room {
		return newNotification(email, TypeWarning, "Room Booking Overdue",
			fmt.Sprintf("Your booking for %s has ended. Please vacate the room and check out with the office.", name),
			ActionOverdueRoom, requestID)
	}
	return newNotification(email, TypeWarning, "Item Overdue",
		fmt.Sprintf("%s is overdue. Please return it as soon as possible.", name),
		ActionOverdueItem, requestID)
}
