package http

import (
	"time"

	"github.com/nekogravitycat/campus-borrow-backend/internal/booking"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
)

type ResourceTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UnitTag struct {
	ID       string `json:"id"`
	UnitCode string `json:"unit_code"`
	Status   string `json:"status,omitempty"`
}

type RequestResponse struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Resource   ResourceTag    `json:"resource"`
	Unit       *UnitTag       `json:"unit"`
	Name       string         `json:"name"`
	BorrowerID string         `json:"borrower_id"`
	Year       string         `json:"year"`
	Department string         `json:"department"`
	Course     string         `json:"course"`
	Email      *string        `json:"email"`
	Mobile     *string        `json:"mobile"`
	Date       string         `json:"date"`
	TimeIn     schedule.Clock `json:"time_in"`
	TimeOut    schedule.Clock `json:"time_out"`
	Status     string         `json:"status,omitempty"`
	Returned   bool           `json:"returned"`
	ReturnedAt *time.Time     `json:"returned_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func NewRequestResponse(r *booking.Request) RequestResponse {
	resp := RequestResponse{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Resource:   ResourceTag{ID: r.ResourceID},
		Name:       r.Name,
		BorrowerID: r.BorrowerID,
		Year:       r.Year,
		Department: r.Department,
		Course:     r.Course,
		Email:      r.Email,
		Mobile:     r.Mobile,
		Date:       r.Slot.Date.Format(schedule.DateLayout),
		TimeIn:     r.Slot.TimeIn,
		TimeOut:    r.Slot.TimeOut,
		Status:     string(r.Status),
		Returned:   r.Returned,
		ReturnedAt: r.ReturnedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Resource != nil {
		resp.Resource.Name = r.Resource.Name
	}
	if r.Unit != nil {
		resp.Unit = &UnitTag{ID: r.Unit.ID, UnitCode: r.Unit.Code, Status: string(r.Unit.Status)}
	}
	return resp
}

// SubmitRequest carries item_id for item requests and room_id for room requests.
type SubmitRequest struct {
	ItemID string `json:"item_id" binding:"omitempty,uuid"`
	RoomID string `json:"room_id" binding:"omitempty,uuid"`
	booking.Form
}

type ListRequestsRequest struct {
	request.ListParams
	ResourceID string `form:"resource_id" binding:"omitempty,uuid"`
	BorrowerID string `form:"borrower_id" binding:"omitempty,max=255"`
	Email      string `form:"email" binding:"omitempty,email"`
	Returned   *bool  `form:"returned"`
	Status     string `form:"status" binding:"omitempty,oneof=pending approved rejected cancelled"`
	DateFrom   string `form:"date_from" binding:"omitempty,ymd"`
	DateTo     string `form:"date_to" binding:"omitempty,ymd"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending approved rejected cancelled"`
}

type AvailabilityQuery struct {
	Date    string `form:"date" binding:"required,ymd"`
	TimeIn  string `form:"time_in" binding:"required,hhmm"`
	TimeOut string `form:"time_out" binding:"required,hhmm"`
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
	Remaining int  `json:"remaining"`
	Total     int  `json:"total_qty"`
}

type ReturnResponse struct {
	Message  string `json:"message"`
	ID       string `json:"id"`
	Returned bool   `json:"returned"`
}

type OverdueResponse struct {
	Message  string `json:"message"`
	ID       string `json:"id"`
	Notified bool   `json:"notified"`
}

type ScanResponse struct {
	Overdue   int `json:"overdue"`
	Notified  int `json:"notified"`
	SMSSent   int `json:"sms_sent"`
	SMSFailed int `json:"sms_failed"`
}
