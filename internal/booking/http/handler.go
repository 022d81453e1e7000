package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/campus-borrow-backend/internal/auth"
	"github.com/nekogravitycat/campus-borrow-backend/internal/booking"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/response"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
)

var errForbidden = apperror.New(http.StatusForbidden, "You can only manage your own requests.")

// Handler serves the request endpoints of one resource kind.
type Handler struct {
	kind    resource.Kind
	service booking.Service
}

func NewHandler(kind resource.Kind, service booking.Service) *Handler {
	return &Handler{
		kind:    kind,
		service: service,
	}
}

func (h *Handler) label() string {
	if h.kind == resource.KindRoom {
		return "Room"
	}
	return "Item"
}

func (h *Handler) Submit(c *gin.Context) {
	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	resourceID, field := body.ItemID, "item_id"
	if h.kind == resource.KindRoom {
		resourceID, field = body.RoomID, "room_id"
	}
	if resourceID == "" {
		fields := apperror.FieldErrors{}
		fields.Add(field, "The "+field+" field is required.")
		response.Error(c, fields.Err())
		return
	}

	r, err := h.service.Submit(c.Request.Context(), booking.SubmitRequest{
		Kind:         h.kind,
		ResourceID:   resourceID,
		Form:         body.Form,
		SessionEmail: auth.GetUserEmail(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewRequestResponse(r))
}

func (h *Handler) List(c *gin.Context) {
	var req ListRequestsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}
	req.Normalize()

	filter := booking.Filter{
		Kind:       h.kind,
		ResourceID: req.ResourceID,
		BorrowerID: strings.TrimSpace(req.BorrowerID),
		Email:      strings.TrimSpace(req.Email),
		Returned:   req.Returned,
		Status:     booking.Status(req.Status),
		Page:       req.Page,
		PageSize:   req.PageSize,
		SortOrder:  strings.ToUpper(req.SortOrder),
	}
	if req.DateFrom != "" {
		d, _ := schedule.ParseDate(req.DateFrom)
		filter.DateFrom = &d
	}
	if req.DateTo != "" {
		d, _ := schedule.ParseDate(req.DateTo)
		filter.DateTo = &d
	}

	// Students only see their own requests
	if auth.GetUserRole(c) != auth.RoleStaff {
		filter.Email = auth.GetUserEmail(c)
	}

	requests, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]RequestResponse, len(requests))
	for i, r := range requests {
		items[i] = NewRequestResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), h.kind, req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !canManage(c, r) {
		response.Error(c, errForbidden)
		return
	}

	c.JSON(http.StatusOK, NewRequestResponse(r))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	var body UpdateStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	r, err := h.service.UpdateStatus(c.Request.Context(), h.kind, uri.ID, booking.Status(body.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRequestResponse(r))
}

func (h *Handler) MarkReturned(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	r, err := h.service.MarkReturned(c.Request.Context(), h.kind, req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ReturnResponse{
		Message:  h.label() + " marked as returned.",
		ID:       r.ID,
		Returned: r.Returned,
	})
}

func (h *Handler) MarkOverdue(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	r, created, err := h.service.MarkOverdue(c.Request.Context(), h.kind, req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	msg := "Overdue notification already sent."
	if created {
		msg = "Overdue notification created."
	}
	c.JSON(http.StatusOK, OverdueResponse{Message: msg, ID: r.ID, Notified: created})
}

func (h *Handler) Cancel(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	ctx := c.Request.Context()
	if auth.GetUserRole(c) != auth.RoleStaff {
		r, err := h.service.GetByID(ctx, h.kind, req.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !canManage(c, r) {
			response.Error(c, errForbidden)
			return
		}
	}

	if err := h.service.Cancel(ctx, h.kind, req.ID); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, h.label()+" request cancelled.")
}

// canManage reports whether the session may see or cancel r: staff always,
// students only for requests made under their own email.
func canManage(c *gin.Context, r *booking.Request) bool {
	if auth.GetUserRole(c) == auth.RoleStaff {
		return true
	}
	email := auth.GetUserEmail(c)
	return email != "" && r.Email != nil && strings.EqualFold(*r.Email, email)
}

func (h *Handler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	var q AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	slot, err := schedule.NewSlot(q.Date, q.TimeIn, q.TimeOut)
	if err != nil {
		response.Error(c, booking.SlotError(err))
		return
	}

	a, err := h.service.CheckAvailability(c.Request.Context(), h.kind, uri.ID, slot)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, AvailabilityResponse{
		Available: a.Available,
		Remaining: a.Remaining,
		Total:     a.Total,
	})
}

// ScanHandler triggers the overdue sweep on demand.
type ScanHandler struct {
	service booking.Service
}

func NewScanHandler(service booking.Service) *ScanHandler {
	return &ScanHandler{service: service}
}

func (h *ScanHandler) Scan(c *gin.Context) {
	report, err := h.service.ScanOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ScanResponse{
		Overdue:   report.Overdue,
		Notified:  report.Notified,
		SMSSent:   report.SMSSent,
		SMSFailed: report.SMSFailed,
	})
}
