package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/response"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
)

// Handler serves the CRUD endpoints of one resource kind.
type Handler struct {
	kind    resource.Kind
	service resource.Service
}

func NewHandler(kind resource.Kind, service resource.Service) *Handler {
	return &Handler{
		kind:    kind,
		service: service,
	}
}

func (h *Handler) List(c *gin.Context) {
	var req ListResourcesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}
	req.Normalize()

	filter := resource.Filter{
		Kind:      h.kind,
		Keyword:   strings.TrimSpace(req.Keyword),
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: strings.ToUpper(req.SortOrder),
	}

	resources, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ResourceResponse, len(resources))
	for i, r := range resources {
		items[i] = NewResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	res, err := h.service.Create(c.Request.Context(), resource.CreateRequest{
		Kind:        h.kind,
		Name:        body.Name,
		Description: body.Description,
		Quantity:    body.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(res))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	res, err := h.service.GetByID(c.Request.Context(), h.kind, req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	res, err := h.service.Update(c.Request.Context(), h.kind, uri.ID, resource.UpdateRequest{
		Name:        body.Name,
		Description: body.Description,
		Quantity:    body.Quantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(res))
}

func (h *Handler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	if err := h.service.Delete(c.Request.Context(), h.kind, req.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
