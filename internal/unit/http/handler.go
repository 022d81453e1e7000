package http

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/response"
	resourcehttp "github.com/nekogravitycat/campus-borrow-backend/internal/resource/http"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
)

type Handler struct {
	service unit.Service
}

func NewHandler(service unit.Service) *Handler {
	return &Handler{service: service}
}

// ListByItem returns every unit of an item together with its status breakdown.
func (h *Handler) ListByItem(c *gin.Context) {
	var req ItemIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	units, counts, err := h.service.ListByItem(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]UnitResponse, len(units))
	for i, u := range units {
		items[i] = NewUnitResponse(u)
	}

	c.JSON(http.StatusOK, UnitListResponse{
		Items: items,
		Counts: CountsResponse{
			Total:       counts.Total,
			Available:   counts.Available,
			Borrowed:    counts.Borrowed,
			Maintenance: counts.Maintenance,
		},
	})
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

	u, err := h.service.SetStatus(c.Request.Context(), uri.ID, unit.Status(body.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewUnitResponse(u))
}

// ServeQR streams the PNG label of a unit.
func (h *Handler) ServeQR(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	stream, err := h.service.OpenQR(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "image/png")
	c.Header("Content-Disposition", "inline; filename=\""+uri.ID+".png\"")

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, stream); err != nil {
		zap.L().Warn("qr label stream interrupted", zap.String("unit_id", uri.ID), zap.Error(err))
	}
}

// DownloadQRArchive sends every label of an item as one ZIP.
func (h *Handler) DownloadQRArchive(c *gin.Context) {
	var req ItemIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	buf := new(bytes.Buffer)
	if err := h.service.WriteQRArchive(c.Request.Context(), req.ID, buf); err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\"item_"+req.ID+"_qrcodes.zip\"")
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// Scan resolves a code read from a QR label.
func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	u, item, err := h.service.Scan(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ScanResponse{
		Unit: NewUnitResponse(u),
		Item: resourcehttp.NewResponse(item),
	})
}
