package http

import (
	"time"

	resourcehttp "github.com/nekogravitycat/campus-borrow-backend/internal/resource/http"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
)

type UnitResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	UnitCode  string    `json:"unit_code"`
	Status    string    `json:"status"`
	QRURL     string    `json:"qr_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUnitResponse(u *unit.Unit) UnitResponse {
	return UnitResponse{
		ID:        u.ID,
		ItemID:    u.ItemID,
		UnitCode:  u.Code,
		Status:    string(u.Status),
		QRURL:     "/v1/units/" + u.ID + "/qr",
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type CountsResponse struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Borrowed    int `json:"borrowed"`
	Maintenance int `json:"maintenance"`
}

type UnitListResponse struct {
	Items  []UnitResponse `json:"items"`
	Counts CountsResponse `json:"counts"`
}

type ScanResponse struct {
	Unit UnitResponse                  `json:"unit"`
	Item resourcehttp.ResourceResponse `json:"item"`
}

type ItemIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type ScanRequest struct {
	Code string `uri:"code" binding:"required,max=64"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=available maintenance"`
}
