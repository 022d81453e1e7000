package http

import (
	"time"

	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
)

type ResourceResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Quantity    int       `json:"qty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Name:        r.Name,
		Description: r.Description,
		Quantity:    r.Quantity,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type ListResourcesRequest struct {
	request.ListParams
	Keyword string `form:"keyword" binding:"omitempty,max=255"`
	SortBy  string `form:"sort_by" binding:"omitempty,oneof=created_at name quantity"`
}

type CreateRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description" binding:"omitempty,max=2000"`
	Quantity    int    `json:"qty" binding:"required,min=1"`
}

type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Quantity    *int    `json:"qty" binding:"omitempty,min=1"`
}
