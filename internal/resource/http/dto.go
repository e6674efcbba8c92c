package http

import (
	"strings"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/pkg/request"
	"github.com/nekogravitycat/driving-school-backend/internal/resource"
)

type ListResourcesRequest struct {
	request.ListParams
	ActiveOnly bool `form:"active_only"`
}

func (r *ListResourcesRequest) Filter(kind resource.Kind) resource.Filter {
	r.Normalize()
	return resource.Filter{
		Kind:       kind,
		ActiveOnly: r.ActiveOnly,
		Page:       r.Page,
		PageSize:   r.PageSize,
		SortOrder:  strings.ToUpper(r.SortOrder),
	}
}

type ResourceResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewResourceResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Name:      r.Name,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}
