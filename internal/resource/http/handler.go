package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/driving-school-backend/internal/pkg/request"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/response"
	"github.com/nekogravitycat/driving-school-backend/internal/resource"
)

type Handler struct {
	service resource.Service
}

func NewHandler(service resource.Service) *Handler {
	return &Handler{service: service}
}

// List returns a gin handler listing resources of one kind.
func (h *Handler) List(kind resource.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListResourcesRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			response.BadRequest(c, "invalid query parameters", err)
			return
		}

		filter := req.Filter(kind)
		items, total, err := h.service.List(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}

		resp := make([]ResourceResponse, len(items))
		for i, r := range items {
			resp[i] = NewResourceResponse(r)
		}

		c.JSON(http.StatusOK, response.NewPageResponse(resp, filter.Page, filter.PageSize, total))
	}
}

// Get returns a gin handler fetching one resource of the given kind.
func (h *Handler) Get(kind resource.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uri request.ByIDRequest
		if err := c.ShouldBindUri(&uri); err != nil {
			response.BadRequest(c, "invalid UUID", err)
			return
		}

		r, err := h.service.GetByID(c.Request.Context(), kind, uri.ID)
		if err != nil {
			response.Error(c, err)
			return
		}

		c.JSON(http.StatusOK, NewResourceResponse(r))
	}
}
