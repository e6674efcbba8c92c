package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/driving-school-backend/internal/draft"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/request"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/response"
)

type Handler struct {
	service draft.Service
}

func NewHandler(service draft.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateDraftBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	d, err := h.service.Create(c.Request.Context(), draft.Kind(body.Kind), body.ExcludeID, body.Patch())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewDraftResponse(d))
}

// Get returns the draft. With ?wait= it long-polls until the version moves
// past ?after_version= or the wait elapses.
func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid UUID", err)
		return
	}
	var q GetDraftRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	var (
		d   *draft.Draft
		err error
	)
	if q.Wait > 0 {
		wait := min(q.Wait, maxWait)
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		d, err = h.service.Wait(ctx, uri.ID, q.AfterVersion)
	} else {
		d, err = h.service.Get(c.Request.Context(), uri.ID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewDraftResponse(d))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid UUID", err)
		return
	}
	var body FieldsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	d, err := h.service.Update(c.Request.Context(), uri.ID, body.Patch())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewDraftResponse(d))
}

func (h *Handler) Delete(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid UUID", err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), uri.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
