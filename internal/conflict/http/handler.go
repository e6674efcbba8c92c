package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/response"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

// Checker binds a booking kind to its window loader and duration rules.
type Checker struct {
	Loader   window.Loader
	Kind     conflict.ResourceKind
	Rounding conflict.RoundingMode
}

type Handler struct {
	checkers map[string]Checker
	log      *logger.Logger
}

// NewHandler takes one Checker per accepted "kind" value.
func NewHandler(checkers map[string]Checker, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{checkers: checkers, log: log}
}

// Check evaluates a proposed slot without persisting anything.
func (h *Handler) Check(c *gin.Context) {
	var body CheckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	checker, ok := h.checkers[body.Kind]
	if !ok {
		response.BadRequest(c, "unsupported kind", nil)
		return
	}

	hours, err := conflict.ComputeDuration(body.StartTime, body.EndTime, checker.Rounding)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := window.Check(c.Request.Context(), checker.Loader, checker.Kind, body.Candidate())
	if err != nil {
		if errors.Is(err, window.ErrFetchFailure) {
			h.log.Warn("conflict check could not load window",
				"kind", body.Kind, "resource_id", body.ResourceID, "error", err)
			c.JSON(http.StatusServiceUnavailable, UnknownResponse{
				Status: StatusUnknown,
				Error:  "could not load existing bookings, try again",
			})
			return
		}
		response.Error(c, err)
		return
	}

	resp := CheckResponse{
		Status:        StatusClear,
		HasConflict:   result.HasConflict,
		Conflicts:     result.Conflicts,
		DurationHours: hours,
	}
	if resp.Conflicts == nil {
		resp.Conflicts = []conflict.Booking{}
	}
	if result.HasConflict {
		resp.Status = StatusConflict
	}
	c.JSON(http.StatusOK, resp)
}
