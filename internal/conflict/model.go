package conflict

import (
	"net/http"

	"github.com/nekogravitycat/driving-school-backend/internal/pkg/apperror"
)

var (
	ErrInvalidFormat = apperror.New(http.StatusBadRequest, "time must be in HH:MM format")
	ErrInvalidRange  = apperror.New(http.StatusBadRequest, "end time must be after start time")
)

// Status is the lifecycle state of a booking. Bookings without a lifecycle
// (vehicle reservations) leave it empty.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Booking is a lesson or vehicle reservation occupying a resource on a date.
type Booking struct {
	ID         string `json:"id"`
	ResourceID string `json:"resource_id"`
	Date       string `json:"date"`       // Format: yyyy-MM-dd
	StartTime  string `json:"start_time"` // Format: HH:MM
	EndTime    string `json:"end_time"`   // Format: HH:MM
	Status     Status `json:"status,omitempty"`
}

// Candidate is the not-yet-persisted booking under validation.
// ExcludeID is the booking's own id when editing.
type Candidate struct {
	ResourceID string
	Date       string
	StartTime  string
	EndTime    string
	ExcludeID  string
}

// Result is the outcome of evaluating a candidate.
type Result struct {
	HasConflict bool      `json:"has_conflict"`
	Conflicts   []Booking `json:"conflicts"`
}

// Error carries the bookings that block a candidate. It unwraps to the
// module-specific conflict error it was created with.
type Error struct {
	Err       error
	Conflicts []Booking
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Details exposes the conflicting bookings in error responses.
func (e *Error) Details() any {
	return map[string]any{"conflicts": e.Conflicts}
}
