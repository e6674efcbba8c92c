package draft

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/driving-school-backend/internal/recheck"
)

var (
	ErrNotFound    = apperror.New(http.StatusNotFound, "draft not found")
	ErrInvalidKind = apperror.New(http.StatusBadRequest, "kind must be lesson or reservation")
	ErrTooMany     = apperror.New(http.StatusTooManyRequests, "too many open drafts, try again later")
	ErrClosed      = apperror.New(http.StatusServiceUnavailable, "drafts are unavailable while the server shuts down")
)

// Kind names what a draft will become once submitted.
type Kind string

const (
	KindLesson      Kind = "lesson"
	KindReservation Kind = "reservation"
)

// Draft is an in-progress booking form held by the server. Its Snapshot is
// the latest conflict answer for the form's current values.
type Draft struct {
	ID        string
	Kind      Kind
	ExcludeID string // Booking being edited, empty for new bookings
	Snapshot  recheck.Snapshot
	CreatedAt time.Time
	ExpiresAt time.Time
}

// FieldsPatch carries the form values a client changed. Nil keeps the current value.
type FieldsPatch struct {
	ResourceID *string
	Date       *string
	StartTime  *string
	EndTime    *string
}

// Apply returns f with the patch applied.
func (p FieldsPatch) Apply(f recheck.Fields) recheck.Fields {
	if p.ResourceID != nil {
		f.ResourceID = *p.ResourceID
	}
	if p.Date != nil {
		f.Date = *p.Date
	}
	if p.StartTime != nil {
		f.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		f.EndTime = *p.EndTime
	}
	return f
}
