package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/pkg/apperror"
)

var (
	ErrNotFound    = apperror.New(http.StatusNotFound, "resource not found")
	ErrInvalidKind = apperror.New(http.StatusBadRequest, "invalid resource kind")
	ErrInactive    = apperror.New(http.StatusUnprocessableEntity, "resource is not active")
)

// Kind identifies what is being booked.
type Kind string

const (
	KindInstructor Kind = "instructor"
	KindVehicle    Kind = "vehicle"
)

func (k Kind) Valid() bool {
	return k == KindInstructor || k == KindVehicle
}

// Resource is a contended entity a booking occupies: an instructor or a vehicle.
// Records are maintained by the back office; this service only reads them.
type Resource struct {
	ID        string
	Kind      Kind
	Name      string // Instructor full name or vehicle plate number
	IsActive  bool
	CreatedAt time.Time
}

// Filter defines parameters for listing resources.
type Filter struct {
	Kind       Kind
	ActiveOnly bool
	Page       int
	PageSize   int
	SortOrder  string
}
