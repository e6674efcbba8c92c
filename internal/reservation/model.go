package reservation

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/apperror"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "reservation not found")
	ErrTimeConflict       = apperror.New(http.StatusConflict, "vehicle is already reserved for this time")
	ErrConflictUnknown    = apperror.New(http.StatusServiceUnavailable, "could not verify vehicle availability, try again")
	ErrVehicleNotFound    = apperror.New(http.StatusNotFound, "vehicle not found")
	ErrVehicleInactive    = apperror.New(http.StatusUnprocessableEntity, "vehicle is not active")
	ErrInstructorNotFound = apperror.New(http.StatusNotFound, "instructor not found")
	ErrInvalidDateRange   = apperror.New(http.StatusBadRequest, "date_from must not be after date_to")
)

// Reservation blocks a vehicle for a time slot, for lessons, exams or maintenance.
type Reservation struct {
	ID           string
	VehicleID    string
	InstructorID *string // Optional
	Date         string  // Format: yyyy-MM-dd
	StartTime    string  // Format: HH:MM
	EndTime      string  // Format: HH:MM
	Purpose      string
	Hours        float64 // Display only
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Booking projects the reservation onto its vehicle's schedule.
func (r *Reservation) Booking() conflict.Booking {
	return conflict.Booking{
		ID:         r.ID,
		ResourceID: r.VehicleID,
		Date:       r.Date,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
	}
}

type Filter struct {
	VehicleID    string
	InstructorID string
	DateFrom     string
	DateTo       string
	Page         int
	PageSize     int
	SortOrder    string
}
