package lesson

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/apperror"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "lesson not found")
	ErrTimeConflict       = apperror.New(http.StatusConflict, "instructor is already booked for this time")
	ErrConflictUnknown    = apperror.New(http.StatusServiceUnavailable, "could not verify instructor availability, try again")
	ErrInvalidStatus      = apperror.New(http.StatusBadRequest, "invalid lesson status")
	ErrInstructorNotFound = apperror.New(http.StatusNotFound, "instructor not found")
	ErrStudentNotFound    = apperror.New(http.StatusNotFound, "student not found")
	ErrInstructorInactive = apperror.New(http.StatusUnprocessableEntity, "instructor is not active")
	ErrInvalidDateRange   = apperror.New(http.StatusBadRequest, "date_from must not be after date_to")
)

type Status = conflict.Status

const (
	StatusScheduled = conflict.StatusScheduled
	StatusCompleted = conflict.StatusCompleted
	StatusCancelled = conflict.StatusCancelled
)

func validStatus(s Status) bool {
	return s == StatusScheduled || s == StatusCompleted || s == StatusCancelled
}

// Lesson is a driving lesson between a student and an instructor.
type Lesson struct {
	ID           string
	StudentID    string
	InstructorID string
	Date         string // Format: yyyy-MM-dd
	StartTime    string // Format: HH:MM
	EndTime      string // Format: HH:MM
	Status       Status
	Hours        float64 // Counted towards the student's lesson hours
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Booking projects the lesson onto its instructor's schedule.
func (l *Lesson) Booking() conflict.Booking {
	return conflict.Booking{
		ID:         l.ID,
		ResourceID: l.InstructorID,
		Date:       l.Date,
		StartTime:  l.StartTime,
		EndTime:    l.EndTime,
		Status:     l.Status,
	}
}

type Filter struct {
	StudentID    string
	InstructorID string
	Status       string
	DateFrom     string
	DateTo       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
