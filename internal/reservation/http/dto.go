package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/request"
	"github.com/nekogravitycat/driving-school-backend/internal/reservation"
)

var errInvalidInstructorID = apperror.New(http.StatusBadRequest, "instructor_id must be a UUID or empty")

type ListReservationsRequest struct {
	request.ListParams
	VehicleID    string `form:"vehicle_id" binding:"omitempty,uuid"`
	InstructorID string `form:"instructor_id" binding:"omitempty,uuid"`
	DateFrom     string `form:"date_from" binding:"omitempty,isodate"`
	DateTo       string `form:"date_to" binding:"omitempty,isodate"`
}

func (r *ListReservationsRequest) Validate() error {
	if r.DateFrom != "" && r.DateTo != "" && r.DateFrom > r.DateTo {
		return reservation.ErrInvalidDateRange
	}
	return nil
}

func (r *ListReservationsRequest) Filter() reservation.Filter {
	r.Normalize()
	return reservation.Filter{
		VehicleID:    r.VehicleID,
		InstructorID: r.InstructorID,
		DateFrom:     r.DateFrom,
		DateTo:       r.DateTo,
		Page:         r.Page,
		PageSize:     r.PageSize,
		SortOrder:    strings.ToUpper(r.SortOrder),
	}
}

type ReservationResponse struct {
	ID           string    `json:"id"`
	VehicleID    string    `json:"vehicle_id"`
	InstructorID *string   `json:"instructor_id"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Purpose      string    `json:"purpose"`
	Hours        float64   `json:"hours"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:           r.ID,
		VehicleID:    r.VehicleID,
		InstructorID: r.InstructorID,
		Date:         r.Date,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Purpose:      r.Purpose,
		Hours:        r.Hours,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type CreateReservationBody struct {
	VehicleID    string  `json:"vehicle_id" binding:"required,uuid"`
	InstructorID *string `json:"instructor_id" binding:"omitempty,uuid"`
	Date         string  `json:"date" binding:"required,isodate"`
	StartTime    string  `json:"start_time" binding:"required,hhmm"`
	EndTime      string  `json:"end_time" binding:"required,hhmm"`
	Purpose      string  `json:"purpose" binding:"max=200"`
}

func (b *CreateReservationBody) Validate() error {
	return conflict.ValidateRange(b.StartTime, b.EndTime)
}

type UpdateReservationBody struct {
	VehicleID *string `json:"vehicle_id" binding:"omitempty,uuid"`
	// An empty string detaches the instructor.
	InstructorID *string `json:"instructor_id"`
	Date         *string `json:"date" binding:"omitempty,isodate"`
	StartTime    *string `json:"start_time" binding:"omitempty,hhmm"`
	EndTime      *string `json:"end_time" binding:"omitempty,hhmm"`
	Purpose      *string `json:"purpose" binding:"omitempty,max=200"`
}

func (b *UpdateReservationBody) Validate() error {
	if b.InstructorID != nil && *b.InstructorID != "" {
		if _, err := uuid.Parse(*b.InstructorID); err != nil {
			return errInvalidInstructorID
		}
	}
	if b.StartTime != nil && b.EndTime != nil {
		return conflict.ValidateRange(*b.StartTime, *b.EndTime)
	}
	return nil
}

type WindowResponse struct {
	VehicleID string             `json:"vehicle_id"`
	Date      string             `json:"date"`
	Items     []conflict.Booking `json:"items"`
}
