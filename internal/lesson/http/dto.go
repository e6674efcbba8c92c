package http

import (
	"strings"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/lesson"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/request"
)

// ListLessonsRequest defines query parameters for listing lessons.
type ListLessonsRequest struct {
	request.ListParams
	StudentID    string `form:"student_id" binding:"omitempty,uuid"`
	InstructorID string `form:"instructor_id" binding:"omitempty,uuid"`
	Status       string `form:"status" binding:"omitempty,oneof=scheduled completed cancelled"`
	DateFrom     string `form:"date_from" binding:"omitempty,isodate"`
	DateTo       string `form:"date_to" binding:"omitempty,isodate"`
	SortBy       string `form:"sort_by" binding:"omitempty,oneof=lesson_date created_at status"`
}

// Validate performs custom validation for ListLessonsRequest.
func (r *ListLessonsRequest) Validate() error {
	if r.DateFrom != "" && r.DateTo != "" && r.DateFrom > r.DateTo {
		return lesson.ErrInvalidDateRange
	}
	return nil
}

func (r *ListLessonsRequest) Filter() lesson.Filter {
	r.Normalize()
	return lesson.Filter{
		StudentID:    r.StudentID,
		InstructorID: r.InstructorID,
		Status:       r.Status,
		DateFrom:     r.DateFrom,
		DateTo:       r.DateTo,
		Page:         r.Page,
		PageSize:     r.PageSize,
		SortBy:       r.SortBy,
		SortOrder:    strings.ToUpper(r.SortOrder),
	}
}

type LessonResponse struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	InstructorID string    `json:"instructor_id"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Status       string    `json:"status"`
	Hours        float64   `json:"hours"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewLessonResponse(l *lesson.Lesson) LessonResponse {
	return LessonResponse{
		ID:           l.ID,
		StudentID:    l.StudentID,
		InstructorID: l.InstructorID,
		Date:         l.Date,
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
		Status:       string(l.Status),
		Hours:        l.Hours,
		Notes:        l.Notes,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

type CreateLessonBody struct {
	StudentID    string `json:"student_id" binding:"required,uuid"`
	InstructorID string `json:"instructor_id" binding:"required,uuid"`
	Date         string `json:"date" binding:"required,isodate"`
	StartTime    string `json:"start_time" binding:"required,hhmm"`
	EndTime      string `json:"end_time" binding:"required,hhmm"`
	Notes        string `json:"notes" binding:"max=2000"`
}

// Validate performs custom validation for CreateLessonBody.
func (b *CreateLessonBody) Validate() error {
	return conflict.ValidateRange(b.StartTime, b.EndTime)
}

type UpdateLessonBody struct {
	InstructorID *string `json:"instructor_id" binding:"omitempty,uuid"`
	Date         *string `json:"date" binding:"omitempty,isodate"`
	StartTime    *string `json:"start_time" binding:"omitempty,hhmm"`
	EndTime      *string `json:"end_time" binding:"omitempty,hhmm"`
	Status       *string `json:"status" binding:"omitempty,oneof=scheduled completed cancelled"`
	Notes        *string `json:"notes" binding:"omitempty,max=2000"`
}

// Validate performs custom validation for UpdateLessonBody.
func (b *UpdateLessonBody) Validate() error {
	if b.StartTime != nil && b.EndTime != nil {
		return conflict.ValidateRange(*b.StartTime, *b.EndTime)
	}
	return nil
}

type WindowResponse struct {
	InstructorID string             `json:"instructor_id"`
	Date         string             `json:"date"`
	Items        []conflict.Booking `json:"items"`
}
