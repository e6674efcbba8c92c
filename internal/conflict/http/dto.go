package http

import (
	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
)

// Check outcomes reported to clients.
const (
	StatusClear    = "clear"
	StatusConflict = "conflict"
	StatusUnknown  = "unknown"
)

type CheckBody struct {
	Kind       string `json:"kind" binding:"required,oneof=lesson reservation"`
	ResourceID string `json:"resource_id" binding:"required,uuid"`
	Date       string `json:"date" binding:"required,isodate"`
	StartTime  string `json:"start_time" binding:"required,hhmm"`
	EndTime    string `json:"end_time" binding:"required,hhmm"`
	ExcludeID  string `json:"exclude_id" binding:"omitempty,uuid"`
}

func (b *CheckBody) Candidate() conflict.Candidate {
	return conflict.Candidate{
		ResourceID: b.ResourceID,
		Date:       b.Date,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		ExcludeID:  b.ExcludeID,
	}
}

type CheckResponse struct {
	Status        string             `json:"status"`
	HasConflict   bool               `json:"has_conflict"`
	Conflicts     []conflict.Booking `json:"conflicts"`
	DurationHours float64            `json:"duration_hours"`
}

type UnknownResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
