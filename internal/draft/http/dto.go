package http

import (
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/draft"
	"github.com/nekogravitycat/driving-school-backend/internal/recheck"
)

// maxWait caps long polling on GET /drafts/:id.
const maxWait = 30 * time.Second

// FieldsBody holds form values. Values may be partial while the user types,
// but anything present must be well formed.
type FieldsBody struct {
	ResourceID *string `json:"resource_id" binding:"omitempty,uuid"`
	Date       *string `json:"date" binding:"omitempty,isodate"`
	StartTime  *string `json:"start_time" binding:"omitempty,hhmm"`
	EndTime    *string `json:"end_time" binding:"omitempty,hhmm"`
}

func (b FieldsBody) Patch() draft.FieldsPatch {
	return draft.FieldsPatch{
		ResourceID: b.ResourceID,
		Date:       b.Date,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
	}
}

type CreateDraftBody struct {
	Kind      string `json:"kind" binding:"required,oneof=lesson reservation"`
	ExcludeID string `json:"exclude_id" binding:"omitempty,uuid"`
	FieldsBody
}

type GetDraftRequest struct {
	AfterVersion uint64        `form:"after_version"`
	Wait         time.Duration `form:"wait"`
}

type DraftResponse struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	ExcludeID   string             `json:"exclude_id,omitempty"`
	State       string             `json:"state"`
	Fields      recheck.Fields     `json:"fields"`
	HasConflict bool               `json:"has_conflict"`
	Conflicts   []conflict.Booking `json:"conflicts"`
	Previous    *conflict.Result   `json:"previous,omitempty"`
	CanSubmit   bool               `json:"can_submit"`
	Error       string             `json:"error,omitempty"`
	Version     uint64             `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

func NewDraftResponse(d *draft.Draft) DraftResponse {
	snap := d.Snapshot
	resp := DraftResponse{
		ID:          d.ID,
		Kind:        string(d.Kind),
		ExcludeID:   d.ExcludeID,
		State:       string(snap.State),
		Fields:      snap.Fields,
		HasConflict: snap.Result.HasConflict,
		Conflicts:   snap.Result.Conflicts,
		Previous:    snap.Previous,
		CanSubmit:   snap.CanSubmit(),
		Version:     snap.Version,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
	}
	if resp.Conflicts == nil {
		resp.Conflicts = []conflict.Booking{}
	}
	if snap.Err != nil {
		resp.Error = "could not load existing bookings"
	}
	return resp
}
