package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/draft"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/request"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

const (
	instructorID = "5f2b7f1e-9c1b-4f0d-8d0a-6a7e1b2c3d44"
	lessonID     = "7b0e4a8c-3f7e-4f55-9a55-2f1c0d4b9a01"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	request.RegisterValidators()

	loader := window.LoaderFunc(func(_ context.Context, resourceID, _ string) ([]conflict.Booking, error) {
		if resourceID != instructorID {
			return nil, nil
		}
		return []conflict.Booking{{
			ID: lessonID, ResourceID: instructorID, Date: "2024-06-10",
			StartTime: "10:00", EndTime: "12:00", Status: conflict.StatusScheduled,
		}}, nil
	})
	svc := draft.NewService(map[draft.Kind]draft.Binding{
		draft.KindLesson: {Loader: loader, Kind: conflict.Lessons},
	}, draft.Config{TTL: time.Minute}, nil)
	t.Cleanup(svc.Close)

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(svc), func(c *gin.Context) { c.Next() })
	return r
}

func executeRequest(r *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) DraftResponse {
	t.Helper()
	var resp DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// awaitSettled long-polls until the draft leaves the loading state.
func awaitSettled(t *testing.T, r *gin.Engine, resp DraftResponse) DraftResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for resp.State == "loading" {
		require.True(t, time.Now().Before(deadline), "draft never settled")
		url := "/v1/drafts/" + resp.ID + "?wait=1s&after_version=" + strconv.FormatUint(resp.Version, 10)
		w := executeRequest(r, http.MethodGet, url, nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp = decode(t, w)
	}
	return resp
}

func TestDraftLifecycle(t *testing.T) {
	r := setupRouter(t)

	w := executeRequest(r, http.MethodPost, "/v1/drafts", gin.H{"kind": "lesson", "resource_id": instructorID})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "idle", resp.State)
	assert.False(t, resp.CanSubmit)

	w = executeRequest(r, http.MethodPatch, "/v1/drafts/"+resp.ID, gin.H{
		"date": "2024-06-10", "start_time": "11:00", "end_time": "13:00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = awaitSettled(t, r, decode(t, w))
	assert.Equal(t, "resolved", resp.State)
	assert.True(t, resp.HasConflict)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, lessonID, resp.Conflicts[0].ID)
	assert.False(t, resp.CanSubmit)

	w = executeRequest(r, http.MethodPatch, "/v1/drafts/"+resp.ID, gin.H{"start_time": "12:00"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = awaitSettled(t, r, decode(t, w))
	assert.Equal(t, "resolved", resp.State)
	assert.True(t, resp.CanSubmit)
	assert.Equal(t, "13:00", resp.Fields.EndTime)

	w = executeRequest(r, http.MethodDelete, "/v1/drafts/"+resp.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = executeRequest(r, http.MethodGet, "/v1/drafts/"+resp.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftEditingExistingLesson(t *testing.T) {
	r := setupRouter(t)

	w := executeRequest(r, http.MethodPost, "/v1/drafts", gin.H{
		"kind": "lesson", "exclude_id": lessonID, "resource_id": instructorID,
		"date": "2024-06-10", "start_time": "10:30", "end_time": "12:30",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := awaitSettled(t, r, decode(t, w))
	assert.True(t, resp.CanSubmit)
	assert.Equal(t, lessonID, resp.ExcludeID)
}

func TestDraftValidation(t *testing.T) {
	r := setupRouter(t)

	t.Run("Unsupported kind", func(t *testing.T) {
		w := executeRequest(r, http.MethodPost, "/v1/drafts", gin.H{"kind": "room"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Kind without binding", func(t *testing.T) {
		w := executeRequest(r, http.MethodPost, "/v1/drafts", gin.H{"kind": "reservation"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Malformed time", func(t *testing.T) {
		w := executeRequest(r, http.MethodPost, "/v1/drafts", gin.H{"kind": "lesson", "start_time": "25:00"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unknown draft", func(t *testing.T) {
		w := executeRequest(r, http.MethodPatch, "/v1/drafts/"+lessonID, gin.H{"start_time": "10:00"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
