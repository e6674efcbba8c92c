package draft

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/recheck"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var existing = []conflict.Booking{
	{ID: "L1", ResourceID: "I1", Date: "2024-06-10", StartTime: "10:00", EndTime: "12:00", Status: conflict.StatusScheduled},
}

func staticLoader(calls *atomic.Int32) window.Loader {
	return window.LoaderFunc(func(_ context.Context, resourceID, _ string) ([]conflict.Booking, error) {
		if calls != nil {
			calls.Add(1)
		}
		var out []conflict.Booking
		for _, b := range existing {
			if b.ResourceID == resourceID {
				out = append(out, b)
			}
		}
		return out, nil
	})
}

func newTestService(t *testing.T, loader window.Loader, cfg Config) (*service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	s := newService(map[Kind]Binding{
		KindLesson:      {Loader: loader, Kind: conflict.Lessons},
		KindReservation: {Loader: loader, Kind: conflict.Reservations},
	}, cfg, nil, clock.Now, false)
	t.Cleanup(s.Close)
	return s, clock
}

func fields(resource, date, start, end string) FieldsPatch {
	return FieldsPatch{ResourceID: &resource, Date: &date, StartTime: &start, EndTime: &end}
}

// settle waits for the draft to leave the loading state.
func settle(t *testing.T, s *service, d *Draft) *Draft {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for d.Snapshot.State == recheck.StateLoading {
		var err error
		d, err = s.Wait(ctx, d.ID, d.Snapshot.Version)
		require.NoError(t, err)
		require.NoError(t, ctx.Err(), "draft never settled")
	}
	return d
}

func TestCreateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("Clear slot can be submitted", func(t *testing.T) {
		s, _ := newTestService(t, staticLoader(nil), Config{})
		d, err := s.Create(ctx, KindLesson, "", fields("I1", "2024-06-10", "12:00", "13:00"))
		require.NoError(t, err)
		assert.NotEmpty(t, d.ID)

		d = settle(t, s, d)
		assert.Equal(t, recheck.StateResolved, d.Snapshot.State)
		assert.True(t, d.Snapshot.CanSubmit())
	})

	t.Run("Overlap is reported", func(t *testing.T) {
		s, _ := newTestService(t, staticLoader(nil), Config{})
		d, err := s.Create(ctx, KindLesson, "", fields("I1", "2024-06-10", "11:00", "13:00"))
		require.NoError(t, err)

		d = settle(t, s, d)
		assert.True(t, d.Snapshot.Result.HasConflict)
		assert.False(t, d.Snapshot.CanSubmit())
		require.Len(t, d.Snapshot.Result.Conflicts, 1)
		assert.Equal(t, "L1", d.Snapshot.Result.Conflicts[0].ID)
	})

	t.Run("Editing draft ignores the edited booking", func(t *testing.T) {
		s, _ := newTestService(t, staticLoader(nil), Config{})
		d, err := s.Create(ctx, KindLesson, "L1", fields("I1", "2024-06-10", "11:00", "13:00"))
		require.NoError(t, err)

		d = settle(t, s, d)
		assert.Equal(t, "L1", d.ExcludeID)
		assert.True(t, d.Snapshot.CanSubmit())
	})

	t.Run("Incomplete form stays idle without loading", func(t *testing.T) {
		var calls atomic.Int32
		s, _ := newTestService(t, staticLoader(&calls), Config{})
		resource := "I1"
		d, err := s.Create(ctx, KindLesson, "", FieldsPatch{ResourceID: &resource})
		require.NoError(t, err)

		assert.Equal(t, recheck.StateIdle, d.Snapshot.State)
		assert.False(t, d.Snapshot.CanSubmit())
		assert.Zero(t, calls.Load())
	})

	t.Run("End before start cannot be submitted", func(t *testing.T) {
		var calls atomic.Int32
		s, _ := newTestService(t, staticLoader(&calls), Config{})
		d, err := s.Create(ctx, KindLesson, "", fields("I1", "2024-06-10", "13:00", "12:00"))
		require.NoError(t, err)

		d = settle(t, s, d)
		assert.Equal(t, recheck.StateInvalid, d.Snapshot.State)
		assert.ErrorIs(t, d.Snapshot.Err, conflict.ErrInvalidRange)
		assert.False(t, d.Snapshot.CanSubmit())
		assert.Zero(t, calls.Load())
	})

	t.Run("Unknown kind", func(t *testing.T) {
		s, _ := newTestService(t, staticLoader(nil), Config{})
		_, err := s.Create(ctx, Kind("room"), "", FieldsPatch{})
		assert.ErrorIs(t, err, ErrInvalidKind)
	})

	t.Run("Open draft limit", func(t *testing.T) {
		s, _ := newTestService(t, staticLoader(nil), Config{MaxDrafts: 1})
		_, err := s.Create(ctx, KindLesson, "", FieldsPatch{})
		require.NoError(t, err)
		_, err = s.Create(ctx, KindLesson, "", FieldsPatch{})
		assert.ErrorIs(t, err, ErrTooMany)
	})

	t.Run("Load failure is unknown", func(t *testing.T) {
		failing := window.LoaderFunc(func(_ context.Context, resourceID, _ string) ([]conflict.Booking, error) {
			return nil, &window.FetchError{ResourceID: resourceID, Err: errors.New("down")}
		})
		s, _ := newTestService(t, failing, Config{})
		d, err := s.Create(ctx, KindReservation, "", fields("V1", "2024-06-10", "10:00", "11:00"))
		require.NoError(t, err)

		d = settle(t, s, d)
		assert.Equal(t, recheck.StateUnknown, d.Snapshot.State)
		assert.ErrorIs(t, d.Snapshot.Err, window.ErrFetchFailure)
		assert.False(t, d.Snapshot.CanSubmit())
	})
}

func TestUpdateDraft(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, staticLoader(nil), Config{Debounce: 50 * time.Millisecond})

	d, err := s.Create(ctx, KindLesson, "", fields("I1", "2024-06-10", "11:00", "13:00"))
	require.NoError(t, err)
	d = settle(t, s, d)
	require.True(t, d.Snapshot.Result.HasConflict)

	start := "12:00"
	d, err = s.Update(ctx, d.ID, FieldsPatch{StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, "13:00", d.Snapshot.Fields.EndTime, "unpatched fields are kept")
	assert.NotNil(t, d.Snapshot.Previous)

	d = settle(t, s, d)
	assert.True(t, d.Snapshot.CanSubmit())

	_, err = s.Update(ctx, "missing", FieldsPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentPartialUpdates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t, staticLoader(nil), Config{Debounce: time.Hour})

	resource, date := "I1", "2024-06-10"
	d, err := s.Create(ctx, KindLesson, "", FieldsPatch{ResourceID: &resource, Date: &date})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		blank := ""
		_, err := s.Update(ctx, d.ID, FieldsPatch{StartTime: &blank, EndTime: &blank})
		require.NoError(t, err)

		start, end := "12:00", "13:00"
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, d.ID, FieldsPatch{StartTime: &start})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, d.ID, FieldsPatch{EndTime: &end})
			assert.NoError(t, err)
		}()
		wg.Wait()

		got, err := s.Get(ctx, d.ID)
		require.NoError(t, err)
		require.Equal(t, "12:00", got.Snapshot.Fields.StartTime)
		require.Equal(t, "13:00", got.Snapshot.Fields.EndTime)
	}
}

func TestWaitTimesOutWithCurrentState(t *testing.T) {
	s, _ := newTestService(t, staticLoader(nil), Config{})
	d, err := s.Create(context.Background(), KindLesson, "", FieldsPatch{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got, err := s.Wait(ctx, d.ID, d.Snapshot.Version)
	require.NoError(t, err)
	assert.Equal(t, d.Snapshot.Version, got.Snapshot.Version)
}

func TestDeleteAndSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("Delete", func(t *testing.T) {
		s, _ := newTestService(t, staticLoader(nil), Config{})
		d, err := s.Create(ctx, KindLesson, "", FieldsPatch{})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, d.ID))
		_, err = s.Get(ctx, d.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, d.ID), ErrNotFound)
	})

	t.Run("Idle drafts expire", func(t *testing.T) {
		s, clock := newTestService(t, staticLoader(nil), Config{TTL: 10 * time.Minute})
		old, err := s.Create(ctx, KindLesson, "", FieldsPatch{})
		require.NoError(t, err)
		assert.Equal(t, clock.Now().Add(10*time.Minute), old.ExpiresAt)

		clock.Advance(6 * time.Minute)
		fresh, err := s.Create(ctx, KindLesson, "", FieldsPatch{})
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)
		assert.Equal(t, 1, s.sweep())

		_, err = s.Get(ctx, old.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, fresh.ID)
		assert.NoError(t, err)
	})

	t.Run("Get keeps a draft alive", func(t *testing.T) {
		s, clock := newTestService(t, staticLoader(nil), Config{TTL: 10 * time.Minute})
		d, err := s.Create(ctx, KindLesson, "", FieldsPatch{})
		require.NoError(t, err)

		clock.Advance(8 * time.Minute)
		_, err = s.Get(ctx, d.ID)
		require.NoError(t, err)
		clock.Advance(8 * time.Minute)
		assert.Zero(t, s.sweep())
	})

	t.Run("Closed service rejects new drafts", func(t *testing.T) {
		s, _ := newTestService(t, staticLoader(nil), Config{})
		s.Close()
		_, err := s.Create(ctx, KindLesson, "", FieldsPatch{})
		assert.ErrorIs(t, err, ErrClosed)
	})
}
