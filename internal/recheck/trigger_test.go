package recheck

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

type response struct {
	bookings []conflict.Booking
	err      error
}

// gatedLoader blocks every load until the test releases the date it asked for.
type gatedLoader struct {
	mu      sync.Mutex
	started chan string
	gates   map[string]chan response
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{
		started: make(chan string, 16),
		gates:   make(map[string]chan response),
	}
}

func (l *gatedLoader) gate(date string) chan response {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[date]
	if !ok {
		g = make(chan response, 1)
		l.gates[date] = g
	}
	return g
}

func (l *gatedLoader) Load(ctx context.Context, _ string, date string) ([]conflict.Booking, error) {
	l.started <- date
	select {
	case r := <-l.gate(date):
		return r.bookings, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *gatedLoader) release(date string, bookings []conflict.Booking, err error) {
	l.gate(date) <- response{bookings: bookings, err: err}
}

func (l *gatedLoader) waitStarted(t *testing.T, date string) {
	t.Helper()
	select {
	case got := <-l.started:
		require.Equal(t, date, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("load for %s never started", date)
	}
}

// countingLoader answers immediately and counts calls.
type countingLoader struct {
	mu       sync.Mutex
	calls    []string
	bookings []conflict.Booking
	err      error
}

func (l *countingLoader) Load(_ context.Context, _ string, date string) ([]conflict.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, date)
	return l.bookings, l.err
}

func (l *countingLoader) callDates() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

var existing = conflict.Booking{
	ID:         "L1",
	ResourceID: "I1",
	Date:       "2024-06-10",
	StartTime:  "10:00",
	EndTime:    "12:00",
	Status:     conflict.StatusScheduled,
}

func fieldsOn(date, start, end string) Fields {
	return Fields{ResourceID: "I1", Date: date, StartTime: start, EndTime: end}
}

func waitState(t *testing.T, tr *Trigger, state State) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return tr.Snapshot().State == state
	}, 2*time.Second, 5*time.Millisecond)
	return tr.Snapshot()
}

func TestTriggerResolves(t *testing.T) {
	loader := &countingLoader{bookings: []conflict.Booking{existing}}
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons}, nil)
	defer tr.Close()

	snap := tr.Set(fieldsOn("2024-06-10", "11:00", "13:00"))
	assert.Equal(t, StateLoading, snap.State)
	assert.False(t, snap.CanSubmit())

	snap = waitState(t, tr, StateResolved)
	assert.True(t, snap.Result.HasConflict)
	assert.Equal(t, []conflict.Booking{existing}, snap.Result.Conflicts)
	assert.False(t, snap.CanSubmit())

	tr.Set(fieldsOn("2024-06-10", "12:00", "13:00"))
	require.Eventually(t, func() bool {
		s := tr.Snapshot()
		return s.State == StateResolved && s.Fields.StartTime == "12:00"
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, tr.Snapshot().CanSubmit())
}

func TestTriggerDiscardsStaleResults(t *testing.T) {
	loader := newGatedLoader()

	var mu sync.Mutex
	var seen []Snapshot
	tr := New(context.Background(), loader, Config{
		Kind: conflict.Lessons,
		OnChange: func(s Snapshot) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		},
	}, nil)
	defer tr.Close()

	f1 := fieldsOn("2024-06-10", "11:00", "13:00")
	f2 := fieldsOn("2024-06-11", "11:00", "13:00")

	tr.Set(f1)
	loader.waitStarted(t, f1.Date)
	tr.Set(f2)
	loader.waitStarted(t, f2.Date)

	// The later edit resolves first.
	loader.release(f2.Date, nil, nil)
	snap := waitState(t, tr, StateResolved)
	assert.Equal(t, f2, snap.Fields)
	assert.False(t, snap.Result.HasConflict)

	// The slow earlier load would have reported a conflict.
	loader.release(f1.Date, []conflict.Booking{existing}, nil)
	tr.pending.Wait()

	snap = tr.Snapshot()
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, f2, snap.Fields)
	assert.False(t, snap.Result.HasConflict)

	mu.Lock()
	defer mu.Unlock()
	for i, s := range seen {
		if s.State == StateResolved {
			assert.Equal(t, f2, s.Fields, "stale result leaked into notification %d", i)
		}
		if i > 0 {
			assert.Greater(t, s.Version, seen[i-1].Version)
		}
	}
}

func TestTriggerIncompleteFieldsAreIdle(t *testing.T) {
	loader := &countingLoader{}
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons}, nil)
	defer tr.Close()

	snap := tr.Set(Fields{ResourceID: "I1", Date: "2024-06-10", StartTime: "10:00"})
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.CanSubmit())

	tr.pending.Wait()
	assert.Empty(t, loader.callDates())
}

func TestTriggerDeduplicatesIdenticalFields(t *testing.T) {
	loader := &countingLoader{}
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons}, nil)
	defer tr.Close()

	f := fieldsOn("2024-06-10", "10:00", "11:00")
	tr.Set(f)
	waitState(t, tr, StateResolved)
	before := tr.Snapshot().Version

	snap := tr.Set(f)
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, before, snap.Version)

	tr.pending.Wait()
	assert.Len(t, loader.callDates(), 1)
}

func TestTriggerDebounce(t *testing.T) {
	loader := &countingLoader{}
	tr := New(context.Background(), loader, Config{
		Kind:     conflict.Lessons,
		Debounce: 100 * time.Millisecond,
	}, nil)
	defer tr.Close()

	tr.Set(fieldsOn("2024-06-10", "10:00", "11:00"))
	tr.Set(fieldsOn("2024-06-11", "10:00", "11:00"))
	tr.Set(fieldsOn("2024-06-12", "10:00", "11:00"))

	snap := waitState(t, tr, StateResolved)
	assert.Equal(t, "2024-06-12", snap.Fields.Date)

	tr.pending.Wait()
	assert.Equal(t, []string{"2024-06-12"}, loader.callDates())
}

func TestTriggerFailureIsUnknown(t *testing.T) {
	loader := &countingLoader{bookings: []conflict.Booking{existing}}
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons}, nil)
	defer tr.Close()

	tr.Set(fieldsOn("2024-06-10", "12:00", "13:00"))
	waitState(t, tr, StateResolved)

	loader.mu.Lock()
	loader.err = &window.FetchError{ResourceID: "I1", Err: errors.New("backend unavailable")}
	loader.mu.Unlock()

	tr.Set(fieldsOn("2024-06-10", "12:00", "14:00"))
	snap := waitState(t, tr, StateUnknown)

	assert.ErrorIs(t, snap.Err, window.ErrFetchFailure)
	assert.False(t, snap.Result.HasConflict)
	assert.False(t, snap.CanSubmit(), "unknown must never allow submission")
	require.NotNil(t, snap.Previous)
	assert.False(t, snap.Previous.HasConflict)
}

func TestTriggerExcludesSelf(t *testing.T) {
	loader := &countingLoader{bookings: []conflict.Booking{existing}}
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons, ExcludeID: existing.ID}, nil)
	defer tr.Close()

	tr.Set(fieldsOn(existing.Date, existing.StartTime, existing.EndTime))
	snap := waitState(t, tr, StateResolved)
	assert.False(t, snap.Result.HasConflict)
	assert.True(t, snap.CanSubmit())
}

func TestTriggerFetchTimeout(t *testing.T) {
	loader := newGatedLoader()
	tr := New(context.Background(), loader, Config{
		Kind:         conflict.Lessons,
		FetchTimeout: 20 * time.Millisecond,
	}, nil)
	defer tr.Close()

	tr.Set(fieldsOn("2024-06-10", "10:00", "11:00"))
	snap := waitState(t, tr, StateUnknown)
	assert.ErrorIs(t, snap.Err, context.DeadlineExceeded)
}

func TestTriggerCloseDropsInFlight(t *testing.T) {
	loader := newGatedLoader()
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons}, nil)

	tr.Set(fieldsOn("2024-06-10", "10:00", "11:00"))
	loader.waitStarted(t, "2024-06-10")

	tr.Close()
	assert.Equal(t, StateLoading, tr.Snapshot().State)

	snap := tr.Set(fieldsOn("2024-06-11", "10:00", "11:00"))
	assert.Equal(t, "2024-06-10", snap.Fields.Date, "closed trigger ignores edits")
}

func TestTriggerRetriesFromUnknown(t *testing.T) {
	loader := &countingLoader{err: &window.FetchError{ResourceID: "I1", Err: errors.New("backend unavailable")}}
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons}, nil)
	defer tr.Close()

	f := fieldsOn("2024-06-10", "12:00", "13:00")
	tr.Set(f)
	waitState(t, tr, StateUnknown)

	loader.mu.Lock()
	loader.err = nil
	loader.mu.Unlock()

	snap := tr.Set(f)
	assert.Equal(t, StateLoading, snap.State)

	snap = waitState(t, tr, StateResolved)
	assert.True(t, snap.CanSubmit())
	tr.pending.Wait()
	assert.Equal(t, []string{"2024-06-10", "2024-06-10"}, loader.callDates())
}

func TestTriggerRejectsInvalidRange(t *testing.T) {
	loader := &countingLoader{}
	tr := New(context.Background(), loader, Config{Kind: conflict.Lessons}, nil)
	defer tr.Close()

	tests := []struct {
		name       string
		start, end string
		want       error
	}{
		{"End before start", "13:00", "12:00", conflict.ErrInvalidRange},
		{"Zero length", "12:00", "12:00", conflict.ErrInvalidRange},
		{"Malformed", "12h", "13:00", conflict.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := tr.Set(fieldsOn("2024-06-10", tt.start, tt.end))
			assert.Equal(t, StateInvalid, snap.State)
			assert.ErrorIs(t, snap.Err, tt.want)
			assert.False(t, snap.CanSubmit())
		})
	}

	tr.pending.Wait()
	assert.Empty(t, loader.callDates())

	snap := tr.Set(fieldsOn("2024-06-10", "12:00", "13:00"))
	assert.Equal(t, StateLoading, snap.State)
	assert.Equal(t, StateResolved, waitState(t, tr, StateResolved).State)
}

func TestTriggerPatchKeepsConcurrentEdits(t *testing.T) {
	tr := New(context.Background(), &countingLoader{}, Config{Kind: conflict.Lessons, Debounce: time.Hour}, nil)
	defer tr.Close()

	tr.Set(Fields{ResourceID: "I1", Date: "2024-06-10"})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tr.Patch(func(f Fields) Fields { f.StartTime = "12:00"; return f })
	}()
	go func() {
		defer wg.Done()
		tr.Patch(func(f Fields) Fields { f.EndTime = "13:00"; return f })
	}()
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, fieldsOn("2024-06-10", "12:00", "13:00"), snap.Fields)
	assert.Equal(t, StateLoading, snap.State)
}
