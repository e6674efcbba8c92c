package window

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
)

// fakeSource records every range query and answers from a fixed list.
type fakeSource struct {
	mu       sync.Mutex
	bookings []conflict.Booking
	err      error
	calls    []Range
}

func (f *fakeSource) ListRange(_ context.Context, resourceID string, r Range) ([]conflict.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r)
	if f.err != nil {
		return nil, f.err
	}
	var out []conflict.Booking
	for _, b := range f.bookings {
		if b.ResourceID == resourceID && r.Contains(b.Date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name string
		date string
		want Range
	}{
		{name: "Mid year", date: "2024-06-10", want: Range{Start: "2024-05-01", End: "2024-07-31"}},
		{name: "January reaches back a year", date: "2024-01-15", want: Range{Start: "2023-12-01", End: "2024-02-29"}},
		{name: "December reaches forward a year", date: "2023-12-31", want: Range{Start: "2023-11-01", End: "2024-01-31"}},
		{name: "Non leap February", date: "2023-01-01", want: Range{Start: "2022-12-01", End: "2023-02-28"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Bounds(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Contains(tt.date))
		})
	}

	t.Run("Malformed date", func(t *testing.T) {
		for _, d := range []string{"", "2024-6-10", "10/06/2024", "2024-13-01"} {
			_, err := Bounds(d)
			assert.ErrorIs(t, err, ErrInvalidDate, d)
		}
	})
}

func TestNormalize(t *testing.T) {
	in := []conflict.Booking{
		{ID: "c", Date: "2024-06-11", StartTime: "08:00"},
		{ID: "a", Date: "2024-06-10", StartTime: "14:00"},
		{ID: "b", Date: "2024-06-10", StartTime: "09:00"},
		{ID: "a", Date: "2024-06-10", StartTime: "14:00"},
	}

	out := Normalize(in)

	ids := make([]string, len(out))
	for i, b := range out {
		ids[i] = b.ID
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestRangeLoader(t *testing.T) {
	src := &fakeSource{bookings: []conflict.Booking{
		{ID: "1", ResourceID: "I1", Date: "2024-05-02", StartTime: "10:00", EndTime: "11:00"},
		{ID: "2", ResourceID: "I1", Date: "2024-08-01", StartTime: "10:00", EndTime: "11:00"},
		{ID: "3", ResourceID: "I2", Date: "2024-06-10", StartTime: "10:00", EndTime: "11:00"},
	}}
	loader := NewRangeLoader(src)

	got, err := loader.Load(context.Background(), "I1", "2024-06-10")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	t.Run("Failure is a fetch failure, not an empty window", func(t *testing.T) {
		boom := errors.New("connection refused")
		loader := NewRangeLoader(&fakeSource{err: boom})

		got, err := loader.Load(context.Background(), "I1", "2024-06-10")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrFetchFailure)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Invalid date never reaches the source", func(t *testing.T) {
		src := &fakeSource{}
		_, err := NewRangeLoader(src).Load(context.Background(), "I1", "tomorrow")
		assert.ErrorIs(t, err, ErrInvalidDate)
		assert.Zero(t, src.callCount())
	})
}

func TestLoaderFunc(t *testing.T) {
	var l Loader = LoaderFunc(func(_ context.Context, resourceID, date string) ([]conflict.Booking, error) {
		return []conflict.Booking{{ID: resourceID + date}}, nil
	})
	got, err := l.Load(context.Background(), "I1", "2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, "I12024-06-10", got[0].ID)
}
