package window

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/apperror"
)

// DateLayout is the ISO calendar date format used for booking dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate = apperror.New(http.StatusBadRequest, "date must be in yyyy-MM-dd format")

	// ErrFetchFailure matches every error produced while loading a window.
	ErrFetchFailure = errors.New("booking window fetch failed")
)

// FetchError reports a failed window load for a resource.
type FetchError struct {
	ResourceID string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load booking window for resource %s: %v", e.ResourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailure }

// Range is an inclusive span of ISO dates.
type Range struct {
	Start string
	End   string
}

// Contains reports whether date lies within the range. ISO dates are fixed
// width, so string comparison orders them correctly.
func (r Range) Contains(date string) bool {
	return r.Start <= date && date <= r.End
}

// ParseDate validates an ISO calendar date.
func ParseDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// Bounds returns the three calendar month window around date: the first day
// of the previous month through the last day of the next month.
func Bounds(date string) (Range, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Range{}, err
	}

	first := time.Date(d.Year(), d.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the month after next is the last day of next month.
	last := time.Date(d.Year(), d.Month()+2, 0, 0, 0, 0, 0, time.UTC)

	return Range{
		Start: first.Format(DateLayout),
		End:   last.Format(DateLayout),
	}, nil
}

// Loader supplies every booking of a resource inside the window around date.
type Loader interface {
	Load(ctx context.Context, resourceID, date string) ([]conflict.Booking, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, resourceID, date string) ([]conflict.Booking, error)

func (f LoaderFunc) Load(ctx context.Context, resourceID, date string) ([]conflict.Booking, error) {
	return f(ctx, resourceID, date)
}

// RangeSource is implemented by repositories that can list the bookings of a
// resource between two dates.
type RangeSource interface {
	ListRange(ctx context.Context, resourceID string, r Range) ([]conflict.Booking, error)
}

// RangeLoader loads windows straight from a RangeSource without caching.
type RangeLoader struct {
	source RangeSource
}

func NewRangeLoader(source RangeSource) *RangeLoader {
	return &RangeLoader{source: source}
}

func (l *RangeLoader) Load(ctx context.Context, resourceID, date string) ([]conflict.Booking, error) {
	r, err := Bounds(date)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, l.source, resourceID, r)
}

func fetch(ctx context.Context, source RangeSource, resourceID string, r Range) ([]conflict.Booking, error) {
	bookings, err := source.ListRange(ctx, resourceID, r)
	if err != nil {
		return nil, &FetchError{ResourceID: resourceID, Err: err}
	}
	return Normalize(bookings), nil
}

// Normalize drops duplicate ids (first occurrence wins) and sorts by date
// then start time.
func Normalize(bookings []conflict.Booking) []conflict.Booking {
	seen := make(map[string]struct{}, len(bookings))
	out := make([]conflict.Booking, 0, len(bookings))
	for _, b := range bookings {
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// Check loads the window around the candidate's date and evaluates the
// candidate against it.
func Check(ctx context.Context, loader Loader, kind conflict.ResourceKind, c conflict.Candidate) (conflict.Result, error) {
	bookings, err := loader.Load(ctx, c.ResourceID, c.Date)
	if err != nil {
		return conflict.Result{}, err
	}
	return conflict.Evaluate(kind, c, bookings)
}
