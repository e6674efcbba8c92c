package window

import (
	"context"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
)

// Entry is the cached window of a single resource.
type Entry struct {
	ResourceID string             `json:"resource_id"`
	RangeStart string             `json:"range_start"`
	RangeEnd   string             `json:"range_end"`
	Bookings   []conflict.Booking `json:"bookings"`
	StoredAt   time.Time          `json:"stored_at"`
}

// Covers reports whether the entry can answer a window request for date.
func (e *Entry) Covers(resourceID, date string) bool {
	if e == nil || e.ResourceID != resourceID {
		return false
	}
	return Range{Start: e.RangeStart, End: e.RangeEnd}.Contains(date)
}

// Store keeps at most one window entry per resource.
// Implementations drop entries older than their TTL.
type Store interface {
	Get(ctx context.Context, resourceID string) (*Entry, bool, error)
	// Generation returns the resource's invalidation counter.
	Generation(ctx context.Context, resourceID string) (uint64, error)
	// Put stores entry only if the resource is still at generation gen and
	// reports whether it did.
	Put(ctx context.Context, entry Entry, gen uint64) (bool, error)
	// Invalidate drops the entry and advances the generation.
	Invalidate(ctx context.Context, resourceID string) error
}

// CachedLoader serves window requests from a Store and falls back to the
// RangeSource when the cached entry belongs to another window.
type CachedLoader struct {
	source RangeSource
	store  Store
	now    func() time.Time
	log    *logger.Logger
}

func NewCachedLoader(source RangeSource, store Store, log *logger.Logger) *CachedLoader {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedLoader{
		source: source,
		store:  store,
		now:    time.Now,
		log:    log,
	}
}

func (l *CachedLoader) Load(ctx context.Context, resourceID, date string) ([]conflict.Booking, error) {
	r, err := Bounds(date)
	if err != nil {
		return nil, err
	}

	entry, ok, err := l.store.Get(ctx, resourceID)
	if err != nil {
		// A broken cache only costs a round trip.
		l.log.Warn("window cache read failed", "resource_id", resourceID, "error", err)
	}
	if ok && entry.Covers(resourceID, date) {
		return cloneBookings(entry.Bookings), nil
	}

	// Read before fetching: a write that lands during the fetch bumps the
	// generation and the stale result is not stored.
	gen, genErr := l.store.Generation(ctx, resourceID)
	if genErr != nil {
		l.log.Warn("window cache generation read failed", "resource_id", resourceID, "error", genErr)
	}

	bookings, err := fetch(ctx, l.source, resourceID, r)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return bookings, nil
	}

	stored, err := l.store.Put(ctx, Entry{
		ResourceID: resourceID,
		RangeStart: r.Start,
		RangeEnd:   r.End,
		Bookings:   cloneBookings(bookings),
		StoredAt:   l.now(),
	}, gen)
	switch {
	case err != nil:
		l.log.Warn("window cache write failed", "resource_id", resourceID, "error", err)
	case !stored:
		l.log.Debug("window invalidated during fetch, not cached", "resource_id", resourceID)
	}

	return bookings, nil
}

// Invalidate drops the cached window of a resource. Services call it after
// every write so the next check sees the change.
func (l *CachedLoader) Invalidate(ctx context.Context, resourceID string) {
	if err := l.store.Invalidate(ctx, resourceID); err != nil {
		l.log.Warn("window cache invalidate failed", "resource_id", resourceID, "error", err)
	}
}

func cloneBookings(bookings []conflict.Booking) []conflict.Booking {
	if bookings == nil {
		return nil
	}
	out := make([]conflict.Booking, len(bookings))
	copy(out, bookings)
	return out
}
