package draft

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
	"github.com/nekogravitycat/driving-school-backend/internal/recheck"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

// Binding ties a draft kind to the loader and rules its trigger uses.
type Binding struct {
	Loader window.Loader
	Kind   conflict.ResourceKind
}

type Config struct {
	Debounce     time.Duration
	FetchTimeout time.Duration
	// TTL is how long a draft survives without being touched.
	TTL       time.Duration
	MaxDrafts int
}

type Service interface {
	Create(ctx context.Context, kind Kind, excludeID string, patch FieldsPatch) (*Draft, error)
	Get(ctx context.Context, id string) (*Draft, error)
	// Wait blocks until the draft's version exceeds after or ctx is done,
	// then returns the draft as it is at that point.
	Wait(ctx context.Context, id string, after uint64) (*Draft, error)
	Update(ctx context.Context, id string, patch FieldsPatch) (*Draft, error)
	Delete(ctx context.Context, id string) error
	// Close stops the sweeper and every draft trigger.
	Close()
}

type entry struct {
	id        string
	kind      Kind
	excludeID string
	trigger   *recheck.Trigger
	createdAt time.Time

	mu        sync.Mutex
	touchedAt time.Time
	changed   chan struct{}
}

func (e *entry) touch(now time.Time) {
	e.mu.Lock()
	e.touchedAt = now
	e.mu.Unlock()
}

// notify wakes every waiter. Called from the trigger's OnChange.
func (e *entry) notify(recheck.Snapshot) {
	e.mu.Lock()
	close(e.changed)
	e.changed = make(chan struct{})
	e.mu.Unlock()
}

func (e *entry) changes() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changed
}

type service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	bindings map[Kind]Binding
	cfg      Config
	log      *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	drafts map[string]*entry
	closed bool
	done   chan struct{}
}

func NewService(bindings map[Kind]Binding, cfg Config, log *logger.Logger) Service {
	return newService(bindings, cfg, log, time.Now, true)
}

func newService(bindings map[Kind]Binding, cfg Config, log *logger.Logger, now func() time.Time, sweep bool) *service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxDrafts <= 0 {
		cfg.MaxDrafts = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &service{
		ctx:      ctx,
		cancel:   cancel,
		bindings: bindings,
		cfg:      cfg,
		log:      log,
		now:      now,
		drafts:   make(map[string]*entry),
		done:     make(chan struct{}),
	}
	if sweep {
		go s.sweepLoop()
	} else {
		close(s.done)
	}
	return s
}

func (s *service) Create(_ context.Context, kind Kind, excludeID string, patch FieldsPatch) (*Draft, error) {
	binding, ok := s.bindings[kind]
	if !ok {
		return nil, ErrInvalidKind
	}

	now := s.now()
	e := &entry{
		id:        uuid.NewString(),
		kind:      kind,
		excludeID: excludeID,
		createdAt: now,
		touchedAt: now,
		changed:   make(chan struct{}),
	}
	e.trigger = recheck.New(s.ctx, binding.Loader, recheck.Config{
		Kind:         binding.Kind,
		ExcludeID:    excludeID,
		Debounce:     s.cfg.Debounce,
		FetchTimeout: s.cfg.FetchTimeout,
		OnChange:     e.notify,
	}, s.log.With("draft_id", e.id))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		e.trigger.Close()
		return nil, ErrClosed
	}
	if len(s.drafts) >= s.cfg.MaxDrafts {
		s.mu.Unlock()
		e.trigger.Close()
		return nil, ErrTooMany
	}
	s.drafts[e.id] = e
	s.mu.Unlock()

	e.trigger.Set(patch.Apply(recheck.Fields{}))
	s.log.Debug("draft created", "draft_id", e.id, "kind", kind)

	return s.view(e), nil
}

func (s *service) Get(_ context.Context, id string) (*Draft, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.touch(s.now())
	return s.view(e), nil
}

func (s *service) Wait(ctx context.Context, id string, after uint64) (*Draft, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.touch(s.now())

	for {
		// Grab the channel before reading the version so no change is missed.
		ch := e.changes()
		if e.trigger.Snapshot().Version > after {
			return s.view(e), nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s.view(e), nil
		case <-s.ctx.Done():
			return s.view(e), nil
		}
	}
}

func (s *service) Update(_ context.Context, id string, patch FieldsPatch) (*Draft, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.touch(s.now())

	e.trigger.Patch(patch.Apply)

	return s.view(e), nil
}

func (s *service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.drafts[id]
	if ok {
		delete(s.drafts, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.trigger.Close()
	return nil
}

func (s *service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	drafts := s.drafts
	s.drafts = make(map[string]*entry)
	s.mu.Unlock()

	s.cancel()
	<-s.done
	for _, e := range drafts {
		e.trigger.Close()
	}
	s.log.Info("draft service stopped", "closed_drafts", len(drafts))
}

func (s *service) lookup(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *service) view(e *entry) *Draft {
	e.mu.Lock()
	touched := e.touchedAt
	e.mu.Unlock()
	return &Draft{
		ID:        e.id,
		Kind:      e.kind,
		ExcludeID: e.excludeID,
		Snapshot:  e.trigger.Snapshot(),
		CreatedAt: e.createdAt,
		ExpiresAt: touched.Add(s.cfg.TTL),
	}
}

func (s *service) sweepLoop() {
	defer close(s.done)

	interval := s.cfg.TTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep closes drafts that have not been touched within the TTL.
func (s *service) sweep() int {
	cutoff := s.now().Add(-s.cfg.TTL)

	var expired []*entry
	s.mu.Lock()
	for id, e := range s.drafts {
		e.mu.Lock()
		stale := e.touchedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(s.drafts, id)
			expired = append(expired, e)
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		e.trigger.Close()
	}
	if len(expired) > 0 {
		s.log.Info("expired idle drafts", "count", len(expired))
	}
	return len(expired)
}
