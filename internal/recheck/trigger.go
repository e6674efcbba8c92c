// Package recheck re-runs conflict evaluation while a booking form is being
// edited. Each change to the watched fields schedules a window load; results
// that arrive for fields the user has since changed are dropped, so a slow
// earlier load can never overwrite a newer answer.
package recheck

import (
	"context"
	"sync"
	"time"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateResolved State = "resolved"
	// StateUnknown means the last load failed. It is never a clear result.
	StateUnknown State = "unknown"
	// StateInvalid means the times themselves are unusable (malformed or
	// end not after start). No load is made.
	StateInvalid State = "invalid"
)

// Fields are the form values that trigger a re-evaluation.
type Fields struct {
	ResourceID string `json:"resource_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// Complete reports whether every field is filled in.
func (f Fields) Complete() bool {
	return f.ResourceID != "" && f.Date != "" && f.StartTime != "" && f.EndTime != ""
}

// Snapshot is the observable state of a Trigger.
type Snapshot struct {
	State  State
	Fields Fields
	Result conflict.Result
	Err    error
	// Previous is the last resolved result, kept while loading or unknown.
	Previous *conflict.Result
	// Version increases with every transition.
	Version uint64
}

// CanSubmit is true only for a resolved, conflict-free state. Unknown,
// invalid and loading states block submission.
func (s Snapshot) CanSubmit() bool {
	return s.State == StateResolved && !s.Result.HasConflict
}

type Config struct {
	Kind      conflict.ResourceKind
	ExcludeID string
	// Debounce delays the load after a change. Zero loads immediately.
	Debounce time.Duration
	// FetchTimeout bounds a single load. Zero waits indefinitely.
	FetchTimeout time.Duration
	// OnChange is called after every state transition, in transition order.
	// It must not call back into the Trigger.
	OnChange func(Snapshot)
}

type Trigger struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	loader   window.Loader
	cfg      Config
	log      *logger.Logger
	snap     Snapshot
	timer    *time.Timer
	closed   bool
	pending  sync.WaitGroup
}

func New(ctx context.Context, loader window.Loader, cfg Config, log *logger.Logger) *Trigger {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Trigger{
		ctx:    ctx,
		cancel: cancel,
		loader: loader,
		cfg:    cfg,
		log:    log,
		snap:   Snapshot{State: StateIdle},
	}
}

// Snapshot returns the current state.
func (t *Trigger) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Set records new form values. Incomplete values return the trigger to idle.
// Values equal to the current ones are ignored while loading, resolved or
// invalid; from idle or unknown they schedule a fresh load.
func (t *Trigger) Set(fields Fields) Snapshot {
	return t.Patch(func(Fields) Fields { return fields })
}

// Patch derives the new form values from the current ones under the
// trigger's lock, so concurrent partial edits are never lost. fn must not
// call back into the Trigger. The result is handled like Set.
func (t *Trigger) Patch(fn func(Fields) Fields) Snapshot {
	t.mu.Lock()
	fields := fn(t.snap.Fields)
	if t.closed || (fields == t.snap.Fields && t.snap.settled()) {
		snap := t.snap
		t.mu.Unlock()
		return snap
	}

	t.stopTimerLocked()
	if t.snap.State == StateResolved {
		prev := t.snap.Result
		t.snap.Previous = &prev
	}
	t.snap.Fields = fields
	t.snap.Result = conflict.Result{}
	t.snap.Err = nil

	if !fields.Complete() {
		t.snap.State = StateIdle
		return t.commitLocked()
	}
	if err := conflict.ValidateRange(fields.StartTime, fields.EndTime); err != nil {
		t.snap.State = StateInvalid
		t.snap.Err = err
		return t.commitLocked()
	}

	t.snap.State = StateLoading
	t.pending.Add(1)
	t.timer = time.AfterFunc(t.cfg.Debounce, func() {
		defer t.pending.Done()
		t.run(fields)
	})
	return t.commitLocked()
}

func (s Snapshot) settled() bool {
	switch s.State {
	case StateLoading, StateResolved, StateInvalid:
		return true
	}
	return false
}

// Close stops pending loads. In-flight loads are cancelled and their results dropped.
func (t *Trigger) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.stopTimerLocked()
	t.mu.Unlock()

	t.cancel()
	t.pending.Wait()
}

func (t *Trigger) stopTimerLocked() {
	if t.timer != nil && t.timer.Stop() {
		// The callback will never run, so it cannot call Done itself.
		t.pending.Done()
	}
	t.timer = nil
}

func (t *Trigger) run(fields Fields) {
	ctx := t.ctx
	if t.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.FetchTimeout)
		defer cancel()
	}

	result, err := window.Check(ctx, t.loader, t.cfg.Kind, conflict.Candidate{
		ResourceID: fields.ResourceID,
		Date:       fields.Date,
		StartTime:  fields.StartTime,
		EndTime:    fields.EndTime,
		ExcludeID:  t.cfg.ExcludeID,
	})

	t.mu.Lock()
	if t.closed || t.snap.Fields != fields || t.snap.State != StateLoading {
		t.mu.Unlock()
		t.log.Debug("discarding stale conflict result",
			"resource_id", fields.ResourceID, "date", fields.Date,
			"start_time", fields.StartTime, "end_time", fields.EndTime)
		return
	}

	if err != nil {
		t.snap.State = StateUnknown
		t.snap.Err = err
		t.log.Warn("conflict re-evaluation failed",
			"resource_id", fields.ResourceID, "date", fields.Date, "error", err)
	} else {
		t.snap.State = StateResolved
		t.snap.Result = result
		t.snap.Previous = nil
	}
	t.commitLocked()
}

// commitLocked publishes the current snapshot and releases t.mu. Holding
// notifyMu across the unlock keeps OnChange calls in transition order.
func (t *Trigger) commitLocked() Snapshot {
	t.snap.Version++
	snap := t.snap

	t.notifyMu.Lock()
	t.mu.Unlock()
	defer t.notifyMu.Unlock()

	if t.cfg.OnChange != nil {
		t.cfg.OnChange(snap)
	}
	return snap
}
