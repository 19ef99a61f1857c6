package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	logx "chimebot/pkg/logx"
)

// State is the engine lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateLoading
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Options tunes engine construction. The zero value is usable.
type Options struct {
	Logger logx.Logger
	// Clock defaults to the wall clock; tests inject a mock.
	Clock clock.Clock
	// MaxTimerChunk bounds a single timer wait (see timerRegistry).
	MaxTimerChunk time.Duration
}

// Engine orchestrates durable scheduling: load-on-start recovery,
// registration, firing, rescheduling of recurring entries and deactivation
// of expired/one-shot entries.
type Engine struct {
	store Store
	sink  Sink
	log   logx.Logger
	clk   clock.Clock
	reg   *timerRegistry

	mu        sync.Mutex
	state     State
	runCtx    context.Context
	runCancel context.CancelFunc

	// dueOverride keeps the authoritative next occurrence for entries whose
	// last dueAt write failed; the in-memory timer stays the source of truth
	// and the write is retried at the next firing.
	ovMu        sync.Mutex
	dueOverride map[int64]time.Time
}

func NewEngine(store Store, sink Sink, opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		store:       store,
		sink:        sink,
		log:         log,
		clk:         clk,
		reg:         newTimerRegistry(clk, opts.MaxTimerChunk),
		dueOverride: map[int64]time.Time{},
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start loads all active entries from the store and arms one timer per
// entry. Entries whose due time already passed fire immediately, exactly
// once. Recovery fully supersedes any previous in-memory state.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.state = StateLoading
	e.runCtx, e.runCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.reg.stopAll()

	entries, err := e.store.ListActive(e.runCtx)
	if err != nil {
		e.mu.Lock()
		e.state = StateStopped
		if e.runCancel != nil {
			e.runCancel()
		}
		e.runCtx, e.runCancel = nil, nil
		e.mu.Unlock()
		return fmt.Errorf("load active entries: %w", err)
	}

	for _, en := range entries {
		e.reg.arm(en.ID, en.DueAt, e.onFire)
	}

	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()

	e.log.Info("schedule engine started", logx.Int("entries", len(entries)))
	return nil
}

// Stop disarms all timers. In-flight firings finish on their own; their
// contexts are cancelled.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	if e.runCancel != nil {
		e.runCancel()
	}
	e.runCtx, e.runCancel = nil, nil
	e.mu.Unlock()

	e.reg.stopAll()
	e.log.Info("schedule engine stopped")
}

// Create validates the request, persists the entry and arms its timer.
// The returned id is assigned by the store.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (int64, error) {
	if e.State() != StateRunning {
		return 0, errors.New("engine not running")
	}

	now := e.clk.Now()
	if strings.TrimSpace(req.Owner) == "" {
		return 0, &ValidationError{Field: "owner", Reason: "required"}
	}
	if strings.TrimSpace(req.Payload) == "" {
		return 0, &ValidationError{Field: "payload", Reason: "required"}
	}
	if req.DueAt.IsZero() {
		return 0, &ValidationError{Field: "due_at", Reason: "required"}
	}
	if !req.AllowPast && req.DueAt.Before(now) {
		return 0, &ValidationError{Field: "due_at", Reason: "is in the past"}
	}
	if req.Recurring {
		if _, err := ParseInterval(req.Interval); err != nil {
			return 0, &ValidationError{Field: "interval", Err: err}
		}
	} else if strings.TrimSpace(req.Interval) != "" {
		return 0, &ValidationError{Field: "interval", Reason: "set on a non-recurring entry"}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(req.DueAt) {
		return 0, &ValidationError{Field: "expires_at", Reason: "must be after due_at"}
	}

	entry := Entry{
		Owner:     req.Owner,
		Payload:   req.Payload,
		DueAt:     req.DueAt.UTC(),
		Recurring: req.Recurring,
		Interval:  strings.TrimSpace(req.Interval),
		ExpiresAt: req.ExpiresAt,
		Active:    true,
		CreatedAt: now.UTC(),
	}

	id, err := e.store.Insert(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("persist entry: %w", err)
	}

	e.reg.arm(id, entry.DueAt, e.onFire)
	e.log.Info("entry created",
		logx.Int64("id", id),
		logx.String("owner", entry.Owner),
		logx.Time("due_at", entry.DueAt),
		logx.Bool("recurring", entry.Recurring),
	)
	return id, nil
}

// Cancel deactivates an entry and disarms its timer. It returns false if the
// entry does not exist or is already inactive.
func (e *Engine) Cancel(ctx context.Context, id int64) (bool, error) {
	flipped, err := e.store.Deactivate(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deactivate entry %d: %w", id, err)
	}
	// Disarm regardless: a cancel racing an in-flight firing must not leave
	// a resurrected timer behind.
	e.reg.cancel(id)
	e.clearOverride(id)
	if flipped {
		e.log.Info("entry cancelled", logx.Int64("id", id))
	}
	return flipped, nil
}

// Get returns an entry by id (ErrNotFound for unknown ids).
func (e *Engine) Get(ctx context.Context, id int64) (Entry, error) {
	return e.store.Get(ctx, id)
}

// List returns active entries, optionally filtered by owner.
func (e *Engine) List(ctx context.Context, owner string) ([]Entry, error) {
	if strings.TrimSpace(owner) == "" {
		return e.store.ListActive(ctx)
	}
	return e.store.ListActiveByOwner(ctx, owner)
}

// storeRetryDelay is how long the engine waits before re-checking an entry
// whose load failed at fire time.
const storeRetryDelay = 30 * time.Second

// onFire runs when an entry's timer elapses.
func (e *Engine) onFire(id int64) {
	ctx := e.runContext()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	entry, err := e.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		e.log.Debug("fired entry no longer exists", logx.Int64("id", id))
		return
	}
	if err != nil {
		// Transient store failure: don't drop the firing, try again shortly.
		e.log.Error("load at fire time failed; retrying", logx.Int64("id", id), logx.Err(err))
		e.reg.arm(id, e.clk.Now().Add(storeRetryDelay), e.onFire)
		return
	}
	if !entry.Active {
		// Lost the race against Cancel.
		e.log.Debug("fired entry already inactive", logx.Int64("id", id))
		return
	}

	if ov, ok := e.override(id); ok {
		// The persisted dueAt is stale from a failed reschedule write; the
		// in-memory occurrence is authoritative.
		entry.DueAt = ov
	}

	if err := e.sink(ctx, entry.Owner, entry.Payload); err != nil {
		// Sink failures are surfaced to operators but never stop the entry's
		// lifecycle; a recurring entry still advances.
		e.log.Warn("delivery failed",
			logx.Int64("id", id),
			logx.String("owner", entry.Owner),
			logx.Err(err),
		)
	} else {
		e.log.Debug("entry fired", logx.Int64("id", id), logx.String("owner", entry.Owner))
	}

	if !entry.Recurring {
		if _, err := e.store.Deactivate(ctx, id); err != nil {
			// The entry stays active in the store and will fire again on the
			// next startup reconciliation.
			e.log.Error("deactivate after firing failed", logx.Int64("id", id), logx.Err(err))
		}
		e.clearOverride(id)
		return
	}

	e.reschedule(ctx, entry)
}

// reschedule advances a recurring entry past now and either re-arms it or
// deactivates it once the next occurrence reaches the expiry bound.
func (e *Engine) reschedule(ctx context.Context, entry Entry) {
	iv, err := ParseInterval(entry.Interval)
	if err != nil {
		// Interval was validated at creation; a bad value here means the row
		// was edited out-of-band. Deactivate rather than refire forever.
		e.log.Error("stored interval unparseable; deactivating",
			logx.Int64("id", entry.ID),
			logx.String("interval", entry.Interval),
			logx.Err(err),
		)
		if _, derr := e.store.Deactivate(ctx, entry.ID); derr != nil {
			e.log.Error("deactivate failed", logx.Int64("id", entry.ID), logx.Err(derr))
		}
		e.clearOverride(entry.ID)
		return
	}

	// Occurrences missed while the process was down collapse into the firing
	// that just happened; the next occurrence is always in the future.
	now := e.clk.Now()
	next := iv.Next(entry.DueAt)
	for !next.After(now) && !expired(next, entry.ExpiresAt) {
		next = iv.Next(next)
	}

	if expired(next, entry.ExpiresAt) {
		if _, err := e.store.Deactivate(ctx, entry.ID); err != nil {
			e.log.Error("deactivate expired entry failed", logx.Int64("id", entry.ID), logx.Err(err))
		} else {
			e.log.Info("entry expired", logx.Int64("id", entry.ID), logx.Time("next", next))
		}
		e.clearOverride(entry.ID)
		return
	}

	switch err := e.store.UpdateDueAt(ctx, entry.ID, next); {
	case errors.Is(err, ErrNotFound):
		// The entry was cancelled or removed while this firing was in
		// flight; do not resurrect its timer.
		e.log.Debug("entry gone before reschedule", logx.Int64("id", entry.ID))
		e.clearOverride(entry.ID)
		return
	case err != nil:
		// Keep the timer armed on the computed occurrence and retry the write
		// at the next firing; one failed write must not lose the entry.
		e.setOverride(entry.ID, next)
		e.log.Error("reschedule write failed; keeping in-memory timer",
			logx.Int64("id", entry.ID),
			logx.Time("next", next),
			logx.Err(err),
		)
	default:
		e.clearOverride(entry.ID)
	}

	e.reg.arm(entry.ID, next, e.onFire)
}

func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateStopped {
		return nil
	}
	return e.runCtx
}

func (e *Engine) override(id int64) (time.Time, bool) {
	e.ovMu.Lock()
	defer e.ovMu.Unlock()
	t, ok := e.dueOverride[id]
	return t, ok
}

func (e *Engine) setOverride(id int64, t time.Time) {
	e.ovMu.Lock()
	e.dueOverride[id] = t
	e.ovMu.Unlock()
}

func (e *Engine) clearOverride(id int64) {
	e.ovMu.Lock()
	delete(e.dueOverride, id)
	e.ovMu.Unlock()
}
