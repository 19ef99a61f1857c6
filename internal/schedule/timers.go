package schedule

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// defaultMaxTimerChunk bounds a single in-memory timer wait. Waits beyond the
// chunk are decomposed into successive shorter waits; the remaining delay is
// recomputed from the clock on every hop, so very long waits (months, years)
// still fire at their absolute due time.
const defaultMaxTimerChunk = 10 * 24 * time.Hour

// timerRegistry maps entry ids to armed timer handles. At most one handle
// exists per id; arming an id again supersedes the previous handle.
type timerRegistry struct {
	clk      clock.Clock
	maxChunk time.Duration

	mu      sync.Mutex
	nextGen uint64
	armed   map[int64]*timerHandle
}

type timerHandle struct {
	gen   uint64
	timer *clock.Timer
}

func newTimerRegistry(clk clock.Clock, maxChunk time.Duration) *timerRegistry {
	if maxChunk <= 0 {
		maxChunk = defaultMaxTimerChunk
	}
	return &timerRegistry{
		clk:      clk,
		maxChunk: maxChunk,
		armed:    map[int64]*timerHandle{},
	}
}

// arm schedules fire(id) for dueAt, replacing any existing handle for id.
// A dueAt at or before now fires on its own goroutine right away.
func (r *timerRegistry) arm(id int64, dueAt time.Time, fire func(id int64)) {
	r.mu.Lock()
	if h := r.armed[id]; h != nil && h.timer != nil {
		h.timer.Stop()
	}
	delete(r.armed, id)

	delay := dueAt.Sub(r.clk.Now())
	if delay <= 0 {
		r.mu.Unlock()
		go fire(id)
		return
	}

	r.nextGen++
	gen := r.nextGen
	h := &timerHandle{gen: gen}
	r.armed[id] = h
	h.timer = r.clk.AfterFunc(r.clampChunk(delay), func() { r.hop(id, gen, dueAt, fire) })
	r.mu.Unlock()
}

// hop runs when one wait chunk elapses: either re-arm for the remaining
// delay or fire.
func (r *timerRegistry) hop(id int64, gen uint64, dueAt time.Time, fire func(id int64)) {
	r.mu.Lock()
	h := r.armed[id]
	if h == nil || h.gen != gen {
		// Cancelled or superseded while this chunk was pending.
		r.mu.Unlock()
		return
	}
	remaining := dueAt.Sub(r.clk.Now())
	if remaining > 0 {
		h.timer = r.clk.AfterFunc(r.clampChunk(remaining), func() { r.hop(id, gen, dueAt, fire) })
		r.mu.Unlock()
		return
	}
	delete(r.armed, id)
	r.mu.Unlock()
	fire(id)
}

func (r *timerRegistry) clampChunk(d time.Duration) time.Duration {
	if d > r.maxChunk {
		return r.maxChunk
	}
	return d
}

// cancel is idempotent; cancelling an unarmed id is a no-op.
func (r *timerRegistry) cancel(id int64) {
	r.mu.Lock()
	if h := r.armed[id]; h != nil {
		if h.timer != nil {
			h.timer.Stop()
		}
		delete(r.armed, id)
	}
	r.mu.Unlock()
}

func (r *timerRegistry) stopAll() {
	r.mu.Lock()
	for id, h := range r.armed {
		if h.timer != nil {
			h.timer.Stop()
		}
		delete(r.armed, id)
	}
	r.mu.Unlock()
}

// armedCount reports how many handles are currently armed.
func (r *timerRegistry) armedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.armed)
}

// isArmed reports whether id currently has an armed handle.
func (r *timerRegistry) isArmed(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed[id] != nil
}
