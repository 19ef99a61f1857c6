package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// waitUntil polls cond on real time; mock-clock timer callbacks run on their
// own goroutines, so tests synchronize on observable effects instead of
// sleeping.
func waitUntil(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRegistryChunkedLongWait(t *testing.T) {
	t.Parallel()
	// A due time several chunks away must still fire, once, at the absolute
	// deadline rather than after the first chunk.
	reg := newTimerRegistry(clock.New(), 20*time.Millisecond)

	var fires int64
	start := time.Now()
	reg.arm(1, start.Add(90*time.Millisecond), func(int64) { atomic.AddInt64(&fires, 1) })

	waitUntil(t, 2*time.Second, func() bool { return atomic.LoadInt64(&fires) == 1 })
	if elapsed := time.Since(start); elapsed < 85*time.Millisecond {
		t.Fatalf("fired after %v, before the due time", elapsed)
	}

	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt64(&fires); n != 1 {
		t.Fatalf("fired %d times, want 1", n)
	}
	if reg.armedCount() != 0 {
		t.Fatalf("armed count = %d after firing", reg.armedCount())
	}
}

func TestRegistryYearLongWait(t *testing.T) {
	t.Parallel()
	// A due time a year out spans dozens of default-sized chunks. The due
	// instant is recomputed from the clock on every hop, so the firing lands
	// on the absolute deadline no matter how the wait was sliced.
	mock := clock.NewMock()
	mock.Set(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	reg := newTimerRegistry(mock, 0)

	dueAt := mock.Now().Add(365 * 24 * time.Hour)
	var fires int64
	reg.arm(1, dueAt, func(int64) { atomic.AddInt64(&fires, 1) })

	for day := 0; day < 360; day += 10 {
		mock.Add(10 * 24 * time.Hour)
		time.Sleep(2 * time.Millisecond)
	}
	if n := atomic.LoadInt64(&fires); n != 0 {
		t.Fatalf("fired %d times before the due date", n)
	}

	mock.Add(10 * 24 * time.Hour)
	waitUntil(t, 2*time.Second, func() bool { return atomic.LoadInt64(&fires) == 1 })
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt64(&fires); n != 1 {
		t.Fatalf("fired %d times, want 1", n)
	}
}

func TestRegistryPastDueFiresImmediately(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	reg := newTimerRegistry(mock, 0)

	var fires int64
	reg.arm(7, mock.Now().Add(-time.Hour), func(int64) { atomic.AddInt64(&fires, 1) })

	waitUntil(t, 2*time.Second, func() bool { return atomic.LoadInt64(&fires) == 1 })
	if reg.isArmed(7) {
		t.Fatal("past-due arm should not leave a handle")
	}
}

func TestRegistryRearmSupersedes(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	reg := newTimerRegistry(mock, 0)

	var fires int64
	reg.arm(3, mock.Now().Add(time.Hour), func(int64) { atomic.AddInt64(&fires, 1) })
	reg.arm(3, mock.Now().Add(2*time.Hour), func(int64) { atomic.AddInt64(&fires, 1) })

	mock.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt64(&fires); n != 0 {
		t.Fatalf("superseded timer fired %d times", n)
	}

	mock.Add(time.Hour)
	waitUntil(t, 2*time.Second, func() bool { return atomic.LoadInt64(&fires) == 1 })
}

func TestRegistryCancelIdempotent(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	reg := newTimerRegistry(mock, 0)

	var fires int64
	reg.arm(5, mock.Now().Add(time.Minute), func(int64) { atomic.AddInt64(&fires, 1) })
	reg.cancel(5)
	reg.cancel(5)
	reg.cancel(99)

	mock.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt64(&fires); n != 0 {
		t.Fatalf("cancelled timer fired %d times", n)
	}
	if reg.armedCount() != 0 {
		t.Fatalf("armed count = %d after cancel", reg.armedCount())
	}
}

func TestRegistryStopAll(t *testing.T) {
	t.Parallel()
	mock := clock.NewMock()
	reg := newTimerRegistry(mock, 0)

	var fires int64
	for id := int64(1); id <= 4; id++ {
		reg.arm(id, mock.Now().Add(time.Minute), func(int64) { atomic.AddInt64(&fires, 1) })
	}
	reg.stopAll()

	mock.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt64(&fires); n != 0 {
		t.Fatalf("stopped timers fired %d times", n)
	}
}
