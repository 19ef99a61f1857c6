// Package schedule implements chimebot's durable deferred/recurring delivery
// engine.
//
// # Overview
//
// Callers register entries ("deliver this payload to this owner at time T,
// optionally repeating every interval I"). Entries are persisted through the
// Store interface so they survive restarts; on Start the engine reloads all
// active entries and arms one in-memory timer per entry. When a timer elapses
// the engine invokes the Sink callback exactly once per due occurrence, then
// either advances a recurring entry to its next occurrence or deactivates a
// one-shot.
//
// # Intervals
//
// Recurrence intervals use a compact <amount><unit> grammar: "15m", "2h",
// "1d", "2w", "3mo", "1y". Month is spelled "mo" so it cannot be confused
// with "m" (minute). Minutes, hours, days and weeks are fixed-duration
// additions; months and years use calendar arithmetic with end-of-month
// clamping (Jan 31 + 1mo is the last day of February).
//
// # Long waits
//
// Timer waits are decomposed into bounded chunks: a wait longer than the
// registry's chunk ceiling re-arms itself and recomputes the remaining delay
// from the clock on every hop. A "+1y" entry therefore fires at its absolute
// due time instead of overflowing or truncating a single native timer.
//
// # Concurrency
//
// Firings for distinct entries may run concurrently. A single entry never has
// two in-flight firings: the next timer is armed only after the current
// firing's persistence step completed. Cancel racing an in-flight firing is
// tolerated; the firing path re-checks the entry's active flag after load.
package schedule
