package storage

import "time"

// Config configures storage.
//
// Driver values:
//   - "sqlite" (or "sqlite3"): SQLite database file; ":memory:" works for tests
//
// If Driver is empty or "none", Open fails: the scheduler cannot run without
// a durable store.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}
