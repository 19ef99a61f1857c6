// Package storage persists schedule entries.
//
// It implements the schedule.Store contract on SQLite (modernc.org/sqlite,
// cgo-free). Deactivated entries are retained for audit until the retention
// policy prunes them.
package storage
