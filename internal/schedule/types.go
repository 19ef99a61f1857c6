package schedule

import (
	"context"
	"time"
)

// Entry is the durable unit of scheduling.
//
// DueAt is mutated by the engine each time a recurring entry refires; Active
// is toggled only by the engine. Everything else is immutable after creation.
type Entry struct {
	ID        int64
	Owner     string // opaque delivery context (e.g. "chatID" or "chatID:threadID")
	Payload   string // opaque data handed to the sink on firing
	DueAt     time.Time
	Recurring bool
	Interval  string // interval spec, set iff Recurring
	ExpiresAt *time.Time
	Active    bool
	CreatedAt time.Time
}

// Store is the persistence boundary for schedule entries. Implementations
// must provide at-least row-level atomicity per entry; no cross-entry
// transactions are required. Any operation may fail with a transient error;
// the engine surfaces such failures and retries persistence at its next
// mutation of the same entry.
type Store interface {
	// Insert persists a new entry and returns the store-assigned id.
	Insert(ctx context.Context, e Entry) (int64, error)
	// UpdateDueAt persists a recurring entry's next occurrence. It must only
	// touch rows that are still active and return ErrNotFound otherwise, so a
	// reschedule that lost a race against Cancel cannot revive the entry.
	UpdateDueAt(ctx context.Context, id int64, dueAt time.Time) error
	// Get returns the entry or ErrNotFound.
	Get(ctx context.Context, id int64) (Entry, error)
	// ListActive returns all active entries.
	ListActive(ctx context.Context) ([]Entry, error)
	// ListActiveByOwner returns active entries for one owner.
	ListActiveByOwner(ctx context.Context, owner string) ([]Entry, error)
	// Deactivate clears the active flag. It reports whether a row actually
	// flipped, so Cancel can distinguish "cancelled" from "already inactive".
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// Sink delivers a fired entry. It is registered once at engine construction
// and invoked once per firing. Errors are logged by the engine and never
// retried by the core; retry policy belongs to the sink itself.
type Sink func(ctx context.Context, owner, payload string) error

// CreateRequest carries the caller input for Engine.Create.
type CreateRequest struct {
	Owner     string
	Payload   string
	DueAt     time.Time
	Recurring bool
	Interval  string
	ExpiresAt *time.Time

	// AllowPast skips the past-due validation so a caller (or recovery code)
	// can register an entry that fires immediately.
	AllowPast bool
}
