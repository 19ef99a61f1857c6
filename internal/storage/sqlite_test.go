package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"chimebot/internal/schedule"
	logx "chimebot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenRejectsMissingDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty driver")
	}
	if _, err := Open(Config{Driver: "none"}, logx.Nop()); err == nil {
		t.Fatal("expected error for driver none")
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	expires := due.Add(72 * time.Hour)
	id, err := st.Insert(ctx, schedule.Entry{
		Owner:     "100:7",
		Payload:   "standup",
		DueAt:     due,
		Recurring: true,
		Interval:  "1d",
		ExpiresAt: &expires,
		Active:    true,
		CreatedAt: due.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Insert returned id %d", id)
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Owner != "100:7" || got.Payload != "standup" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.DueAt.Equal(due) || !got.Recurring || got.Interval != "1d" || !got.Active {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
}

func TestGetUnknownID(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	if _, err := st.Get(context.Background(), 404); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}

func TestNullableColumnsStayNull(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.Insert(ctx, schedule.Entry{
		Owner: "100", Payload: "once", DueAt: time.Now().Add(time.Hour), Active: true,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Recurring || got.Interval != "" || got.ExpiresAt != nil {
		t.Fatalf("one-shot entry round trip mismatch: %+v", got)
	}
}

func TestUpdateDueAt(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)
	id, err := st.Insert(ctx, schedule.Entry{
		Owner: "100", Payload: "p", DueAt: due, Recurring: true, Interval: "1w",
		Active: true, CreatedAt: due,
	})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	next := due.Add(7 * 24 * time.Hour)
	if err := st.UpdateDueAt(ctx, id, next); err != nil {
		t.Fatalf("UpdateDueAt error: %v", err)
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !got.DueAt.Equal(next) {
		t.Fatalf("DueAt = %v, want %v", got.DueAt, next)
	}

	if err := st.UpdateDueAt(ctx, 404, next); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("UpdateDueAt(unknown) = %v, want ErrNotFound", err)
	}

	// A deactivated row is off limits; a reschedule racing a cancel must not
	// write through it.
	if _, err := st.Deactivate(ctx, id); err != nil {
		t.Fatalf("Deactivate error: %v", err)
	}
	if err := st.UpdateDueAt(ctx, id, next.Add(time.Hour)); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("UpdateDueAt(inactive) = %v, want ErrNotFound", err)
	}
	got, err = st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !got.DueAt.Equal(next) {
		t.Fatalf("inactive row mutated: DueAt = %v", got.DueAt)
	}
}

func TestListActiveOrdersAndFilters(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

	mustInsert := func(owner string, due time.Time, active bool) int64 {
		t.Helper()
		id, err := st.Insert(ctx, schedule.Entry{
			Owner: owner, Payload: "p", DueAt: due, Active: active, CreatedAt: base,
		})
		if err != nil {
			t.Fatalf("Insert error: %v", err)
		}
		return id
	}

	late := mustInsert("a", base.Add(2*time.Hour), true)
	early := mustInsert("a", base.Add(time.Hour), true)
	mustInsert("b", base.Add(30*time.Minute), true)
	mustInsert("a", base, false)

	all, err := st.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListActive = %d entries, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].DueAt.Before(all[i-1].DueAt) {
			t.Fatalf("ListActive not ordered by due_at: %v before %v", all[i].DueAt, all[i-1].DueAt)
		}
	}

	byOwner, err := st.ListActiveByOwner(ctx, "a")
	if err != nil {
		t.Fatalf("ListActiveByOwner error: %v", err)
	}
	if len(byOwner) != 2 {
		t.Fatalf("ListActiveByOwner(a) = %d entries, want 2", len(byOwner))
	}
	if byOwner[0].ID != early || byOwner[1].ID != late {
		t.Fatalf("ListActiveByOwner order: got ids %d,%d want %d,%d",
			byOwner[0].ID, byOwner[1].ID, early, late)
	}
}

func TestDeactivateFlipsOnce(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.Insert(ctx, schedule.Entry{
		Owner: "a", Payload: "p", DueAt: time.Now().Add(time.Hour), Active: true,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	flipped, err := st.Deactivate(ctx, id)
	if err != nil || !flipped {
		t.Fatalf("first Deactivate = (%v, %v), want (true, nil)", flipped, err)
	}
	flipped, err = st.Deactivate(ctx, id)
	if err != nil || flipped {
		t.Fatalf("second Deactivate = (%v, %v), want (false, nil)", flipped, err)
	}
	flipped, err = st.Deactivate(ctx, 404)
	if err != nil || flipped {
		t.Fatalf("Deactivate(unknown) = (%v, %v), want (false, nil)", flipped, err)
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Active {
		t.Fatal("entry still active after Deactivate")
	}
}

func TestPruneInactive(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

	// Run the store on simulated time so deactivation stamps and the prune
	// cutoff are deterministic.
	clk := base
	st.(*sqliteStore).now = func() time.Time { return clk }

	keep, err := st.Insert(ctx, schedule.Entry{
		Owner: "a", Payload: "live", DueAt: base.Add(time.Hour), Active: true, CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	gone, err := st.Insert(ctx, schedule.Entry{
		Owner: "a", Payload: "dead", DueAt: base, Active: true, CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if _, err := st.Deactivate(ctx, gone); err != nil {
		t.Fatalf("Deactivate error: %v", err)
	}

	// Fresh inactive rows survive the horizon.
	clk = base.Add(time.Hour)
	n, err := st.PruneInactive(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneInactive error: %v", err)
	}
	if n != 0 {
		t.Fatalf("PruneInactive removed %d fresh rows, want 0", n)
	}

	// Two days later the deactivated row ages out; the active one stays.
	clk = base.Add(48 * time.Hour)
	n, err = st.PruneInactive(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneInactive error: %v", err)
	}
	if n != 1 {
		t.Fatalf("PruneInactive removed %d rows, want 1", n)
	}
	if _, err := st.Get(ctx, gone); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("pruned entry still readable: %v", err)
	}
	if _, err := st.Get(ctx, keep); err != nil {
		t.Fatalf("active entry pruned: %v", err)
	}
}
