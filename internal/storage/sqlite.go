package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chimebot/internal/schedule"
	logx "chimebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	// now stamps deactivation and retention cutoffs; tests substitute a
	// fixed clock.
	now func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, now: time.Now}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Insert(ctx context.Context, e schedule.Entry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_entries(owner, payload, due_at, recurring, interval, expires_at, active, created_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.Owner, e.Payload, e.DueAt.UnixMilli(), boolInt(e.Recurring), nullStr(e.Interval),
		nullTime(e.ExpiresAt), boolInt(e.Active), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) UpdateDueAt(ctx context.Context, id int64, dueAt time.Time) error {
	// Guarded on active so a reschedule racing a cancel cannot mutate a row
	// that was just deactivated.
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_entries SET due_at = ? WHERE id = ? AND active = 1`,
		dueAt.UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

const entryColumns = `id, owner, payload, due_at, recurring, interval, expires_at, active, created_at`

func (s *sqliteStore) Get(ctx context.Context, id int64) (schedule.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Entry{}, schedule.ErrNotFound
	}
	return e, err
}

func (s *sqliteStore) ListActive(ctx context.Context) ([]schedule.Entry, error) {
	return s.list(ctx,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE active = 1 ORDER BY due_at ASC`)
}

func (s *sqliteStore) ListActiveByOwner(ctx context.Context, owner string) ([]schedule.Entry, error) {
	return s.list(ctx,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE active = 1 AND owner = ? ORDER BY due_at ASC`,
		owner)
}

func (s *sqliteStore) list(ctx context.Context, q string, args ...any) ([]schedule.Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Deactivate(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_entries SET active = 0, deactivated_at = ? WHERE id = ? AND active = 1`,
		s.now().UnixMilli(), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) PruneInactive(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM schedule_entries WHERE active = 0 AND deactivated_at IS NOT NULL AND deactivated_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (schedule.Entry, error) {
	var (
		e         schedule.Entry
		dueAt     int64
		recurring int
		interval  sql.NullString
		expiresAt sql.NullInt64
		active    int
		createdAt int64
	)
	err := r.Scan(&e.ID, &e.Owner, &e.Payload, &dueAt, &recurring, &interval, &expiresAt, &active, &createdAt)
	if err != nil {
		return schedule.Entry{}, err
	}
	e.DueAt = time.UnixMilli(dueAt).UTC()
	e.Recurring = recurring != 0
	e.Interval = interval.String
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64).UTC()
		e.ExpiresAt = &t
	}
	e.Active = active != 0
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return e, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
