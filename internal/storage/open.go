package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"chimebot/internal/schedule"
	logx "chimebot/pkg/logx"
)

// Store is the persistence API used by the engine plus lifecycle and
// retention operations owned by the app.
type Store interface {
	schedule.Store

	// PruneInactive deletes entries deactivated before now-olderThan and
	// returns how many rows were removed.
	PruneInactive(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "", "none":
		return nil, errors.New("storage driver is required")
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
