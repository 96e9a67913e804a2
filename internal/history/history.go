// Package history keeps an append-only record of observations and alerts
// for operator diagnostics. Nothing in-process reads it back; failures are
// logged and never block the poll loop.
package history

import (
	"context"
	"errors"
	"strings"

	"pagewatch/internal/monitor"
	"pagewatch/pkg/logx"
)

// Config selects the history backend.
//
// Driver values:
//   - "" or "none": history disabled (no-op store)
//   - "sqlite": SQLite database file
type Config struct {
	Driver string
	Path   string
}

// Store records one row per observation.
type Store interface {
	Record(ctx context.Context, url string, obs monitor.Observation, alerted bool) error
	Close() error
}

// Open initializes the configured store. A disabled driver yields a no-op
// store so callers never branch on nil.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none":
		return nopStore{}, nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("history: unknown driver: " + driver)
	}
}

type nopStore struct{}

func (nopStore) Record(context.Context, string, monitor.Observation, bool) error { return nil }
func (nopStore) Close() error                                                    { return nil }
