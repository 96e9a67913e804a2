package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pagewatch/internal/monitor"
	"pagewatch/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	url             TEXT NOT NULL,
	at              TEXT NOT NULL,
	found_disappear TEXT NOT NULL,
	found_appear    TEXT NOT NULL,
	digest          TEXT NOT NULL,
	alerted         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_observations_url_at ON observations(url, at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history: sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Record(ctx context.Context, url string, obs monitor.Observation, alerted bool) error {
	fd, err := json.Marshal(obs.FoundDisappear)
	if err != nil {
		return err
	}
	fa, err := json.Marshal(obs.FoundAppear)
	if err != nil {
		return err
	}

	alertedInt := 0
	if alerted {
		alertedInt = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO observations (url, at, found_disappear, found_appear, digest, alerted)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		url, obs.Timestamp.UTC().Format(time.RFC3339), string(fd), string(fa), obs.Digest, alertedInt)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
