// Package heartbeat maintains the liveness signal: a timestamp file
// rewritten every poll tick, plus systemd watchdog pings when running
// under systemd with WatchdogSec set.
package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pagewatch/pkg/logx"
)

// Writer owns the heartbeat file. Only the poll loop calls it.
type Writer struct {
	path string
	log  logx.Logger

	now func() time.Time
}

func NewWriter(path string, log logx.Logger) *Writer {
	return &Writer{path: path, log: log, now: time.Now}
}

// Ready announces startup to systemd. No-op outside systemd.
func (w *Writer) Ready() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		w.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		w.log.Debug("sd_notify ready sent")
	}
}

// Beat rewrites the heartbeat timestamp and pings the systemd watchdog.
func (w *Writer) Beat() error {
	if dir := filepath.Dir(w.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("heartbeat: create dir: %w", err)
		}
	}
	ts := w.now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(w.path, []byte(ts+"\n"), 0o644); err != nil {
		return fmt.Errorf("heartbeat: write: %w", err)
	}

	// Watchdog ping is a no-op unless systemd armed one.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	return nil
}

// Check validates the heartbeat file for an external liveness probe: the
// file must exist, parse as RFC 3339, and be no older than maxAge.
func Check(path string, maxAge time.Duration, now time.Time) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("heartbeat: parse timestamp: %w", err)
	}
	if age := now.Sub(ts); age > maxAge {
		return fmt.Errorf("heartbeat: too old: %s (max %s)", age.Round(time.Second), maxAge)
	}
	return nil
}

// MaxAge is the probe threshold: 3x the poll interval, leaving room for a
// slow pass over many targets before the process counts as unhealthy.
func MaxAge(pollInterval time.Duration) time.Duration {
	return 3 * pollInterval
}
