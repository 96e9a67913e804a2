package evidence

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"pagewatch/pkg/logx"
)

// Sweeper deletes screenshots older than the retention period on a cron
// schedule, so long-running deployments don't fill the disk.
type Sweeper struct {
	dir       string
	retention time.Duration
	schedule  string
	log       logx.Logger

	c   *cron.Cron
	now func() time.Time
}

// NewSweeper builds a retention sweeper. A retention of 0 disables it.
func NewSweeper(dir string, retention time.Duration, schedule string, log logx.Logger) *Sweeper {
	if schedule == "" {
		schedule = "@daily"
	}
	return &Sweeper{dir: dir, retention: retention, schedule: schedule, log: log, now: time.Now}
}

// Start registers the cron entry and begins sweeping. No-op when disabled.
func (s *Sweeper) Start() error {
	if s.retention <= 0 {
		return nil
	}
	s.c = cron.New()
	if _, err := s.c.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.c.Start()
	s.log.Info("evidence retention sweep scheduled",
		logx.String("schedule", s.schedule), logx.Duration("retention", s.retention))
	return nil
}

// Stop halts the cron scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
}

// Sweep removes expired artifacts. Failures are warnings; the next run
// retries.
func (s *Sweeper) Sweep() {
	cutoff := s.now().Add(-s.retention)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("evidence sweep read failed", logx.String("dir", s.dir), logx.Err(err))
		}
		return
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".png" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("evidence sweep remove failed", logx.String("path", path), logx.Err(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info("evidence sweep completed", logx.Int("removed", removed))
	}
}
