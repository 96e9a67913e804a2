package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pagewatch/internal/fetch"
	"pagewatch/pkg/logx"
)

// Notifier delivers a message. Implementations swallow delivery failures;
// the scheduler never sees them.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// EvidenceCapture performs the best-effort secondary fetch on alert.
type EvidenceCapture interface {
	Take(ctx context.Context, url string) (string, error)
}

// StateStore persists the per-target observations.
type StateStore interface {
	Load() map[string]Observation
	Save(map[string]Observation) error
}

// HistoryStore records observations for diagnostics.
type HistoryStore interface {
	Record(ctx context.Context, url string, obs Observation, alerted bool) error
}

// HeartbeatWriter refreshes the liveness signal after each tick.
type HeartbeatWriter interface {
	Beat() error
}

// SchedulerConfig wires the poll loop.
type SchedulerConfig struct {
	Targets        []Target
	PollInterval   time.Duration
	DigestInterval time.Duration

	Fetcher   fetch.Fetcher
	Notifier  Notifier
	Evidence  EvidenceCapture
	State     StateStore
	History   HistoryStore
	Heartbeat HeartbeatWriter

	// TargetUpdates optionally delivers hot-reloaded target lists, swapped
	// in between ticks. Nil disables hot reload.
	TargetUpdates <-chan []Target

	Logger logx.Logger
}

// Scheduler drives the fixed-interval poll loop. Targets are processed
// sequentially in configured order; the in-memory state map is owned
// exclusively by this loop.
type Scheduler struct {
	cfg     SchedulerConfig
	targets []Target
	log     logx.Logger

	state map[string]Observation

	startedAt  time.Time
	lastDigest time.Time

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		targets: cfg.Targets,
		log:     cfg.Logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Run loads persisted state, announces startup, and polls until ctx is
// canceled. It only returns the context's error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.state = s.cfg.State.Load()
	s.startedAt = s.now()
	s.lastDigest = s.startedAt

	s.log.Info("monitor starting",
		logx.Int("targets", len(s.targets)),
		logx.Duration("poll_interval", s.cfg.PollInterval))
	for i, t := range s.targets {
		s.log.Info("monitoring target",
			logx.Int("index", i+1),
			logx.String("label", t.Label()),
			logx.String("url", t.URL))
	}
	s.cfg.Notifier.Notify(ctx, s.startupMessage())

	for {
		s.applyTargetUpdate()

		for _, t := range s.targets {
			if err := s.processTarget(ctx, t); err != nil {
				return err
			}
		}

		if s.now().Sub(s.lastDigest) >= s.cfg.DigestInterval {
			s.cfg.Notifier.Notify(ctx, s.digestMessage())
			s.log.Info("periodic status digest sent")
			s.lastDigest = s.now()
		}

		if err := s.cfg.Heartbeat.Beat(); err != nil {
			s.log.Error("heartbeat refresh failed", logx.Err(err))
		}

		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// processTarget runs one target through fetch → evaluate → decide →
// {evidence, notify} → persist. A per-target fetch failure is logged and
// skipped; only context cancellation stops the pass.
func (s *Scheduler) processTarget(ctx context.Context, t Target) error {
	snap, err := s.cfg.Fetcher.Fetch(ctx, t.URL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f := fetch.AsFailure(err)
		s.log.Error("fetch failed; skipping target this tick",
			logx.String("url", t.URL),
			logx.String("class", string(f.Class)),
			logx.Err(f.Err))
		return nil
	}

	curr := NewObservation(snap.Text, t, snap.FetchedAt)

	var prev *Observation
	if p, ok := s.state[t.URL]; ok {
		prev = &p
	}

	d := Decide(t, prev, curr)
	switch {
	case d.Baseline:
		s.log.Info("baseline established",
			logx.String("url", t.URL),
			logx.Strings("found_disappear", curr.FoundDisappear),
			logx.Strings("found_appear", curr.FoundAppear))
	case d.Alert:
		ev := AlertEvent{Target: t, Status: StatusLine(t, curr), Observation: curr}
		s.fireAlert(ctx, ev)
	case d.Changed:
		s.log.Info("markers changed without qualifying transition",
			logx.String("url", t.URL),
			logx.Strings("found_disappear", curr.FoundDisappear),
			logx.Strings("found_appear", curr.FoundAppear))
	}

	if err := s.cfg.History.Record(ctx, t.URL, curr, d.Alert); err != nil {
		s.log.Warn("history record failed", logx.String("url", t.URL), logx.Err(err))
	}

	s.state[t.URL] = curr
	if err := s.cfg.State.Save(s.state); err != nil {
		// In-memory state stays authoritative for this process; surface the
		// inconsistency loudly for the operator.
		s.log.Error("state persistence failed; continuing with in-memory state",
			logx.String("url", t.URL), logx.Err(err))
	}
	return nil
}

// fireAlert captures evidence and notifies. Evidence is fully decoupled:
// its failure is a warning and the notification still goes out.
func (s *Scheduler) fireAlert(ctx context.Context, ev AlertEvent) {
	s.log.Info("alert",
		logx.String("url", ev.Target.URL),
		logx.String("status", ev.Status))

	if path, err := s.cfg.Evidence.Take(ctx, ev.Target.URL); err != nil {
		s.log.Warn("evidence capture failed", logx.String("url", ev.Target.URL), logx.Err(err))
	} else {
		s.log.Info("evidence saved", logx.String("path", path))
	}

	s.cfg.Notifier.Notify(ctx, alertMessage(ev))
}

// applyTargetUpdate swaps in the latest hot-reloaded target list, if any.
// Persisted observations for surviving URLs are untouched.
func (s *Scheduler) applyTargetUpdate() {
	if s.cfg.TargetUpdates == nil {
		return
	}
	for {
		select {
		case targets := <-s.cfg.TargetUpdates:
			s.targets = targets
			s.log.Info("target list swapped", logx.Int("targets", len(targets)))
		default:
			return
		}
	}
}

func (s *Scheduler) startupMessage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚀 pagewatch started\n\nMonitoring %d targets:\n", len(s.targets))
	b.WriteString(s.targetList())
	fmt.Fprintf(&b, "\nPoll interval: %s\nStarted at: %s UTC",
		s.cfg.PollInterval, s.startedAt.UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

func (s *Scheduler) digestMessage() string {
	now := s.now()
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Monitor status: running\n\nMonitoring %d targets:\n", len(s.targets))
	b.WriteString(s.targetList())
	fmt.Fprintf(&b, "\nLast check: %s UTC\nUptime: %.1f hours",
		now.UTC().Format("2006-01-02 15:04:05"),
		now.Sub(s.startedAt).Hours())
	return b.String()
}

func (s *Scheduler) targetList() string {
	var b strings.Builder
	for i, t := range s.targets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Label())
	}
	return b.String()
}

func alertMessage(ev AlertEvent) string {
	return fmt.Sprintf("🔔 %s\n\n🎟️ %s\n🔗 %s\n\n📄 Current page text (first %d chars):\n%s",
		ev.Status, ev.Target.Label(), ev.Target.URL, snippetMax, ev.Observation.Snippet)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
