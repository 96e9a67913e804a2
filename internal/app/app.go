// Package app wires configuration into the running monitor: logging,
// browser, notifier, stores, scheduler, and the background goroutines.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"pagewatch/internal/browser"
	"pagewatch/internal/config"
	"pagewatch/internal/evidence"
	"pagewatch/internal/fetch"
	"pagewatch/internal/heartbeat"
	"pagewatch/internal/history"
	"pagewatch/internal/monitor"
	"pagewatch/internal/notify"
	"pagewatch/internal/runtime/supervisor"
	"pagewatch/internal/state"
	"pagewatch/pkg/logx"
)

// App owns everything with a lifecycle.
type App struct {
	cfg *config.Config
	log logx.Logger

	mgr     *browser.Manager
	hist    history.Store
	hb      *heartbeat.Writer
	sweeper *evidence.Sweeper
	sup     *supervisor.Supervisor

	sched   *monitor.Scheduler
	watcher *config.TargetsWatcher
}

// New loads and validates all configuration and constructs the component
// graph. Any error here is fatal: the process must not start on an invalid
// setup.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, err := logx.New(logx.Config{
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
		File:    logx.FileConfig{Enabled: cfg.LogFileOn, Path: cfg.LogFile},
	})
	if err != nil {
		return nil, err
	}

	targets, err := config.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return nil, err
	}

	channels, err := buildChannels(cfg)
	if err != nil {
		return nil, err
	}
	notifier := notify.New(channels, cfg.NotifyRate, log)

	mgr := browser.NewManager(browser.Config{
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		Logger:    log,
	})
	fetcher := browser.NewFetcher(mgr, browser.FetcherConfig{
		NavTimeout:  cfg.NavTimeout,
		SettleDelay: cfg.SettleDelay,
		UserAgent:   cfg.UserAgent,
	}, log)

	hist, err := history.Open(history.Config{Driver: cfg.HistoryDriver, Path: cfg.HistoryPath}, log)
	if err != nil {
		return nil, err
	}

	var watcher *config.TargetsWatcher
	var updates <-chan []monitor.Target
	if cfg.WatchTargets {
		watcher = config.NewTargetsWatcher(cfg.TargetsFile, log)
		if data, err := os.ReadFile(cfg.TargetsFile); err == nil {
			watcher.Seed(data)
		}
		updates = watcher.Updates()
	}

	hb := heartbeat.NewWriter(cfg.HeartbeatFile, log)

	sched := monitor.NewScheduler(monitor.SchedulerConfig{
		Targets:        targets,
		PollInterval:   cfg.PollInterval,
		DigestInterval: cfg.DigestInterval,
		Fetcher:        fetch.NewRetrier(fetcher, log),
		Notifier:       notifier,
		Evidence:       evidence.NewCapture(cfg.EvidenceDir, fetcher, log),
		State:          state.New(cfg.StateFile, log),
		History:        hist,
		Heartbeat:      hb,
		TargetUpdates:  updates,
		Logger:         log,
	})

	return &App{
		cfg:     cfg,
		log:     log,
		mgr:     mgr,
		hist:    hist,
		hb:      hb,
		sweeper: evidence.NewSweeper(cfg.EvidenceDir, cfg.EvidenceRetention, cfg.EvidenceSweep, log),
		sched:   sched,
		watcher: watcher,
	}, nil
}

func buildChannels(cfg *config.Config) ([]notify.Channel, error) {
	var channels []notify.Channel
	if cfg.SlackWebhook != "" {
		channels = append(channels, notify.NewWebhook(cfg.SlackWebhook))
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("app: telegram channel: %w", err)
		}
		channels = append(channels, tg)
	}
	return channels, nil
}

// Run blocks until ctx is canceled or a component fails fatally.
func (a *App) Run(ctx context.Context) error {
	a.hb.Ready()

	if err := a.sweeper.Start(); err != nil {
		return fmt.Errorf("app: retention sweep: %w", err)
	}

	a.sup = supervisor.New(ctx, a.log)
	if a.watcher != nil {
		a.sup.Go("targets-watch", a.watcher.Watch)
	}
	a.sup.Go("poll-loop", a.sched.Run)

	err := a.sup.Wait(context.Background())
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	a.log.Info("shutting down")
	a.sweeper.Stop()
	a.mgr.Close()
	if err := a.hist.Close(); err != nil {
		a.log.Warn("history close failed", logx.Err(err))
	}
	_ = a.log.Close()
}

// PollInterval exposes the resolved poll interval (healthcheck wiring).
func (a *App) PollInterval() time.Duration { return a.cfg.PollInterval }
