// Package config loads and validates pagewatch's app configuration and
// target list. Config files are YAML (or JSON); YAML is coerced to JSON so
// both formats share one strict decoder.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Raw is the on-disk app config shape. All durations are Go duration
// strings (e.g. "500ms", "60s", "12h").
type Raw struct {
	// PollInterval is the wall-clock period of the poll loop. Default "60s".
	PollInterval string `json:"poll_interval,omitempty"`
	// DigestInterval is how often the periodic status digest is sent.
	// Default "12h".
	DigestInterval string `json:"digest_interval,omitempty"`

	StateFile     string `json:"state_file,omitempty"`
	HeartbeatFile string `json:"heartbeat_file,omitempty"`

	// TargetsFile points at the target list (urls.yaml).
	TargetsFile string `json:"targets_file"`
	// WatchTargets enables hot reload of the targets file.
	WatchTargets bool `json:"watch_targets,omitempty"`

	Logging  LoggingRaw  `json:"logging,omitempty"`
	Notify   NotifyRaw   `json:"notify,omitempty"`
	Browser  BrowserRaw  `json:"browser,omitempty"`
	Evidence EvidenceRaw `json:"evidence,omitempty"`
	History  HistoryRaw  `json:"history,omitempty"`
}

type LoggingRaw struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"`
	File    struct {
		Enabled bool   `json:"enabled,omitempty"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

type NotifyRaw struct {
	// SlackWebhook is a webhook URL receiving {"text": ...} posts.
	// Empty disables the channel.
	SlackWebhook string `json:"slack_webhook,omitempty"`

	Telegram struct {
		Token  string `json:"token,omitempty"`
		ChatID int64  `json:"chat_id,omitempty"`
	} `json:"telegram,omitempty"`

	// RatePerSec throttles outbound notifications across all channels.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type BrowserRaw struct {
	Headless   *bool  `json:"headless,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	NavTimeout string `json:"nav_timeout,omitempty"`
	// SettleDelay is the post-load wait before the text snapshot is taken,
	// giving late client-side rendering a chance to finish.
	SettleDelay string `json:"settle_delay,omitempty"`
}

type EvidenceRaw struct {
	Dir string `json:"dir,omitempty"`
	// Retention is how long screenshots are kept. "0s" disables the sweep.
	Retention string `json:"retention,omitempty"`
	// SweepSchedule is a cron spec for the retention sweep. Default "@daily".
	SweepSchedule string `json:"sweep_schedule,omitempty"`
}

type HistoryRaw struct {
	// Driver selects the history backend: "none" (default) or "sqlite".
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Config is the resolved, immutable runtime configuration handed to each
// component at construction. No component reads ambient process state.
type Config struct {
	PollInterval   time.Duration
	DigestInterval time.Duration

	StateFile     string
	HeartbeatFile string
	TargetsFile   string
	WatchTargets  bool

	LogLevel   string
	LogConsole bool
	LogFile    string
	LogFileOn  bool

	SlackWebhook   string
	TelegramToken  string
	TelegramChatID int64
	NotifyRate     int

	Headless    bool
	UserAgent   string
	NavTimeout  time.Duration
	SettleDelay time.Duration

	EvidenceDir       string
	EvidenceRetention time.Duration
	EvidenceSweep     string

	HistoryDriver string
	HistoryPath   string
}

// Resolve validates a Raw config and fills defaults.
func (r *Raw) Resolve() (*Config, error) {
	if strings.TrimSpace(r.TargetsFile) == "" {
		return nil, fmt.Errorf("config: targets_file is required")
	}

	poll, err := parseDurationOrDefault("poll_interval", r.PollInterval, 60*time.Second)
	if err != nil {
		return nil, err
	}
	digest, err := parseDurationOrDefault("digest_interval", r.DigestInterval, 12*time.Hour)
	if err != nil {
		return nil, err
	}
	navTimeout, err := parseDurationOrDefault("browser.nav_timeout", r.Browser.NavTimeout, 45*time.Second)
	if err != nil {
		return nil, err
	}
	settle, err := parseDurationOrDefault("browser.settle_delay", r.Browser.SettleDelay, 2500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	retention, err := parseDurationField("evidence.retention", r.Evidence.Retention)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PollInterval:   poll,
		DigestInterval: digest,

		StateFile:     defaultStr(r.StateFile, "./data/state.json"),
		HeartbeatFile: defaultStr(r.HeartbeatFile, "./data/heartbeat.txt"),
		TargetsFile:   r.TargetsFile,
		WatchTargets:  r.WatchTargets,

		LogLevel:   defaultStr(r.Logging.Level, "info"),
		LogConsole: boolOr(r.Logging.Console, true),
		LogFileOn:  r.Logging.File.Enabled,
		LogFile:    r.Logging.File.Path,

		SlackWebhook:   strings.TrimSpace(r.Notify.SlackWebhook),
		TelegramToken:  strings.TrimSpace(r.Notify.Telegram.Token),
		TelegramChatID: r.Notify.Telegram.ChatID,
		NotifyRate:     r.Notify.RatePerSec,

		Headless:    boolOr(r.Browser.Headless, true),
		UserAgent:   r.Browser.UserAgent,
		NavTimeout:  navTimeout,
		SettleDelay: settle,

		EvidenceDir:       defaultStr(r.Evidence.Dir, "./data/screens"),
		EvidenceRetention: retention,
		EvidenceSweep:     defaultStr(r.Evidence.SweepSchedule, "@daily"),

		HistoryDriver: strings.ToLower(strings.TrimSpace(defaultStr(r.History.Driver, "none"))),
		HistoryPath:   r.History.Path,
	}

	if cfg.NotifyRate <= 0 {
		cfg.NotifyRate = 1
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("config: notify.telegram.chat_id is required with a token")
	}
	switch cfg.HistoryDriver {
	case "none", "sqlite":
	default:
		return nil, fmt.Errorf("config: unknown history driver %q", cfg.HistoryDriver)
	}
	if cfg.HistoryDriver == "sqlite" && strings.TrimSpace(cfg.HistoryPath) == "" {
		return nil, fmt.Errorf("config: history.path is required for the sqlite driver")
	}

	return cfg, nil
}

func defaultStr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
