package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagewatch.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimalConfigAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "targets_file: ./config/urls.yaml\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.DigestInterval != 12*time.Hour {
		t.Errorf("DigestInterval = %v", cfg.DigestInterval)
	}
	if cfg.NavTimeout != 45*time.Second {
		t.Errorf("NavTimeout = %v", cfg.NavTimeout)
	}
	if cfg.SettleDelay != 2500*time.Millisecond {
		t.Errorf("SettleDelay = %v", cfg.SettleDelay)
	}
	if cfg.StateFile != "./data/state.json" {
		t.Errorf("StateFile = %q", cfg.StateFile)
	}
	if cfg.HeartbeatFile != "./data/heartbeat.txt" {
		t.Errorf("HeartbeatFile = %q", cfg.HeartbeatFile)
	}
	if cfg.EvidenceDir != "./data/screens" {
		t.Errorf("EvidenceDir = %q", cfg.EvidenceDir)
	}
	if cfg.EvidenceSweep != "@daily" {
		t.Errorf("EvidenceSweep = %q", cfg.EvidenceSweep)
	}
	if !cfg.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.LogLevel != "info" || !cfg.LogConsole {
		t.Errorf("logging defaults = %q console=%v", cfg.LogLevel, cfg.LogConsole)
	}
	if cfg.HistoryDriver != "none" {
		t.Errorf("HistoryDriver = %q", cfg.HistoryDriver)
	}
	if cfg.NotifyRate != 1 {
		t.Errorf("NotifyRate = %d", cfg.NotifyRate)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
poll_interval: 90s
digest_interval: 6h
targets_file: ./urls.yaml
watch_targets: true
state_file: /var/lib/pagewatch/state.json
logging:
  level: debug
  console: false
notify:
  slack_webhook: "https://hooks.test/T/B/x"
  telegram:
    token: "123:abc"
    chat_id: 42
  rate_per_sec: 3
browser:
  headless: false
  nav_timeout: 20s
  settle_delay: 1s
  user_agent: "Mozilla/5.0 test"
evidence:
  dir: /tmp/screens
  retention: 168h
history:
  driver: sqlite
  path: /var/lib/pagewatch/history.db
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 90*time.Second || cfg.DigestInterval != 6*time.Hour {
		t.Errorf("intervals = %v %v", cfg.PollInterval, cfg.DigestInterval)
	}
	if !cfg.WatchTargets {
		t.Error("WatchTargets should be true")
	}
	if cfg.LogLevel != "debug" || cfg.LogConsole {
		t.Errorf("logging = %q console=%v", cfg.LogLevel, cfg.LogConsole)
	}
	if cfg.SlackWebhook != "https://hooks.test/T/B/x" {
		t.Errorf("SlackWebhook = %q", cfg.SlackWebhook)
	}
	if cfg.TelegramToken != "123:abc" || cfg.TelegramChatID != 42 {
		t.Errorf("telegram = %q %d", cfg.TelegramToken, cfg.TelegramChatID)
	}
	if cfg.NotifyRate != 3 {
		t.Errorf("NotifyRate = %d", cfg.NotifyRate)
	}
	if cfg.Headless {
		t.Error("Headless should be false")
	}
	if cfg.NavTimeout != 20*time.Second || cfg.SettleDelay != time.Second {
		t.Errorf("browser timings = %v %v", cfg.NavTimeout, cfg.SettleDelay)
	}
	if cfg.EvidenceRetention != 168*time.Hour {
		t.Errorf("EvidenceRetention = %v", cfg.EvidenceRetention)
	}
	if cfg.HistoryDriver != "sqlite" || cfg.HistoryPath != "/var/lib/pagewatch/history.db" {
		t.Errorf("history = %q %q", cfg.HistoryDriver, cfg.HistoryPath)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing targets_file",
			doc:  "poll_interval: 60s\n",
			want: "targets_file is required",
		},
		{
			name: "unknown field",
			doc:  "targets_file: ./urls.yaml\npol_interval: 60s\n",
			want: "unknown field",
		},
		{
			name: "bad duration",
			doc:  "targets_file: ./urls.yaml\npoll_interval: sixty\n",
			want: "poll_interval",
		},
		{
			name: "token without chat id",
			doc: `
targets_file: ./urls.yaml
notify:
  telegram:
    token: "123:abc"
`,
			want: "chat_id is required",
		},
		{
			name: "unknown history driver",
			doc: `
targets_file: ./urls.yaml
history:
  driver: postgres
`,
			want: "unknown history driver",
		},
		{
			name: "sqlite without path",
			doc: `
targets_file: ./urls.yaml
history:
  driver: sqlite
`,
			want: "history.path is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %q, want substring %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
