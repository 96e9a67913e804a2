// Package browser implements the page-fetch capability with headless
// Chrome via rod: launch, text snapshots, screenshots, and relaunch after
// a crashed session.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"pagewatch/pkg/logx"
)

// Config configures the browser manager.
type Config struct {
	// Headless disables the visible browser window. Default true.
	Headless bool
	// UserAgent overrides the browser user agent. Empty keeps the default.
	UserAgent string
	Logger    logx.Logger
}

// Manager owns the Chrome process and the rod handle. A fetch that loses
// the session calls Invalidate; the next Page call relaunches Chrome.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Browser returns a live rod handle, launching Chrome if needed.
func (m *Manager) Browser(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(m.cfg.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	m.browser = b
	m.lnch = l
	m.cfg.Logger.Info("browser launched", logx.Bool("headless", m.cfg.Headless))
	return b, nil
}

// Invalidate drops the current browser so the next use relaunches it.
// Called after a crash-class failure.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return
	}
	m.cfg.Logger.Warn("discarding browser session")
	m.cleanupLocked()
}

// Close shuts down Chrome. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanupLocked()
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
