package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"pagewatch/internal/fetch"
	"pagewatch/internal/monitor"
	"pagewatch/pkg/logx"
)

// cookieButtonLabels are tried, in order, when dismissing consent popups.
// Some sites load the banner late, so dismissal runs several rounds.
var cookieButtonLabels = []string{
	"Accept All", "Accept all", "Accept all cookies", "Accept Cookies",
	"Hyväksy kaikki", "Salli kaikki", "Agree", "I Accept", "OK", "Got it",
}

const (
	cookieRounds    = 3
	cookieRoundWait = 400 * time.Millisecond

	viewportWidth  = 1280
	viewportHeight = 2200
)

// Fetcher renders a URL and extracts its visible text. It implements
// fetch.Fetcher; every error it returns is a classified *fetch.Failure.
type Fetcher struct {
	mgr         *Manager
	navTimeout  time.Duration
	settleDelay time.Duration
	userAgent   string
	log         logx.Logger
}

type FetcherConfig struct {
	NavTimeout  time.Duration
	SettleDelay time.Duration
	UserAgent   string
}

func NewFetcher(mgr *Manager, cfg FetcherConfig, log logx.Logger) *Fetcher {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	return &Fetcher{
		mgr:         mgr,
		navTimeout:  cfg.NavTimeout,
		settleDelay: cfg.SettleDelay,
		userAgent:   cfg.UserAgent,
		log:         log,
	}
}

// Fetch opens a stealth page, navigates, dismisses cookie banners, waits
// for late rendering, and returns the normalized body text. The page is
// closed on every exit path; a crash-class failure also invalidates the
// shared browser so the next attempt relaunches it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (fetch.Snapshot, error) {
	text, err := f.fetchText(ctx, url)
	if err != nil {
		fail := classify(err)
		if fail.Class == fetch.ClassCrash {
			f.mgr.Invalidate()
		}
		return fetch.Snapshot{}, fail
	}
	return fetch.Snapshot{Text: text, FetchedAt: time.Now().UTC()}, nil
}

func (f *Fetcher) fetchText(ctx context.Context, url string) (string, error) {
	b, err := f.mgr.Browser(ctx)
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return "", err
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.navTimeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := f.preparePage(p); err != nil {
		return "", err
	}
	if err := p.Navigate(url); err != nil {
		return "", err
	}
	if err := p.WaitLoad(); err != nil {
		return "", err
	}

	f.dismissCookieBanners(ctx, p, url)

	// Give late client-side rendering a chance to finish.
	if f.settleDelay > 0 {
		t := time.NewTimer(f.settleDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		}
	}

	res, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", err
	}
	return monitor.Normalize(res.Value.Str()), nil
}

func (f *Fetcher) preparePage(p *rod.Page) error {
	if f.userAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.userAgent}); err != nil {
			return err
		}
	}
	return p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	})
}

// dismissCookieBanners clicks visible elements whose text matches one of
// the candidate labels. Best-effort: consent UIs are unpredictable and a
// failed click must not fail the fetch.
func (f *Fetcher) dismissCookieBanners(ctx context.Context, p *rod.Page, url string) {
	const js = `(labels) => {
		const clickable = Array.from(
			document.querySelectorAll('button, [role="button"], a'));
		let clicked = 0;
		for (const label of labels) {
			for (const el of clickable) {
				const text = (el.innerText || '').trim();
				if (text === label && el.offsetParent !== null) {
					el.click();
					clicked++;
					break;
				}
			}
		}
		return clicked;
	}`

	for i := 0; i < cookieRounds; i++ {
		if ctx.Err() != nil {
			return
		}
		res, err := p.Eval(js, cookieButtonLabels)
		if err != nil {
			f.log.Debug("cookie banner pass failed", logx.String("url", url), logx.Err(err))
			return
		}
		if n := res.Value.Int(); n > 0 {
			f.log.Debug("cookie banner dismissed", logx.String("url", url), logx.Int("clicks", n))
		}

		t := time.NewTimer(cookieRoundWait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

// Screenshot captures a full-page PNG of the URL using a fresh page,
// independent of any monitoring fetch.
func (f *Fetcher) Screenshot(ctx context.Context, url string) ([]byte, error) {
	b, err := f.mgr.Browser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, err
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.navTimeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := f.preparePage(p); err != nil {
		return nil, err
	}
	if err := p.Navigate(url); err != nil {
		return nil, err
	}
	if err := p.WaitLoad(); err != nil {
		return nil, err
	}

	return p.Screenshot(true, nil)
}
