package fetch

import (
	"context"
	"time"

	"pagewatch/pkg/logx"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = time.Second
)

// Retrier wraps a Fetcher with bounded retry for crash-class failures.
//
// Crash failures are retried up to MaxRetries times with exponential
// backoff (base, 2*base, 4*base, ...). Timeout, transport and unknown
// failures are surfaced immediately: retrying a slow or unreachable site
// within the same poll tick only delays the rest of the pass.
type Retrier struct {
	fetcher Fetcher
	log     logx.Logger

	maxRetries int
	base       time.Duration

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

func WithMaxRetries(n int) RetrierOption {
	return func(r *Retrier) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

func WithBackoffBase(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		if d > 0 {
			r.base = d
		}
	}
}

func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

func NewRetrier(fetcher Fetcher, log logx.Logger, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		fetcher:    fetcher,
		log:        log,
		maxRetries: defaultMaxRetries,
		base:       defaultBackoffBase,
		sleep:      sleepCtx,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Fetch runs one fetch with crash-class retry. The returned error, if any,
// is always a *Failure.
func (r *Retrier) Fetch(ctx context.Context, url string) (Snapshot, error) {
	for attempt := 0; ; attempt++ {
		snap, err := r.fetcher.Fetch(ctx, url)
		if err == nil {
			return snap, nil
		}

		f := AsFailure(err)
		if f.Class != ClassCrash || attempt >= r.maxRetries {
			if f.Class == ClassUnknown {
				r.log.Error("unclassified fetch failure", logx.String("url", url), logx.Err(f.Err))
			}
			return Snapshot{}, f
		}

		// 1s, 2s, 4s for the default base.
		wait := r.base << uint(attempt)
		r.log.Warn("browser session lost; retrying",
			logx.String("url", url),
			logx.Int("attempt", attempt+1),
			logx.Int("max", r.maxRetries),
			logx.Duration("backoff", wait),
			logx.Err(f.Err))

		if err := r.sleep(ctx, wait); err != nil {
			return Snapshot{}, &Failure{Class: ClassCrash, Err: err}
		}
	}
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
