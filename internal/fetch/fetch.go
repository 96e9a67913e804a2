// Package fetch defines the page-fetch capability consumed by the monitor
// and the resilience wrapper that retries crash-class failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Class is the closed failure taxonomy for a fetch attempt.
type Class string

const (
	// ClassCrash means the browser session died or was forcibly closed.
	// Retried with backoff by the Retrier.
	ClassCrash Class = "crash"
	// ClassTimeout means the page did not load within the deadline.
	ClassTimeout Class = "timeout"
	// ClassTransport means a network or local I/O failure.
	ClassTransport Class = "transport"
	// ClassUnknown is anything the classifier could not place. Always
	// logged with its underlying error for diagnosis.
	ClassUnknown Class = "unknown"
)

// Failure wraps a fetch error with its class. It is the only error type a
// Fetcher returns, so callers can switch exhaustively on Class.
type Failure struct {
	Class Class
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("fetch %s: %v", f.Class, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from an error chain, wrapping unclassified
// errors as ClassUnknown so the caller always has a class to dispatch on.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Class: ClassUnknown, Err: err}
}

// Snapshot is the visible text of a fetched page.
type Snapshot struct {
	Text      string
	FetchedAt time.Time
}

// Fetcher renders a URL and extracts its visible text. Implementations
// must release any acquired session resource on every exit path and return
// only *Failure errors.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (Snapshot, error) {
	return f(ctx, url)
}
