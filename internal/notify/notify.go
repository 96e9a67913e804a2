// Package notify delivers monitor messages (startup, alert, digest) to the
// configured channels. Delivery failures are logged and swallowed: a broken
// notification channel must never stop monitoring.
package notify

import (
	"context"

	"golang.org/x/time/rate"

	"pagewatch/pkg/logx"
)

// Channel is one delivery backend.
type Channel interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// Notifier fans a message out to all channels behind a shared rate limit.
type Notifier struct {
	channels []Channel
	limiter  *rate.Limiter
	log      logx.Logger
}

// New builds a Notifier. ratePerSec <= 0 defaults to 1. With no channels
// configured, messages are logged instead of delivered.
func New(channels []Channel, ratePerSec int, log logx.Logger) *Notifier {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Notifier{
		channels: channels,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:      log,
	}
}

// Notify sends text to every channel. It never returns an error; per-channel
// failures are logged.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if len(n.channels) == 0 {
		n.log.Info("no notify channel configured; printing instead", logx.String("text", text))
		return
	}

	for _, ch := range n.channels {
		if err := n.limiter.Wait(ctx); err != nil {
			return
		}
		if err := ch.Send(ctx, text); err != nil {
			n.log.Warn("notification send failed", logx.String("channel", ch.Name()), logx.Err(err))
			continue
		}
		n.log.Debug("notification sent", logx.String("channel", ch.Name()), logx.Int("len", len(text)))
	}
}
