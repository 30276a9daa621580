package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier delivers a formatted message to the user.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// LogNotifier writes messages to the log. It is used when no Telegram
// credentials are configured so a run still completes and shows its signals.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.Log.WithField("notifier", "log").Warnf("telegram not configured, message not sent:\n%s", text)
	return nil
}

// RetryNotifier retries a Notifier with exponential backoff.
type RetryNotifier struct {
	Next       Notifier
	MaxRetries int
	Backoff    time.Duration // first wait, doubled on every attempt
	Log        logrus.FieldLogger
}

// WithRetry wraps n so that Send is retried up to maxRetries times, waiting
// 1s, 2s, 4s... between attempts.
func WithRetry(n Notifier, maxRetries int, log logrus.FieldLogger) *RetryNotifier {
	return &RetryNotifier{Next: n, MaxRetries: maxRetries, Backoff: time.Second, Log: log}
}

func (r *RetryNotifier) Send(ctx context.Context, text string) error {
	var lastErr error
	for i := 0; i <= r.MaxRetries; i++ {
		err := r.Next.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == r.MaxRetries {
			break
		}
		backoff := r.Backoff << uint(i)
		r.Log.WithError(err).Warnf("send failed (attempt %d/%d), retrying in %v", i+1, r.MaxRetries+1, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", r.MaxRetries+1, lastErr)
}
