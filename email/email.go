// Package email composes and dispatches challenge notification emails via
// pluggable providers.
package email

import (
	"context"
	"log/slog"
	"time"

	"advent-mailer/pkg/advent"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Result summarizes a dispatch run.
type Result struct {
	Sent      int
	Failed    int
	Attempted int
}

// Dispatcher sends a composed message to a recipient list, one recipient at
// a time. Sends are intentionally serial: a fixed delay between sends keeps
// the provider's rate limit happy, and a failure on one recipient never
// aborts the rest.
type Dispatcher struct {
	provider Provider
	logger   *slog.Logger
	delay    time.Duration
	dryRun   bool
}

// NewDispatcher creates a dispatcher. delay is the pause between successive
// sends; dryRun short-circuits before any provider call.
func NewDispatcher(provider Provider, delay time.Duration, dryRun bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		logger:   logger,
		delay:    delay,
		dryRun:   dryRun,
	}
}

// SendAll dispatches the message to every recipient in list order.
// A dispatch run is not idempotent: re-running after termination re-sends
// to recipients that already got the email.
func (d *Dispatcher) SendAll(ctx context.Context, msg advent.Message, recipients []string) Result {
	result := Result{Attempted: len(recipients)}

	if d.dryRun {
		d.logger.Info("DRY RUN - no emails sent",
			"subject", msg.Subject,
			"recipients", len(recipients))
		return result
	}

	for i, to := range recipients {
		if err := d.provider.Send(ctx, to, msg.Subject, msg.HTML, msg.Text); err != nil {
			result.Failed++
			d.logger.Error("Failed to send", "to", to, "error", err)
		} else {
			result.Sent++
			d.logger.Info("Sent", "to", to, "progress", i+1, "total", len(recipients))
		}

		// Fixed inter-send delay for provider rate limits.
		if i < len(recipients)-1 {
			select {
			case <-ctx.Done():
				d.logger.Warn("Dispatch interrupted", "error", ctx.Err(), "sent", result.Sent)
				return result
			case <-time.After(d.delay):
			}
		}
	}

	d.logger.Info("Dispatch completed",
		"sent", result.Sent,
		"failed", result.Failed,
		"total", result.Attempted)

	return result
}
