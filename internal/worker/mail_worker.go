package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/mailer"
)

const (
	mailAttempts     = 3
	mailRetryBackoff = 2 * time.Second
)

// MailWorker consumes queued email messages and delivers them over SMTP.
type MailWorker struct {
	mailer *mailer.Mailer
}

func NewMailWorker(m *mailer.Mailer) *MailWorker {
	return &MailWorker{mailer: m}
}

// Handle processes one raw queue delivery. Undecodable payloads are
// dropped; delivery failures retry locally before the message requeues.
func (w *MailWorker) Handle(ctx context.Context, body []byte) error {
	msg, err := amqp.EmailMessageFromJSON(body)
	if err != nil {
		return amqp.Permanent(err)
	}

	slog.InfoContext(ctx, "Processing email message", "kind", msg.Kind)

	var lastErr error
	for attempt := 1; attempt <= mailAttempts; attempt++ {
		lastErr = w.mailer.Send(ctx, msg)
		if lastErr == nil {
			slog.InfoContext(ctx, "Email delivered", "kind", msg.Kind, "attempt", attempt)
			return nil
		}
		if amqp.IsPermanent(lastErr) {
			return lastErr
		}
		slog.WarnContext(ctx, "Email delivery failed",
			"kind", msg.Kind, "attempt", attempt, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * mailRetryBackoff):
		}
	}
	return fmt.Errorf("deliver %s email after %d attempts: %w", msg.Kind, mailAttempts, lastErr)
}
