package email

import (
	"context"
	"log/slog"
)

// LogTransport writes messages to the log instead of sending them. It is
// used when SMTP is not configured so links can be copied in development.
type LogTransport struct {
	Logger *slog.Logger
}

func (t LogTransport) Send(ctx context.Context, msg Message) error {
	t.Logger.InfoContext(ctx, "email not sent, smtp disabled",
		"to", msg.To,
		"from", msg.From,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
