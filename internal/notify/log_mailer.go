package notify

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the structured log instead of sending them.
// It stands in for a real provider in development.
type LogMailer struct {
	From   string
	Logger *slog.Logger
}

// Send logs msg.
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("outbound email",
		slog.String("from", m.From),
		slog.String("to", msg.To),
		slog.String("template", msg.Template),
		slog.Any("data", msg.Data),
	)
	return nil
}

// WelcomeMessage builds the message sent after registration.
func WelcomeMessage(email, username, fullName string) Message {
	return Message{
		To:       email,
		Template: "welcome",
		Data: map[string]string{
			"username": username,
			"fullName": fullName,
		},
	}
}
