package worker

import (
	"context"

	"pennywise/internal/core"
	"pennywise/internal/log"
)

// Mailer delivers password recovery links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, reset core.PasswordReset) error
}

// LogMailer writes recovery links to the log instead of sending mail. It is
// meant for development deployments without an SMTP relay.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogMailer{logger: logger.WithComponent(log.ComponentWorker)}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, reset core.PasswordReset) error {
	m.logger.InfoContext(ctx, "Password reset link",
		log.FieldUserID, reset.UserID,
		log.FieldEmail, reset.Email,
		"link", reset.Link)
	return nil
}
