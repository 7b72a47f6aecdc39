package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/forumhq/comms/internal/model"
)

// EmailSender is the capability used to push notification emails. The
// pipeline fires it and forgets: failures are logged, never block delivery.
type EmailSender interface {
	Send(ctx context.Context, to model.Identity, subject, body string) error
}

// LogEmailSender records outgoing emails in the log instead of sending them.
// Stands in until a real mail backend is wired up.
type LogEmailSender struct {
	log *zap.Logger
}

// NewLogEmailSender constructs the logging sender.
func NewLogEmailSender(log *zap.Logger) *LogEmailSender {
	return &LogEmailSender{log: log}
}

// Send logs the email instead of delivering it.
func (s *LogEmailSender) Send(_ context.Context, to model.Identity, subject, _ string) error {
	s.log.Info("email notification",
		zap.String("recipient", to.ID),
		zap.String("subject", subject),
	)
	return nil
}
