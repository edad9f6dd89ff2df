package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantumdatasynergy/contact-api/pkg/system"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zap.SugaredLogger
}

func NewLogSender(log *zap.SugaredLogger) *LogSender {
	return &LogSender{log: log.Named("mail")}
}

func (s *LogSender) Send(ctx context.Context, email OutboundEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Infow("Mail delivery skipped (log provider)",
		"to", system.RedactEmail(email.To),
		"subject", email.Subject,
		"bytes", len(email.HTML))
	return nil
}

func (s *LogSender) GetHost() string {
	return "log"
}
