package mail

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/metrics"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
)

// ResendSender sends through the Resend HTTP API.
type ResendSender struct {
	client *resend.Client
	from   string
	log    *zap.SugaredLogger
}

func NewResendSender(cfg config.Mail, log *zap.SugaredLogger) *ResendSender {
	return newResendSender(resend.NewClient(cfg.ResendAPIKey), cfg, log)
}

func newResendSender(client *resend.Client, cfg config.Mail, log *zap.SugaredLogger) *ResendSender {
	addr := cfg.SenderAddress
	if addr == "" {
		addr = cfg.User
	}
	from := addr
	if cfg.SenderName != "" {
		from = (&mail.Address{Name: cfg.SenderName, Address: addr}).String()
	}
	return &ResendSender{client: client, from: from, log: log.Named("mail")}
}

func (s *ResendSender) Send(ctx context.Context, email OutboundEmail) error {
	from := email.From
	if from == "" {
		from = s.from
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{email.To},
		Subject: oneLine(email.Subject),
		Html:    email.HTML,
	}
	if email.ReplyTo != "" {
		params.ReplyTo = email.ReplyTo
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(s.GetHost()).Inc()
		return fmt.Errorf("resend send to %s failed: %w", system.RedactEmail(email.To), err)
	}
	metrics.MailSendSuccess.WithLabelValues(s.GetHost()).Inc()
	s.log.Debugw("Mail sent", "messageId", sent.Id, "to", system.RedactEmail(email.To))
	return nil
}

func (s *ResendSender) GetHost() string {
	if s.client.BaseURL != nil {
		return s.client.BaseURL.Host
	}
	return "api.resend.com"
}
