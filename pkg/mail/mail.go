package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/metrics"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
)

// OutboundEmail is one fully rendered message. It is not modified once built.
type OutboundEmail struct {
	From    string
	To      string
	Subject string
	HTML    string
	ReplyTo string
}

// Sender delivers an OutboundEmail or fails. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, email OutboundEmail) error
	GetHost() string
}

// Verifier is implemented by senders that can check their connection
// without sending anything.
type Verifier interface {
	Verify(ctx context.Context) error
}

// NewSender builds the transport selected by cfg.Mail.Provider.
func NewSender(cfg config.Config, log *zap.SugaredLogger) (Sender, error) {
	switch cfg.Mail.Provider {
	case config.ProviderSMTP, "":
		return NewSMTPSender(cfg.Mail, log), nil
	case config.ProviderResend:
		if cfg.Mail.ResendAPIKey == "" {
			return nil, fmt.Errorf("mail provider %q requires an API key", cfg.Mail.Provider)
		}
		return NewResendSender(cfg.Mail, log), nil
	case config.ProviderLog:
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}
}

// SMTPSender talks SMTP through a gomail dialer. Port 465 uses implicit TLS,
// other ports upgrade with STARTTLS when the server offers it.
type SMTPSender struct {
	dialer        *gomail.Dialer
	senderAddress string
	senderName    string
	log           *zap.SugaredLogger
}

func NewSMTPSender(cfg config.Mail, log *zap.SugaredLogger) *SMTPSender {
	log = log.Named("mail")
	log.Infow("Initializing SMTP sender", "host", cfg.Host, "port", cfg.Port, "user", system.RedactEmail(cfg.User))
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via mail.insecureSkipVerify
	}
	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = cfg.User
	}
	return &SMTPSender{
		dialer:        d,
		senderAddress: senderAddr,
		senderName:    cfg.SenderName,
		log:           log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, email OutboundEmail) error {
	msg := s.message(email)
	err := runWithContext(ctx, func() error {
		return s.dialer.DialAndSend(msg)
	})
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(s.GetHost()).Inc()
		return fmt.Errorf("smtp send to %s failed: %w", system.RedactEmail(email.To), err)
	}
	metrics.MailSendSuccess.WithLabelValues(s.GetHost()).Inc()
	s.log.Debugw("Mail sent", "to", system.RedactEmail(email.To), "subject", email.Subject)
	return nil
}

// Verify opens and closes an authenticated connection.
func (s *SMTPSender) Verify(ctx context.Context) error {
	return runWithContext(ctx, func() error {
		c, err := s.dialer.Dial()
		if err != nil {
			return fmt.Errorf("smtp connection to %s:%d failed: %w", s.dialer.Host, s.dialer.Port, err)
		}
		return c.Close()
	})
}

func (s *SMTPSender) GetHost() string {
	return s.dialer.Host
}

func (s *SMTPSender) GetPort() int {
	return s.dialer.Port
}

func (s *SMTPSender) message(email OutboundEmail) *gomail.Message {
	from := email.From
	if from == "" {
		from = s.senderAddress
	}
	msg := gomail.NewMessage()
	if s.senderName != "" {
		msg.SetAddressHeader("From", from, s.senderName)
	} else {
		msg.SetHeader("From", from)
	}
	msg.SetHeader("To", email.To)
	if email.ReplyTo != "" {
		msg.SetHeader("Reply-To", email.ReplyTo)
	}
	msg.SetHeader("Subject", oneLine(email.Subject))
	msg.SetBody("text/html", email.HTML)
	return msg
}

// runWithContext runs fn and returns early with ctx.Err() when ctx ends
// first. fn keeps running in the background in that case; the transports
// used here cannot be interrupted mid-exchange.
func runWithContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ctx.Done() == nil {
		return fn()
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// oneLine keeps header values on a single line.
func oneLine(s string) string {
	return lineBreaks.Replace(s)
}
