package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantumdatasynergy/contact-api/pkg/mail"
	"github.com/quantumdatasynergy/contact-api/pkg/metrics"
	"github.com/quantumdatasynergy/contact-api/pkg/ratelimit"
	"github.com/quantumdatasynergy/contact-api/pkg/submission"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
)

const (
	ContactSentMessage    = "Message sent successfully! We'll get back to you within 24 hours."
	NewsletterSentMessage = "Successfully subscribed to newsletter! Check your email for confirmation."
)

const (
	kindContact    = "contact"
	kindNewsletter = "newsletter"

	outcomeSent         = "sent"
	outcomeRejected     = "rejected"
	outcomeRateLimited  = "rate_limited"
	outcomeRenderFailed = "render_failed"
	outcomeSendFailed   = "send_failed"
)

// Limits holds one limiter per submission kind. A nil limiter admits everything.
type Limits struct {
	Contact    *ratelimit.Limiter
	Newsletter *ratelimit.Limiter
}

// Receipt is what the caller reports back. RateLimit is set whenever the
// rate check ran, also when an error is returned alongside.
type Receipt struct {
	Message   string
	RateLimit ratelimit.Decision
}

type Dispatcher struct {
	sender      mail.Sender
	renderer    *mail.Renderer
	adminEmail  string
	limits      Limits
	sendTimeout time.Duration
	now         func() time.Time
	log         *zap.SugaredLogger
}

// NewDispatcher wires a dispatcher. sendTimeout bounds the pair of sends of
// one submission; 0 means no bound.
func NewDispatcher(sender mail.Sender, renderer *mail.Renderer, adminEmail string, limits Limits, sendTimeout time.Duration, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		renderer:    renderer,
		adminEmail:  adminEmail,
		limits:      limits,
		sendTimeout: sendTimeout,
		now:         time.Now,
		log:         log.Named("notify"),
	}
}

// SubmitContact handles one contact form submission from clientID.
func (d *Dispatcher) SubmitContact(ctx context.Context, clientID string, s submission.ContactSubmission) (Receipt, error) {
	var receipt Receipt
	decision, err := admit(ctx, d.limits.Contact, clientID)
	receipt.RateLimit = decision
	if err != nil {
		metrics.Submissions.WithLabelValues(kindContact, outcomeRateLimited).Inc()
		return receipt, err
	}

	if details := submission.ValidateContact(s); len(details) > 0 {
		metrics.Submissions.WithLabelValues(kindContact, outcomeRejected).Inc()
		return receipt, &ValidationError{Details: details}
	}
	s = s.Sanitize()

	at := d.now()
	admin, err := d.renderer.AdminContact(s, at)
	if err != nil {
		return receipt, d.renderFailed(kindContact, err)
	}
	ack, err := d.renderer.ContactAcknowledgment(s, at)
	if err != nil {
		return receipt, d.renderFailed(kindContact, err)
	}

	err = d.deliver(ctx,
		mail.OutboundEmail{To: d.adminEmail, Subject: admin.Subject, HTML: admin.HTML, ReplyTo: s.Email},
		mail.OutboundEmail{To: s.Email, Subject: ack.Subject, HTML: ack.HTML},
	)
	if err != nil {
		metrics.Submissions.WithLabelValues(kindContact, outcomeSendFailed).Inc()
		d.log.Errorw("Failed to send contact notification", "email", system.RedactEmail(s.Email), "error", err)
		return receipt, err
	}

	metrics.Submissions.WithLabelValues(kindContact, outcomeSent).Inc()
	d.log.Infow("Contact form submission delivered", "email", system.RedactEmail(s.Email), "subject", s.Subject)
	receipt.Message = ContactSentMessage
	return receipt, nil
}

// SubmitNewsletter handles one newsletter sign-up from clientID.
func (d *Dispatcher) SubmitNewsletter(ctx context.Context, clientID string, n submission.NewsletterSubscription) (Receipt, error) {
	var receipt Receipt
	decision, err := admit(ctx, d.limits.Newsletter, clientID)
	receipt.RateLimit = decision
	if err != nil {
		metrics.Submissions.WithLabelValues(kindNewsletter, outcomeRateLimited).Inc()
		return receipt, err
	}

	if msg := submission.ValidateNewsletterEmail(n.Email); msg != "" {
		metrics.Submissions.WithLabelValues(kindNewsletter, outcomeRejected).Inc()
		return receipt, &ValidationError{Details: []string{msg}}
	}
	n = n.Sanitize()

	at := d.now()
	admin, err := d.renderer.AdminNewsletter(n, at)
	if err != nil {
		return receipt, d.renderFailed(kindNewsletter, err)
	}
	welcome, err := d.renderer.NewsletterWelcome(n, at)
	if err != nil {
		return receipt, d.renderFailed(kindNewsletter, err)
	}

	err = d.deliver(ctx,
		mail.OutboundEmail{To: d.adminEmail, Subject: admin.Subject, HTML: admin.HTML},
		mail.OutboundEmail{To: n.Email, Subject: welcome.Subject, HTML: welcome.HTML},
	)
	if err != nil {
		metrics.Submissions.WithLabelValues(kindNewsletter, outcomeSendFailed).Inc()
		d.log.Errorw("Failed to send newsletter confirmation", "email", system.RedactEmail(n.Email), "error", err)
		return receipt, err
	}

	metrics.Submissions.WithLabelValues(kindNewsletter, outcomeSent).Inc()
	d.log.Infow("Newsletter subscription delivered", "email", system.RedactEmail(n.Email), "source", n.Source)
	receipt.Message = NewsletterSentMessage
	return receipt, nil
}

func admit(ctx context.Context, l *ratelimit.Limiter, clientID string) (ratelimit.Decision, error) {
	if l == nil {
		return ratelimit.Decision{Allowed: true}, nil
	}
	return l.Admit(ctx, clientID)
}

// deliver sends all emails concurrently and waits for every one of them.
// Delivery does not follow the caller's cancellation: a client hanging up
// must not cut a send in half. Only the send timeout bounds it.
func (d *Dispatcher) deliver(ctx context.Context, emails ...mail.OutboundEmail) error {
	ctx = context.WithoutCancel(ctx)
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	var g errgroup.Group
	for _, email := range emails {
		g.Go(func() error {
			return d.sender.Send(ctx, email)
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("mail transport %s did not answer within %s: %w", d.sender.GetHost(), d.sendTimeout, err)
		}
		return &SendError{Err: err}
	}
	return nil
}

func (d *Dispatcher) renderFailed(kind string, err error) error {
	metrics.Submissions.WithLabelValues(kind, outcomeRenderFailed).Inc()
	d.log.Errorw("Failed to render notification", "kind", kind, "error", err)
	return fmt.Errorf("rendering %s notification: %w", kind, err)
}
