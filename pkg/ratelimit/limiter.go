package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/metrics"
	"github.com/quantumdatasynergy/contact-api/pkg/system"
)

// Policy is a fixed window: at most Max requests per identity per Window.
type Policy struct {
	Name    string
	Window  time.Duration
	Max     int
	Message string
}

// ContactPolicy allows 5 contact submissions per 15 minutes.
func ContactPolicy() Policy {
	return Policy{
		Name:    "contact",
		Window:  15 * time.Minute,
		Max:     5,
		Message: "Too many contact form submissions, please try again later.",
	}
}

// NewsletterPolicy allows 3 sign-ups per hour.
func NewsletterPolicy() Policy {
	return Policy{
		Name:    "newsletter",
		Window:  time.Hour,
		Max:     3,
		Message: "Too many newsletter subscription attempts, please try again later.",
	}
}

// WithWindow returns p with window and max taken from w where set.
func (p Policy) WithWindow(w config.Window) Policy {
	if w.Window > 0 {
		p.Window = w.Window
	}
	if w.Max > 0 {
		p.Max = w.Max
	}
	return p
}

// Store counts hits per key. Increment must be atomic per key: the first
// hit opens a window of the given length, later hits in that window share
// its reset time.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Window     time.Duration
	ResetAt    time.Time
	RetryAfter time.Duration
}

// SetHeaders writes the RateLimit-* headers (IETF draft 6) and, when the
// request was rejected, Retry-After.
func (d Decision) SetHeaders(h http.Header, now time.Time) {
	if d.Limit == 0 {
		return
	}
	reset := ceilSeconds(d.ResetAt.Sub(now))
	h.Set("RateLimit-Policy", strconv.Itoa(d.Limit)+";w="+strconv.Itoa(ceilSeconds(d.Window)))
	h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("RateLimit-Reset", strconv.Itoa(reset))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(reset))
	}
}

// RejectedError is returned by Admit when the identity is over its limit.
type RejectedError struct {
	Policy   Policy
	Decision Decision
}

func (e *RejectedError) Error() string {
	return e.Policy.Message
}

// Limiter applies one Policy over a Store.
type Limiter struct {
	policy Policy
	store  Store
	now    func() time.Time
	log    *zap.SugaredLogger
}

func NewLimiter(p Policy, store Store, log *zap.SugaredLogger) *Limiter {
	return &Limiter{
		policy: p,
		store:  store,
		now:    time.Now,
		log:    log.Named("ratelimit").With("policy", p.Name),
	}
}

func (l *Limiter) Policy() Policy {
	return l.policy
}

// Admit counts the request against identity. Every request counts; it is
// rejected with *RejectedError once the count exceeds the policy maximum.
// Store failures admit the request.
func (l *Limiter) Admit(ctx context.Context, identity string) (Decision, error) {
	count, resetAt, err := l.store.Increment(ctx, l.policy.Name+":"+identity, l.policy.Window)
	now := l.now()
	if err != nil {
		metrics.RateLimitStoreErrors.WithLabelValues(l.policy.Name).Inc()
		l.log.Warnw("Rate limit store failed, admitting request", "error", err)
		return Decision{Allowed: true}, nil
	}

	d := Decision{
		Allowed:   count <= int64(l.policy.Max),
		Limit:     l.policy.Max,
		Remaining: max(0, l.policy.Max-int(min(count, math.MaxInt32))),
		Window:    l.policy.Window,
		ResetAt:   resetAt,
	}
	if d.Allowed {
		return d, nil
	}
	d.RetryAfter = max(0, resetAt.Sub(now))
	metrics.RateLimitRejected.WithLabelValues(l.policy.Name).Inc()
	l.log.Infow("Rate limit exceeded", "identity", redactIdentity(identity), "count", count, "resetAt", resetAt)
	return d, &RejectedError{Policy: l.policy, Decision: d}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// redactIdentity keeps log lines free of addresses when an email is used as identity.
func redactIdentity(id string) string {
	if strings.Contains(id, "@") {
		return system.RedactEmail(id)
	}
	return id
}
