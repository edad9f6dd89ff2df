package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/submission"
)

// 2025-03-04 20:05:06.123456 UTC is 15:05 in Panama (UTC-5, no DST).
var renderAt = time.Date(2025, time.March, 4, 20, 5, 6, 123456789, time.UTC)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(config.Defaults().Branding)
	require.NoError(t, err)
	return r
}

func TestTimestampUsesBrandZone(t *testing.T) {
	r := testRenderer(t)
	assert.Equal(t, "Tuesday, March 4, 2025 at 03:05 PM", r.Timestamp(renderAt))

	morning := time.Date(2025, time.March, 4, 13, 7, 0, 0, time.UTC)
	assert.Equal(t, "Tuesday, March 4, 2025 at 08:07 AM", r.Timestamp(morning))
}

func TestNewRendererRejectsUnknownZone(t *testing.T) {
	brand := config.Defaults().Branding
	brand.TimeZone = "Mars/Olympus_Mons"
	_, err := NewRenderer(brand)
	require.Error(t, err)
}

func TestReferenceID(t *testing.T) {
	at := time.UnixMilli(1741118706123)
	assert.Equal(t, "#QDS706123", ReferenceID(at))
	assert.Equal(t, "#QDS000042", ReferenceID(time.UnixMilli(1741118000042)))
}

func TestRenderAdminContact(t *testing.T) {
	r := testRenderer(t)
	s := submission.ContactSubmission{
		Name:    "Ana Pérez",
		Email:   "ana@example.com",
		Subject: "Data audit",
		Message: "First line\nSecond line",
	}

	c, err := r.AdminContact(s, renderAt)
	require.NoError(t, err)
	assert.Equal(t, "🚀 New Contact Form: Data audit", c.Subject)
	assert.Contains(t, c.HTML, "Ana Pérez")
	assert.Contains(t, c.HTML, `href="mailto:ana@example.com`)
	assert.Contains(t, c.HTML, "First line<br>Second line")
	assert.Contains(t, c.HTML, "Tuesday, March 4, 2025 at 03:05 PM")
	assert.Contains(t, c.HTML, "Panama City, Panama")
	assert.Contains(t, c.HTML, "subject=Re: Data%20audit")
	assert.Contains(t, c.HTML, "body=Hi Ana,", "reply greets the first name")
}

func TestRenderEscapesUserInput(t *testing.T) {
	r := testRenderer(t)
	s := submission.ContactSubmission{
		Name:    `<img src=x onerror=alert(1)>`,
		Email:   "eve@example.com",
		Subject: `"><script>alert(1)</script>`,
		Message: "<script>alert('x')</script>\n<b>bold</b>",
	}

	for name, render := range map[string]func(submission.ContactSubmission, time.Time) (Content, error){
		"admin": r.AdminContact,
		"ack":   r.ContactAcknowledgment,
	} {
		t.Run(name, func(t *testing.T) {
			c, err := render(s, renderAt)
			require.NoError(t, err)
			assert.NotContains(t, c.HTML, "<script>")
			assert.NotContains(t, c.HTML, "<img src=x")
			assert.NotContains(t, c.HTML, "<b>bold</b>")
		})
	}

	c, err := r.AdminContact(s, renderAt)
	require.NoError(t, err)
	assert.Contains(t, c.HTML, "&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;<br>&lt;b&gt;bold&lt;/b&gt;")
}

func TestRenderContactAcknowledgment(t *testing.T) {
	r := testRenderer(t)
	s := submission.ContactSubmission{Name: "Al", Email: "al@x.com", Subject: "Hello there", Message: "This is a test message."}

	c, err := r.ContactAcknowledgment(s, renderAt)
	require.NoError(t, err)
	assert.Equal(t, "✅ Thank you for contacting Quantum Data Synergy!", c.Subject)
	assert.Contains(t, c.HTML, "Hello Al!")
	assert.Contains(t, c.HTML, "Hello there")
	assert.Contains(t, c.HTML, ReferenceID(renderAt))
	assert.Contains(t, c.HTML, "What happens next?")
	assert.Contains(t, c.HTML, "© 2025 Quantum Data Synergy. All rights reserved.")
	assert.Contains(t, c.HTML, `href="tel:&#43;5076897-6654"`)
}

func TestRenderNewsletter(t *testing.T) {
	r := testRenderer(t)
	n := submission.NewsletterSubscription{Email: "new@sub.com", Source: "Website"}

	admin, err := r.AdminNewsletter(n, renderAt)
	require.NoError(t, err)
	assert.Equal(t, "📧 New Newsletter Subscription - Quantum Data Synergy", admin.Subject)
	assert.Contains(t, admin.HTML, "new@sub.com")
	assert.Contains(t, admin.HTML, "Website")
	assert.Contains(t, admin.HTML, ReferenceID(renderAt))

	welcome, err := r.NewsletterWelcome(n, renderAt)
	require.NoError(t, err)
	assert.Equal(t, "🎉 Welcome to Quantum Data Synergy Newsletter!", welcome.Subject)
	assert.Contains(t, welcome.HTML, "What to expect from our newsletter")
	assert.Contains(t, welcome.HTML, "You can unsubscribe at any time")
	assert.NotContains(t, welcome.HTML, ReferenceID(renderAt))
}

func TestRenderIsDeterministic(t *testing.T) {
	r := testRenderer(t)
	n := submission.NewsletterSubscription{Email: "new@sub.com", Source: "Website"}
	a, err := r.NewsletterWelcome(n, renderAt)
	require.NoError(t, err)
	b, err := r.NewsletterWelcome(n, renderAt)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNl2br(t *testing.T) {
	assert.Equal(t, "a<br>b<br>c", string(nl2br("a\r\nb\nc")))
	assert.Equal(t, "&lt;br&gt;", string(nl2br("<br>")))
	assert.False(t, strings.Contains(string(nl2br("x\ny")), "\n"))
}

func TestTruncRunes(t *testing.T) {
	assert.Equal(t, "Data audit", truncRunes(120, "Data audit"))
	assert.Equal(t, "Daten", truncRunes(5, "Datenprüfung"))
	assert.Equal(t, "Über", truncRunes(4, "Über alles"), "multi-byte runes are kept whole")
	assert.Equal(t, "日本", truncRunes(2, "日本語"))
	assert.Empty(t, truncRunes(-1, "abc"))
	assert.Contains(t, funcMap(), "truncRunes")
}
