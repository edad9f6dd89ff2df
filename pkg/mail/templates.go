package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
	_ "time/tzdata" // the container image may ship without zoneinfo
	"unicode/utf8"

	"github.com/Masterminds/sprig/v3"

	"github.com/quantumdatasynergy/contact-api/pkg/config"
	"github.com/quantumdatasynergy/contact-api/pkg/submission"
)

// TimestampLayout matches the en-US long date-time used in every message.
const TimestampLayout = "Monday, January 2, 2006 at 03:04 PM"

var (
	//go:embed templates/*.html
	templateFS embed.FS

	templates = template.New("mail").Funcs(funcMap())
)

// funcMap is Sprig's HTML-safe set plus nl2br and truncRunes.
func funcMap() template.FuncMap {
	funcs := sprig.HtmlFuncMap()
	funcs["nl2br"] = nl2br
	funcs["truncRunes"] = truncRunes
	return funcs
}

func init() {
	if _, err := templates.ParseFS(templateFS, "templates/*.html"); err != nil {
		panic(err)
	}
}

// Content is a rendered subject and HTML body.
type Content struct {
	Subject string
	HTML    string
}

type contactParams struct {
	Brand       config.Branding
	Contact     submission.ContactSubmission
	Timestamp   string
	ReferenceID string
	Year        int
}

type newsletterParams struct {
	Brand       config.Branding
	Newsletter  submission.NewsletterSubscription
	Timestamp   string
	ReferenceID string
	Year        int
}

// Renderer produces the four message variants for one brand. It is safe for
// concurrent use.
type Renderer struct {
	brand config.Branding
	loc   *time.Location
}

// NewRenderer resolves the brand time zone; an empty zone means UTC.
func NewRenderer(brand config.Branding) (*Renderer, error) {
	loc, err := time.LoadLocation(brand.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", brand.TimeZone, err)
	}
	return &Renderer{brand: brand, loc: loc}, nil
}

func (r *Renderer) Brand() config.Branding {
	return r.brand
}

// Timestamp formats t in the brand time zone.
func (r *Renderer) Timestamp(t time.Time) string {
	return t.In(r.loc).Format(TimestampLayout)
}

// ReferenceID is "#QDS" followed by the last six digits of t in Unix
// milliseconds. It is cosmetic and not unique.
func ReferenceID(t time.Time) string {
	return fmt.Sprintf("#QDS%06d", t.UnixMilli()%1_000_000)
}

// AdminContact is the notification sent to the site owner.
func (r *Renderer) AdminContact(s submission.ContactSubmission, at time.Time) (Content, error) {
	html, err := render("admin_contact.html", r.contactParams(s, at))
	return Content{Subject: "🚀 New Contact Form: " + s.Subject, HTML: html}, err
}

// ContactAcknowledgment confirms receipt to the submitter.
func (r *Renderer) ContactAcknowledgment(s submission.ContactSubmission, at time.Time) (Content, error) {
	html, err := render("contact_ack.html", r.contactParams(s, at))
	return Content{Subject: fmt.Sprintf("✅ Thank you for contacting %s!", r.brand.Name), HTML: html}, err
}

// AdminNewsletter tells the site owner about a new subscriber.
func (r *Renderer) AdminNewsletter(n submission.NewsletterSubscription, at time.Time) (Content, error) {
	html, err := render("admin_newsletter.html", r.newsletterParams(n, at))
	return Content{Subject: fmt.Sprintf("📧 New Newsletter Subscription - %s", r.brand.Name), HTML: html}, err
}

// NewsletterWelcome greets the new subscriber.
func (r *Renderer) NewsletterWelcome(n submission.NewsletterSubscription, at time.Time) (Content, error) {
	html, err := render("newsletter_welcome.html", r.newsletterParams(n, at))
	return Content{Subject: fmt.Sprintf("🎉 Welcome to %s Newsletter!", r.brand.Name), HTML: html}, err
}

func (r *Renderer) contactParams(s submission.ContactSubmission, at time.Time) contactParams {
	return contactParams{
		Brand:       r.brand,
		Contact:     s,
		Timestamp:   r.Timestamp(at),
		ReferenceID: ReferenceID(at),
		Year:        at.In(r.loc).Year(),
	}
}

func (r *Renderer) newsletterParams(n submission.NewsletterSubscription, at time.Time) newsletterParams {
	return newsletterParams{
		Brand:       r.brand,
		Newsletter:  n,
		Timestamp:   r.Timestamp(at),
		ReferenceID: ReferenceID(at),
		Year:        at.In(r.loc).Year(),
	}
}

func render(name string, p any) (string, error) {
	b := bytes.Buffer{}
	if err := templates.ExecuteTemplate(&b, name, p); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return b.String(), nil
}

// nl2br escapes s and turns newlines into <br> tags.
func nl2br(s string) template.HTML {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>")) //nolint:gosec // escaped above
}

// truncRunes keeps the first n code points of s. Sprig's trunc counts bytes.
func truncRunes(n int, s string) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
