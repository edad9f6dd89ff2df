package submission

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Validation messages, returned verbatim to clients.
const (
	MsgNameTooShort    = "Name must be at least 2 characters long"
	MsgInvalidEmail    = "Please provide a valid email address"
	MsgSubjectTooShort = "Subject must be at least 5 characters long"
	MsgMessageTooShort = "Message must be at least 10 characters long"
)

// DefaultSource labels newsletter sign-ups that do not name their origin.
const DefaultSource = "Website"

// emailPattern is local@domain.tld where no part contains whitespace or "@".
// The whitespace set matches ECMAScript \s, which is wider than RE2's.
var emailPattern = regexp.MustCompile(`^[^\t\n\v\f\r\p{Z}\x{FEFF}@]+@[^\t\n\v\f\r\p{Z}\x{FEFF}@]+\.[^\t\n\v\f\r\p{Z}\x{FEFF}@]+$`)

// Custom validation tags. trimmin counts code points after trimming.
const (
	tagTrimMin = "trimmin"
	tagEmail   = "siteemail"
)

// ContactSubmission is one contact-form request.
type ContactSubmission struct {
	Name    string `json:"name" validate:"trimmin=2"`
	Email   string `json:"email" validate:"siteemail"`
	Subject string `json:"subject" validate:"trimmin=5"`
	Message string `json:"message" validate:"trimmin=10"`
}

// NewsletterSubscription is one newsletter sign-up.
type NewsletterSubscription struct {
	Email  string `json:"email" validate:"siteemail"`
	Source string `json:"source,omitempty"`
}

var fieldMessages = map[string]string{
	"Name":    MsgNameTooShort,
	"Email":   MsgInvalidEmail,
	"Subject": MsgSubjectTooShort,
	"Message": MsgMessageTooShort,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(tagTrimMin, trimMin); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation(tagEmail, func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// trimMin holds when the trimmed value has at least param code points.
func trimMin(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return length(fl.Field().String()) >= n
}

// ValidEmail reports whether s is shaped like local@domain.tld.
func ValidEmail(s string) bool {
	return s != "" && emailPattern.MatchString(s)
}

// ValidateContact checks every rule and returns all violations in field
// order (name, email, subject, message). An empty result means valid.
func ValidateContact(s ContactSubmission) []string {
	return messages(validate.Struct(s))
}

// ValidateNewsletterEmail returns the violation message, or "" if email is valid.
func ValidateNewsletterEmail(email string) string {
	if err := validate.Var(email, tagEmail); err != nil {
		return MsgInvalidEmail
	}
	return ""
}

func messages(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if msg, ok := fieldMessages[fe.StructField()]; ok {
			out = append(out, msg)
			continue
		}
		out = append(out, fe.Error())
	}
	return out
}

// Sanitize trims every field and lower-cases the email.
func (s ContactSubmission) Sanitize() ContactSubmission {
	return ContactSubmission{
		Name:    trim(s.Name),
		Email:   NormalizeEmail(s.Email),
		Subject: trim(s.Subject),
		Message: trim(s.Message),
	}
}

// Sanitize normalizes the email and fills in DefaultSource.
func (n NewsletterSubscription) Sanitize() NewsletterSubscription {
	src := trim(n.Source)
	if src == "" {
		src = DefaultSource
	}
	return NewsletterSubscription{
		Email:  NormalizeEmail(n.Email),
		Source: src,
	}
}

// NormalizeEmail trims and lower-cases an address. It does not validate.
func NormalizeEmail(s string) string {
	return strings.ToLower(trim(s))
}

func length(s string) int {
	return utf8.RuneCountInString(trim(s))
}

func trim(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// isSpace is the ECMAScript whitespace and line terminator set.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0x00A0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}
