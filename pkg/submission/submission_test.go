package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidEmail(t *testing.T) {
	accept := []string{"a@b.co", "al@x.com", "first.last+tag@sub.example.org", "ÜSER@ÖRT.de"}
	reject := []string{"", "not-an-email", "a@b", "@b.com", "a@.com", "a b@c.com", "a@b.c om", "a@@b.com", "a@b.com ", " a@b.com", "a@b.　com"}

	for _, e := range accept {
		assert.True(t, ValidEmail(e), "expected %q to be accepted", e)
	}
	for _, e := range reject {
		assert.False(t, ValidEmail(e), "expected %q to be rejected", e)
	}
}

func TestValidateContact(t *testing.T) {
	tests := []struct {
		name string
		in   ContactSubmission
		want []string
	}{
		{
			name: "valid",
			in:   ContactSubmission{Name: "Al", Email: "al@x.com", Subject: "Hello there", Message: "This is a test message."},
			want: nil,
		},
		{
			name: "all four rules fail",
			in:   ContactSubmission{Name: "A", Email: "bad", Subject: "Hi", Message: "short"},
			want: []string{MsgNameTooShort, MsgInvalidEmail, MsgSubjectTooShort, MsgMessageTooShort},
		},
		{
			name: "missing name and message reported together",
			in:   ContactSubmission{Email: "al@x.com", Subject: "Hello there"},
			want: []string{MsgNameTooShort, MsgMessageTooShort},
		},
		{
			name: "whitespace does not count toward length",
			in:   ContactSubmission{Name: "  A  ", Email: "al@x.com", Subject: "   Hi    ", Message: "\n\tok    "},
			want: []string{MsgNameTooShort, MsgSubjectTooShort, MsgMessageTooShort},
		},
		{
			name: "lengths count code points",
			in:   ContactSubmission{Name: "李雷", Email: "li@x.cn", Subject: "こんにちは", Message: "ünïcødé ok"},
			want: nil,
		},
		{
			name: "email is not trimmed before matching",
			in:   ContactSubmission{Name: "Al", Email: " al@x.com", Subject: "Hello there", Message: "This is a test message."},
			want: []string{MsgInvalidEmail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateContact(tt.in))
		})
	}
}

func TestValidateNewsletterEmail(t *testing.T) {
	assert.Empty(t, ValidateNewsletterEmail("new@sub.com"))
	assert.Equal(t, MsgInvalidEmail, ValidateNewsletterEmail(""))
	assert.Equal(t, MsgInvalidEmail, ValidateNewsletterEmail("new@sub"))
}

func TestSanitizeContact(t *testing.T) {
	in := ContactSubmission{
		Name:    "  Ana María \n",
		Email:   "Ana.Maria@Example.COM",
		Subject: "\tProject inquiry ",
		Message: "  Line one\nLine two  ",
	}
	got := in.Sanitize()
	assert.Equal(t, ContactSubmission{
		Name:    "Ana María",
		Email:   "ana.maria@example.com",
		Subject: "Project inquiry",
		Message: "Line one\nLine two",
	}, got)

	require.Equal(t, got, got.Sanitize(), "sanitizing twice must be a no-op")
}

func TestSanitizeNewsletter(t *testing.T) {
	got := NewsletterSubscription{Email: " New@Sub.com "}.Sanitize()
	assert.Equal(t, NewsletterSubscription{Email: "new@sub.com", Source: DefaultSource}, got)
	assert.Equal(t, got, got.Sanitize())

	got = NewsletterSubscription{Email: "new@sub.com", Source: "  footer "}.Sanitize()
	assert.Equal(t, "footer", got.Source)
}

func TestValidatorTags(t *testing.T) {
	assert.NoError(t, validate.Var(" ab ", "trimmin=2"))
	assert.Error(t, validate.Var(" a ", "trimmin=2"))
	assert.Error(t, validate.Var("abcdef", "trimmin=two"), "a malformed param never passes")

	assert.NoError(t, validate.Var("a@b.co", tagEmail))
	assert.Error(t, validate.Var("a@b", tagEmail))

	t.Run("struct errors keep field order", func(t *testing.T) {
		err := validate.Struct(ContactSubmission{Name: "A", Email: "bad", Subject: "Hi", Message: "short"})
		require.Error(t, err)
		assert.Equal(t, []string{MsgNameTooShort, MsgInvalidEmail, MsgSubjectTooShort, MsgMessageTooShort}, messages(err))
	})

	t.Run("nil is valid", func(t *testing.T) {
		assert.Nil(t, messages(nil))
	})
}
