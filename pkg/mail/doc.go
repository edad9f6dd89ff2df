// Package mail renders the contact and newsletter emails from embedded HTML
// templates and delivers them through SMTP, the Resend API or the log.
package mail
