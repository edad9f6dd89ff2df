// Package cli defines the contact-api command line: the serve command that
// wires configuration, mail transport, rate limit stores and the HTTP
// server, plus verify-mail and version.
package cli
