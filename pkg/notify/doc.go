// Package notify runs a submission through rate check, validation,
// sanitization and rendering, then sends the admin notification and the
// submitter acknowledgment concurrently.
package notify
