package notify

import (
	"strings"
)

// ValidationError lists every rule the submission broke, in field order.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// SendError means at least one of the two emails could not be handed to the
// transport. The other one may have been delivered.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "sending notification failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}
