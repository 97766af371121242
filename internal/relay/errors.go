package relay

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a connection that is already bound
// to one user announces a different user id.
var ErrInvalidState = errors.New("connection already bound to a different user")

// ValidationError signals a malformed or incomplete inbound message.
// It is rejected locally and never broadcast.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
