package dispatch

import "errors"

var (
	// ErrConfiguration means the transport has no credentials. Nothing is sent.
	ErrConfiguration = errors.New("email transport is not configured")
	// ErrValidation means the request itself is unusable. Nothing is sent.
	ErrValidation = errors.New("invalid dispatch request")
	// ErrInvalidRecipient is recorded against a single recipient.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// validationError keeps the human readable reason while matching ErrValidation.
type validationError struct {
	reason string
}

func (e *validationError) Error() string { return e.reason }

func (e *validationError) Unwrap() error { return ErrValidation }

func invalid(reason string) error {
	return &validationError{reason: reason}
}
