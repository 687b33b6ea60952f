package engine

import "errors"

// InputError reports invalid caller input (missing budget, empty product or
// bundle set). It is always surfaced to the caller and never retried.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

// NewInputError builds an InputError with a human-readable reason.
func NewInputError(reason string) error {
	return &InputError{Reason: reason}
}

// IsInputError reports whether err is an InputError anywhere in its chain.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
