package stimulus

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below.
var (
	ErrAmbiguous = errors.New("ambiguous stimulus samples")
	ErrMalformed = errors.New("malformed stimulus")
)

// AmbiguityError reports two sample times within the tolerance of each
// other.
type AmbiguityError struct {
	First, Second float64
	Tolerance     float64
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf(
		"stimulus samples at %g and %g are within the tolerance %g",
		e.First, e.Second, e.Tolerance)
}

// Is makes the error match ErrAmbiguous.
func (e *AmbiguityError) Is(target error) bool {
	return target == ErrAmbiguous
}

// MalformedError reports stimulus data that cannot form a table.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed stimulus: " + e.Reason
}

// Is makes the error match ErrMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(format string, args ...any) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}
