package knobfile

import (
	"errors"
	"fmt"
)

// SyntaxError reports a line of a knob file that cannot be parsed.
type SyntaxError struct {
	Line    int
	Text    string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Message, e.Text)
}

// MissingReferenceError reports a circuit with no nominal powering to add its
// delta to.
type MissingReferenceError struct {
	Circuit string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("no nominal powering for circuit %q", e.Circuit)
}

// IsSyntaxError returns true if err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsMissingReference returns true if err is or wraps a MissingReferenceError.
func IsMissingReference(err error) bool {
	var me *MissingReferenceError
	return errors.As(err, &me)
}
