package deviation

import (
	"errors"
	"fmt"
)

// ConfigurationMismatchError reports two tables without a single element in common.
type ConfigurationMismatchError struct {
	Reference string
	Perturbed string
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf("configuration mismatch: tables %q and %q share no element", e.Reference, e.Perturbed)
}

// DegenerateReferenceError reports a zero reference value that a relative
// deviation cannot be taken against.
type DegenerateReferenceError struct {
	Element string
	Column  string
	Table   string
}

func (e *DegenerateReferenceError) Error() string {
	return fmt.Sprintf("zero %s at %q in reference table %q", e.Column, e.Element, e.Table)
}

// IsConfigurationMismatch returns true if err is or wraps a ConfigurationMismatchError.
func IsConfigurationMismatch(err error) bool {
	var ce *ConfigurationMismatchError
	return errors.As(err, &ce)
}
