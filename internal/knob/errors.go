package knob

import (
	"errors"
	"fmt"
)

// UnknownCircuitError reports a selected circuit that neither table knows.
type UnknownCircuitError struct {
	Circuit string
}

func (e *UnknownCircuitError) Error() string {
	return fmt.Sprintf("unknown circuit %q: absent from both tables", e.Circuit)
}

// DuplicateCircuitError reports a circuit appearing twice in one knob set.
type DuplicateCircuitError struct {
	Circuit string
	Line    int // source line when read from a file, 0 otherwise
}

func (e *DuplicateCircuitError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("duplicate circuit %q at line %d", e.Circuit, e.Line)
	}
	return fmt.Sprintf("duplicate circuit %q", e.Circuit)
}

// ConfigurationMismatchError reports nominal and perturbed inputs that do not
// describe the same circuits or the same beam.
type ConfigurationMismatchError struct {
	Circuit string // offending circuit, empty for a beam mismatch
	Message string
}

func (e *ConfigurationMismatchError) Error() string {
	if e.Circuit != "" {
		return fmt.Sprintf("configuration mismatch on circuit %q: %s", e.Circuit, e.Message)
	}
	return fmt.Sprintf("configuration mismatch: %s", e.Message)
}

// IsUnknownCircuit returns true if err is or wraps an UnknownCircuitError.
func IsUnknownCircuit(err error) bool {
	var ue *UnknownCircuitError
	return errors.As(err, &ue)
}

// IsDuplicateCircuit returns true if err is or wraps a DuplicateCircuitError.
func IsDuplicateCircuit(err error) bool {
	var de *DuplicateCircuitError
	return errors.As(err, &de)
}

// IsConfigurationMismatch returns true if err is or wraps a ConfigurationMismatchError.
func IsConfigurationMismatch(err error) bool {
	var ce *ConfigurationMismatchError
	return errors.As(err, &ce)
}
