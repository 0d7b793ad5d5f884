package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/rws/internal/archive"
	"github.com/roach88/rws/internal/deviation"
	"github.com/roach88/rws/internal/knob"
	"github.com/roach88/rws/internal/knobfile"
	"github.com/roach88/rws/internal/optics"
)

// Exit statuses of the rws command.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // inputs rejected: mismatch, unknown circuit, malformed file
	ExitCommandError = 2 // command unusable: bad flags, missing paths, unwritable output
)

// ExitError carries the exit status a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the status the process should exit with: ExitSuccess
// for nil, the code of a wrapped ExitError, else ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeInvalidInput = "E002" // Invalid flag or scenario
	ErrCodeNotFound     = "E005" // Path or archive entry not found
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeArchive      = "E008" // Archive open or write error

	// Optics table errors
	ErrCodeTableSyntax      = "E101" // Malformed TFS line
	ErrCodeDuplicateElement = "E102" // Two rows with one element name
	ErrCodeUnknownColumn    = "E103" // Requested column absent
	ErrCodeUnknownElement   = "E104" // Requested element absent

	// Comparison and derivation errors
	ErrCodeMismatch            = "E110" // Tables describe different configurations
	ErrCodeDegenerateReference = "E111" // Zero reference beta
	ErrCodeUnknownCircuit      = "E112" // Selected circuit absent from both tables

	// Knob file errors
	ErrCodeDuplicateCircuit = "E120" // Circuit assigned twice
	ErrCodeMissingReference = "E121" // No nominal powering for a circuit
	ErrCodeKnobSyntax       = "E122" // Malformed knob file line
)

// codedError pins the code and exit status of a failure that carries no
// typed error of its own.
type codedError struct {
	code string
	exit int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }

func (e *codedError) Unwrap() error { return e.err }

// invalidInput marks a failure caused by the user's flags or scenario file.
func invalidInput(err error) error {
	return &codedError{code: ErrCodeInvalidInput, exit: ExitCommandError, err: err}
}

// writeFailed marks a failure to write an output file.
func writeFailed(err error) error {
	return &codedError{code: ErrCodeWriteFailed, exit: ExitCommandError, err: err}
}

// archiveFailed marks a failure of the knob archive.
func archiveFailed(err error) error {
	return &codedError{code: ErrCodeArchive, exit: ExitCommandError, err: err}
}

// classify maps an error to its CLI error code, exit code and JSON details.
func classify(err error) (code string, exit int, details interface{}) {
	var (
		unknownColumn    *optics.UnknownColumnError
		unknownElement   *optics.UnknownElementError
		duplicateElement *optics.DuplicateElementError
		tableSyntax      *optics.ParseError
		tableMismatch    *deviation.ConfigurationMismatchError
		degenerate       *deviation.DegenerateReferenceError
		knobMismatch     *knob.ConfigurationMismatchError
		unknownCircuit   *knob.UnknownCircuitError
		duplicateCircuit *knob.DuplicateCircuitError
		missingReference *knobfile.MissingReferenceError
		knobSyntax       *knobfile.SyntaxError
		coded            *codedError
	)

	switch {
	case errors.As(err, &unknownCircuit):
		return ErrCodeUnknownCircuit, ExitFailure, map[string]string{"circuit": unknownCircuit.Circuit}
	case errors.As(err, &knobMismatch):
		return ErrCodeMismatch, ExitFailure, map[string]string{"circuit": knobMismatch.Circuit}
	case errors.As(err, &tableMismatch):
		return ErrCodeMismatch, ExitFailure, map[string]string{
			"reference": tableMismatch.Reference,
			"perturbed": tableMismatch.Perturbed,
		}
	case errors.As(err, &degenerate):
		return ErrCodeDegenerateReference, ExitFailure, map[string]string{"element": degenerate.Element}
	case errors.As(err, &duplicateCircuit):
		return ErrCodeDuplicateCircuit, ExitFailure, map[string]interface{}{
			"circuit": duplicateCircuit.Circuit,
			"line":    duplicateCircuit.Line,
		}
	case errors.As(err, &missingReference):
		return ErrCodeMissingReference, ExitFailure, map[string]string{"circuit": missingReference.Circuit}
	case errors.As(err, &knobSyntax):
		return ErrCodeKnobSyntax, ExitFailure, map[string]int{"line": knobSyntax.Line}
	case errors.As(err, &unknownColumn):
		return ErrCodeUnknownColumn, ExitFailure, map[string]string{"column": unknownColumn.Column}
	case errors.As(err, &unknownElement):
		return ErrCodeUnknownElement, ExitFailure, map[string]string{"element": unknownElement.Element}
	case errors.As(err, &duplicateElement):
		return ErrCodeDuplicateElement, ExitFailure, map[string]string{"element": duplicateElement.Element}
	case errors.As(err, &tableSyntax):
		return ErrCodeTableSyntax, ExitFailure, map[string]int{"line": tableSyntax.Line}
	case errors.Is(err, archive.ErrNotFound):
		return ErrCodeNotFound, ExitCommandError, nil
	case errors.As(err, &coded):
		return coded.code, coded.exit, nil
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError, nil
	}
	return ErrCodeGeneric, ExitFailure, nil
}
