package optics

import (
	"errors"
	"fmt"
)

// UnknownColumnError reports a requested column that the table does not carry.
// Column holds the name exactly as the caller spelled it.
type UnknownColumnError struct {
	Column string
	Table  string
}

func (e *UnknownColumnError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("unknown column %q in table %q", e.Column, e.Table)
	}
	return fmt.Sprintf("unknown column %q", e.Column)
}

// UnknownElementError reports a lookup of an element absent from the table.
type UnknownElementError struct {
	Element string
	Table   string
}

func (e *UnknownElementError) Error() string {
	return fmt.Sprintf("unknown element %q in table %q", e.Element, e.Table)
}

// DuplicateElementError reports two rows sharing an element name.
type DuplicateElementError struct {
	Element string
	Rows    [2]int
}

func (e *DuplicateElementError) Error() string {
	return fmt.Sprintf("duplicate element %q (rows %d and %d)", e.Element, e.Rows[0], e.Rows[1])
}

// ParseError reports a malformed TFS line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tfs line %d: %s", e.Line, e.Message)
}

// IsUnknownColumn returns true if err is or wraps an UnknownColumnError.
func IsUnknownColumn(err error) bool {
	var ue *UnknownColumnError
	return errors.As(err, &ue)
}

// IsDuplicateElement returns true if err is or wraps a DuplicateElementError.
func IsDuplicateElement(err error) bool {
	var de *DuplicateElementError
	return errors.As(err, &de)
}
