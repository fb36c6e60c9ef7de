// Package pe walks the headers of a PE image that is already laid out in
// memory and extracts the CodeView record that points at its PDB.
package pe

import (
	"errors"
	"fmt"
)

// ErrMalformedHeader indicates a PE structure that does not look like a
// loaded image.
var ErrMalformedHeader = errors.New("pe: malformed header")

// HeaderError provides detail about a field that failed validation.
type HeaderError struct {
	Field  string // name of the offending field
	Offset uint64 // offset from the image base
	Value  uint64 // value that was read
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("pe: malformed header: %s at offset 0x%x has value 0x%x", e.Field, e.Offset, e.Value)
}

func (e *HeaderError) Is(target error) bool { return target == ErrMalformedHeader }
