package volume

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("decode document")
	// ErrMissingField matches every *KeyLookupError.
	ErrMissingField = errors.New("missing field")
)

// DecodeError reports a document that could not be decompressed or parsed.
type DecodeError struct {
	// Name is the source entry the document came from, if known.
	Name string
	// Op is the failing step: "decompress" or "parse".
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("decode document: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("decode %s: %s: %v", e.Name, e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// KeyLookupError reports a required field absent from a document.
type KeyLookupError struct {
	// Field is the dotted path of the missing field,
	// e.g. "features.pages[3].body.tokenPosCount".
	Field string
}

func (e *KeyLookupError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// Is reports whether target is ErrMissingField.
func (e *KeyLookupError) Is(target error) bool { return target == ErrMissingField }
