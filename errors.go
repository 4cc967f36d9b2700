package strictenc

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by this package wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrConfinement    = errors.New("strictenc: confinement violation")
	ErrUnexpectedEOF  = errors.New("strictenc: unexpected end of stream")
	ErrWriteLimit     = errors.New("strictenc: write limit exceeded")
	ErrReadLimit      = errors.New("strictenc: read limit exceeded")
	ErrInvalidBool    = errors.New("strictenc: invalid boolean")
	ErrInvalidText    = errors.New("strictenc: invalid text")
	ErrUnknownVariant = errors.New("strictenc: unknown variant")
	ErrDuplicateKey   = errors.New("strictenc: duplicate key")
	ErrUnsortedKeys   = errors.New("strictenc: keys not in canonical order")
	ErrTypeMismatch   = errors.New("strictenc: value does not match type")
	ErrTrailingData   = errors.New("strictenc: data not entirely consumed")
	ErrInvalidType    = errors.New("strictenc: invalid type description")
)

// ConfinementError reports a collection whose element count falls outside
// its declared bound.
type ConfinementError struct {
	Len      uint64
	Min, Max uint64
}

func (e *ConfinementError) Error() string {
	return fmt.Sprintf("strictenc: confinement violation: length %d outside [%d, %d]", e.Len, e.Min, e.Max)
}

func (e *ConfinementError) Unwrap() error { return ErrConfinement }

// VariantError reports a decoded tag with no declared variant.
type VariantError struct {
	Type string
	Tag  uint8
}

func (e *VariantError) Error() string {
	name := e.Type
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("strictenc: unknown variant tag %d for %s", e.Tag, name)
}

func (e *VariantError) Unwrap() error { return ErrUnknownVariant }

// MismatchError reports a value whose shape does not match the description
// it is being encoded against. Path locates the offending node, e.g.
// "Order.items[2].price".
type MismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	if e.Got == "" {
		return fmt.Sprintf("strictenc: type mismatch at %s: want %s", path, e.Want)
	}
	return fmt.Sprintf("strictenc: type mismatch at %s: want %s, got %s", path, e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrTypeMismatch }

// DescError reports a malformed type description. It is returned when a
// description is declared, never while encoding values.
type DescError struct {
	Type   string
	Reason string
}

func (e *DescError) Error() string {
	if e.Type == "" {
		return "strictenc: invalid type description: " + e.Reason
	}
	return fmt.Sprintf("strictenc: invalid type description %s: %s", e.Type, e.Reason)
}

func (e *DescError) Unwrap() error { return ErrInvalidType }

func descErr(name, format string, args ...any) error {
	return &DescError{Type: name, Reason: fmt.Sprintf(format, args...)}
}
