package address

import "errors"

var (
	// ErrInvalidFormat is returned when a textual address does not match the
	// expected number of dot- or slash-separated components.
	ErrInvalidFormat = errors.New("address: invalid format")

	// ErrOutOfRange is returned when a component exceeds the bit width
	// allotted to it by the addressing scheme in use.
	ErrOutOfRange = errors.New("address: component out of range")

	// ErrUnknownKind is returned when Kind holds a value this package does
	// not recognise.
	ErrUnknownKind = errors.New("address: unknown kind")
)
