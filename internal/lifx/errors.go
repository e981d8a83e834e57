package lifx

import "errors"

var (
	// ErrUnreachable indicates a light did not answer a request
	ErrUnreachable = errors.New("device unreachable")

	// ErrUnsupported indicates the light model lacks the requested capability
	ErrUnsupported = errors.New("operation not supported by device")

	// ErrInvalidID indicates a malformed stable identifier
	ErrInvalidID = errors.New("invalid device identifier")

	// ErrLabelTooLong indicates a label that does not fit the bulb's label field
	ErrLabelTooLong = errors.New("label too long")
)
