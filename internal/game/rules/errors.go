package rules

import "errors"

// Error taxonomy shared by every kernel package. Callers match with errors.Is.
var (
	// ErrInvalidOperation reports a call that is illegal in the object's current state:
	// mutating a destroyed actor, enabling an enabled effect, ending a turn never started.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrOutOfRange reports an AP/HP/ratio value outside its declared bounds.
	ErrOutOfRange = errors.New("value out of range")

	// ErrInvalidArgument reports a malformed argument: nil references, battle against self.
	ErrInvalidArgument = errors.New("invalid argument")
)
