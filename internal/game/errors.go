package game

import "github.com/civmodel/civkernel/internal/game/rules"

// Re-exported so callers of the kernel need not import rules for errors.Is checks.
var (
	ErrInvalidOperation = rules.ErrInvalidOperation
	ErrOutOfRange       = rules.ErrOutOfRange
	ErrInvalidArgument  = rules.ErrInvalidArgument
)
