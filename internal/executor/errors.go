package executor

import "errors"

var (
	// ErrUnknownActionType is returned when an action's type is outside
	// the dispatch table.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrMissingParameter is returned when an action omits a parameter
	// its branch cannot proceed without.
	ErrMissingParameter = errors.New("missing required parameter")
)
