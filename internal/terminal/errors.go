package terminal

import "errors"

var (
	// ErrEmptyCommand is returned for a blank command string.
	ErrEmptyCommand = errors.New("empty command")

	// ErrTimeout is returned when a command exceeds the configured timeout.
	ErrTimeout = errors.New("command timed out")

	// ErrNonZeroExit is returned when a command exits with non-zero status.
	// The Result alongside it still carries the captured output.
	ErrNonZeroExit = errors.New("command exited with non-zero status")
)
