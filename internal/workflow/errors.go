package workflow

import "errors"

// Errors for workflow configuration and lookup.
var (
	// ErrMissingAgent indicates no enabled agent is configured for a role.
	ErrMissingAgent = errors.New("no enabled agent for role")

	// ErrMissingModel indicates a model id is not registered or the model
	// is disabled.
	ErrMissingModel = errors.New("model not available")

	// ErrWorkflowNotFound indicates an unknown workflow id.
	ErrWorkflowNotFound = errors.New("workflow not found")
)
