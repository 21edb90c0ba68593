// Package secrets detects and redacts secrets in prompt context before it
// is sent to a model provider. Detection uses the Gitleaks SDK; redaction
// replaces each secret with a marker that keeps the surrounding text
// readable for the model.
package secrets

import "errors"

var (
	// ErrInvalidRegex indicates an allowlist regex pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")

	// ErrAllowlistNotFound indicates an explicitly configured allowlist file
	// does not exist.
	ErrAllowlistNotFound = errors.New("allowlist file not found")
)
