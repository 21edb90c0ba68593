package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist contains path and content regex patterns to exclude from secret
// detection.
type Allowlist struct {
	Paths   []string // File path regex patterns to ignore
	Regexes []string // Content regex patterns to ignore
}

// LoadAllowlists loads and merges workspace and user allowlists using union
// (OR) logic.
//
// workspacePath names a directory that may contain a conventional
// .gitleaks.toml; a missing file there is silently skipped. userPath names an
// explicitly configured allowlist file; when set, a missing file is an error
// wrapping ErrAllowlistNotFound, so a typo in the daemon config surfaces at
// startup instead of silently changing what gets redacted. Either argument
// may be empty to skip that source.
func LoadAllowlists(workspacePath, userPath string) (*Allowlist, error) {
	merged := &Allowlist{
		Paths:   []string{},
		Regexes: []string{},
	}

	if workspacePath != "" {
		workspaceFile := filepath.Join(workspacePath, ".gitleaks.toml")
		if workspace, err := loadTOML(workspaceFile); err != nil {
			// Only fail if the file exists but is invalid
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merged.Paths = append(merged.Paths, workspace.Paths...)
			merged.Regexes = append(merged.Regexes, workspace.Regexes...)
		}
	}

	if userPath != "" {
		user, err := loadTOML(userPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrAllowlistNotFound, userPath)
			}
			return nil, err
		}
		merged.Paths = append(merged.Paths, user.Paths...)
		merged.Regexes = append(merged.Regexes, user.Regexes...)
	}

	return merged, nil
}

// loadTOML loads and validates a single allowlist file.
func loadTOML(path string) (*Allowlist, error) {
	var config struct {
		Allowlist struct {
			Paths   []string
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err // os.IsNotExist can identify this
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	// Validate patterns fail-fast so applyAllowlist never sees a bad regex
	for _, pattern := range config.Allowlist.Paths {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid path pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}

	for _, pattern := range config.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{
		Paths:   config.Allowlist.Paths,
		Regexes: config.Allowlist.Regexes,
	}, nil
}
