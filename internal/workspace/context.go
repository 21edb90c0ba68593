package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/pkg/secrets"
)

const (
	// maxActiveFileChars bounds the active-file excerpt in the context block.
	maxActiveFileChars = 4000

	// historyLines is how many terminal history entries the block carries.
	historyLines = 10
)

// HistoryProvider supplies recent terminal output for the context block.
type HistoryProvider interface {
	History(n int) []string
}

// ContextBuilder assembles the per-phase context block: project file
// listing, active file content, recent terminal output, known dependencies
// from package.json, and a git summary line. The assembled block passes
// through the secret scrubber before it is returned.
type ContextBuilder struct {
	store    *Store
	history  HistoryProvider   // optional
	scrubber *secrets.Scrubber // optional, but wired in production
	log      *logging.Logger
}

// NewContextBuilder creates a context builder. history and scrubber may be
// nil; the corresponding section (or the scrub pass) is then skipped.
func NewContextBuilder(store *Store, history HistoryProvider, scrubber *secrets.Scrubber, log *logging.Logger) *ContextBuilder {
	return &ContextBuilder{
		store:    store,
		history:  history,
		scrubber: scrubber,
		log:      log.Named("context"),
	}
}

// Build assembles and scrubs the context block. An empty workspace yields
// an empty block, which callers may omit from the prompt entirely.
func (b *ContextBuilder) Build(ctx context.Context) (string, error) {
	var sb strings.Builder

	files := b.store.List()
	if len(files) > 0 {
		sb.WriteString("Project Files:\n")
		for _, f := range files {
			if f.Language != "" {
				sb.WriteString(fmt.Sprintf("- %s (%s)\n", f.Path, f.Language))
			} else {
				sb.WriteString(fmt.Sprintf("- %s\n", f.Path))
			}
		}
		sb.WriteString("\n")
	}

	if active := b.store.ActiveFile(); active != nil {
		sb.WriteString(fmt.Sprintf("Active File: %s\n", active.Path))
		sb.WriteString(truncateChars(active.Content, maxActiveFileChars))
		sb.WriteString("\n\n")
	}

	if b.history != nil {
		if lines := b.history.History(historyLines); len(lines) > 0 {
			sb.WriteString("Recent Terminal Output:\n")
			for _, line := range lines {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}

	if deps := b.dependencies(); len(deps) > 0 {
		sb.WriteString("Dependencies:\n")
		for _, dep := range deps {
			sb.WriteString("- ")
			sb.WriteString(dep)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if info := GitSummary(b.store.Root()); !info.Empty() {
		sb.WriteString("Git: ")
		sb.WriteString(info.String())
		sb.WriteString("\n")
	}

	block := strings.TrimRight(sb.String(), "\n")
	if block == "" || b.scrubber == nil {
		return block, nil
	}

	// Fail closed: a block that cannot be scrubbed never reaches the model
	result, err := b.scrubber.Scrub("context", block)
	if err != nil {
		return "", fmt.Errorf("scrubbing context block: %w", err)
	}
	if result.Audit.HasRedactions() {
		b.log.Info(ctx, "redacted secrets from context block",
			zap.Int("count", result.Audit.Summary.TotalSecrets))
	}
	return result.Content, nil
}

// packageJSON is the subset of package.json the context block reports.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// dependencies parses package.json from the store (preferred, the watcher
// keeps it fresh) or the disk root. Returns sorted "name@version" entries,
// dev dependencies marked "(dev)". Missing or malformed files yield nil.
func (b *ContextBuilder) dependencies() []string {
	var raw []byte
	if f, err := b.store.Get("package.json"); err == nil {
		raw = []byte(f.Content)
	} else if root := b.store.Root(); root != "" {
		raw, _ = os.ReadFile(filepath.Join(root, "package.json"))
	}
	if len(raw) == 0 {
		return nil
	}

	var pkg packageJSON
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil
	}

	deps := make([]string, 0, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		deps = append(deps, name+"@"+version)
	}
	for name, version := range pkg.DevDependencies {
		deps = append(deps, name+"@"+version+" (dev)")
	}
	sort.Strings(deps)
	return deps
}

// truncateChars cuts s at n characters, appending a marker when cut.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
