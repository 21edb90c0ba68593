package secrets

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Options configures allowlist loading for a Scrubber.
type Options struct {
	WorkspacePath string // Directory that may contain a .gitleaks.toml (empty to skip)
	UserPath      string // Explicit path to a user allowlist.toml (empty to skip)
}

// Result contains scrubbed content and audit information.
type Result struct {
	Content string   // Content with [REDACTED:rule-id:preview] markers
	Audit   AuditLog // Audit trail of redactions
}

// Scrubber redacts secrets from context blocks before they are embedded in
// model prompts. Allowlists are loaded and validated once at construction
// and reused for every Scrub call. A Scrubber is safe for concurrent use.
type Scrubber struct {
	allowlist *Allowlist
}

// NewScrubber loads the configured allowlists and returns a ready Scrubber.
func NewScrubber(opts Options) (*Scrubber, error) {
	allowlist, err := LoadAllowlists(opts.WorkspacePath, opts.UserPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlists: %w", err)
	}
	return &Scrubber{allowlist: allowlist}, nil
}

// Scrub detects and redacts secrets from a context block. source labels the
// block's origin in the audit log (e.g. "file:src/index.ts", "terminal").
// Returns the content with [REDACTED:rule-id:preview] markers in place of
// each secret, and an audit log that records positions and rule IDs but
// never the secret values themselves.
//
// Redaction markers keep the surrounding text readable so the model still
// sees where a credential was used, just not its value.
func (s *Scrubber) Scrub(source, content string) (Result, error) {
	startTime := time.Now()

	findings, err := Detect(content, s.allowlist)
	if err != nil {
		return Result{}, fmt.Errorf("detecting secrets: %w", err)
	}

	audit := buildAuditLog(source, findings, time.Since(startTime))

	// No secrets found, return the original content
	if len(findings) == 0 {
		return Result{
			Content: content,
			Audit:   audit,
		}, nil
	}

	return Result{
		Content: replaceFindings(content, findings),
		Audit:   audit,
	}, nil
}

// replaceFindings replaces secrets with redaction markers.
// Works backwards through findings to preserve string indices.
func replaceFindings(content string, findings []Finding) string {
	// Sort findings by position (reverse order to preserve indices)
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line > sorted[j].Line
		}
		return sorted[i].StartCol > sorted[j].StartCol
	})

	lines := strings.Split(content, "\n")

	for _, finding := range sorted {
		if finding.Line < 1 || finding.Line > len(lines) {
			continue // Skip invalid line numbers
		}

		line := lines[finding.Line-1]

		preview := extractPreview(finding.Match, 4)
		marker := fmt.Sprintf("[REDACTED:%s:%s]", finding.RuleID, preview)

		if finding.StartCol >= 0 && finding.EndCol <= len(line) {
			before := line[:finding.StartCol]
			after := line[finding.EndCol:]
			lines[finding.Line-1] = before + marker + after
		}
	}

	return strings.Join(lines, "\n")
}

// extractPreview returns the first n characters of a string as a preview.
func extractPreview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// buildAuditLog constructs an audit log from findings and timing information.
func buildAuditLog(source string, findings []Finding, processingTime time.Duration) AuditLog {
	redactions := make([]Redaction, 0, len(findings))
	ruleCounts := make(map[string]int)
	uniqueRules := make(map[string]struct{})

	for _, f := range findings {
		redactions = append(redactions, Redaction{
			RuleID:      f.RuleID,
			RuleDesc:    f.RuleDesc,
			LineNumber:  f.Line,
			Column:      f.StartCol,
			OriginalLen: len(f.Match),
			Preview:     extractPreview(f.Match, 4),
		})

		ruleCounts[f.RuleID]++
		uniqueRules[f.RuleID] = struct{}{}
	}

	return AuditLog{
		Timestamp:  time.Now(),
		Source:     source,
		Redactions: redactions,
		Summary: Summary{
			TotalSecrets:     len(findings),
			UniqueRules:      len(uniqueRules),
			RuleCounts:       ruleCounts,
			ProcessingTimeMs: processingTime.Milliseconds(),
		},
	}
}
