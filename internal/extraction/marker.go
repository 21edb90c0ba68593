package extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/triad/internal/workflow"
)

// fileBlockRegex matches the explicit file-emission convention: a
// "FILE: <name>" line immediately followed by a fenced code block.
// Group 1 is the file name, group 2 the optional language tag, group 3
// the fence's inner text. An unterminated fence has no closing match and
// is skipped.
var fileBlockRegex = regexp.MustCompile("(?m)^FILE:[ \t]*(\\S+)[ \t]*\r?\n```([A-Za-z0-9_+.#-]*)[ \t]*\r?\n((?s:.*?))\r?\n?```")

// MarkerExtractor implements ActionExtractor using pattern matching.
type MarkerExtractor struct {
	markers []*compiledMarker
}

// compiledMarker holds a pre-compiled marker regex.
type compiledMarker struct {
	Marker
	regex *regexp.Regexp
}

// NewMarkerExtractor creates an extractor over the given markers; nil
// selects DefaultMarkers. Markers with invalid regexes are skipped.
func NewMarkerExtractor(markers []Marker) *MarkerExtractor {
	if len(markers) == 0 {
		markers = DefaultMarkers()
	}

	compiled := make([]*compiledMarker, 0, len(markers))
	for _, m := range markers {
		re, err := regexp.Compile(m.Regex)
		if err != nil {
			// Skip invalid markers
			continue
		}
		compiled = append(compiled, &compiledMarker{Marker: m, regex: re})
	}

	return &MarkerExtractor{markers: compiled}
}

// Extract parses actions from model output in priority order: file blocks
// first, secondary markers over the remaining text, then the synthesized
// analysis fallback when nothing matched.
func (e *MarkerExtractor) Extract(text string) []*workflow.Action {
	actions, remaining := extractFileBlocks(text)
	actions = append(actions, e.extractMarkers(remaining)...)

	if len(actions) == 0 {
		actions = append(actions, synthesizeAnalysis(text))
	}

	return actions
}

// extractFileBlocks yields one create_file action per FILE block and
// returns the text outside the matched blocks for the marker pass, so a
// file emission is never double-counted as a generic action.
func extractFileBlocks(text string) ([]*workflow.Action, string) {
	matches := fileBlockRegex.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, text
	}

	var actions []*workflow.Action
	var rest strings.Builder
	last := 0
	for _, m := range matches {
		name := strings.Trim(text[m[2]:m[3]], "`")
		language := text[m[4]:m[5]]
		content := text[m[6]:m[7]]

		params := map[string]interface{}{
			"name":    name,
			"content": content,
		}
		if language != "" {
			params["language"] = language
		}

		actions = append(actions, workflow.NewAction(
			workflow.ActionCreateFile,
			"Create "+name,
			fmt.Sprintf("create file %s (%d bytes)", name, len(content)),
			params,
		))

		rest.WriteString(text[last:m[0]])
		last = m[1]
	}
	rest.WriteString(text[last:])

	return actions, rest.String()
}

// extractMarkers scans remaining text for secondary conventions, keeping
// matches in document order and dropping overlaps between markers.
func (e *MarkerExtractor) extractMarkers(text string) []*workflow.Action {
	type match struct {
		start, end int
		action     *workflow.Action
	}

	var found []match
	for _, m := range e.markers {
		for _, idx := range m.regex.FindAllStringSubmatchIndex(text, -1) {
			if idx[2] < 0 {
				continue
			}
			captured := text[idx[2]:idx[3]]

			actionType, ok := typeForVerb(captured)
			if !ok {
				if m.Default == "" {
					continue
				}
				actionType = m.Default
			}

			found = append(found, match{
				start: idx[0],
				end:   idx[1],
				action: workflow.NewAction(
					actionType,
					excerpt(captured, 60),
					captured,
					map[string]interface{}{"text": captured},
				),
			})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].start < found[j].start })

	var actions []*workflow.Action
	lastEnd := -1
	for _, f := range found {
		if f.start < lastEnd {
			continue
		}
		actions = append(actions, f.action)
		lastEnd = f.end
	}

	return actions
}

// typeForVerb maps the leading word of a matched text to an action type.
func typeForVerb(text string) (workflow.ActionType, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	verb := strings.ToLower(strings.TrimRight(fields[0], ":.,"))
	t, ok := verbTypes[verb]
	return t, ok
}

// synthesizeAnalysis wraps output with no recognizable markers in a
// single analyze_code action, already completed, so a model turn always
// leaves an auditable artifact.
func synthesizeAnalysis(text string) *workflow.Action {
	action := workflow.NewAction(
		workflow.ActionAnalyzeCode,
		"Analyze model output",
		"no actionable markers found; captured the full output for review",
		map[string]interface{}{"code": text},
	)
	action.SetStatus(workflow.StatusCompleted)
	return action
}

// excerpt shortens s for display.
func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// Ensure MarkerExtractor implements ActionExtractor.
var _ ActionExtractor = (*MarkerExtractor)(nil)
