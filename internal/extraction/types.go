package extraction

import (
	"github.com/fyrsmithlabs/triad/internal/workflow"
)

// ActionExtractor turns a model's free-text response into typed actions.
type ActionExtractor interface {
	// Extract parses actions from model output. It never returns an empty
	// list: output with no recognizable marker yields one completed
	// analyze_code action holding the full text.
	Extract(text string) []*workflow.Action
}

// Marker is one secondary action convention, scanned over the text
// remaining after file-block extraction. The regex must capture the
// imperative text as group 1; the captured text's leading verb selects
// the action type. Default is the type used when the verb is not
// recognized; a marker with an empty Default drops unrecognized matches
// instead.
type Marker struct {
	Name    string              `json:"name"`
	Regex   string              `json:"regex"`
	Default workflow.ActionType `json:"default,omitempty"`
}

// DefaultMarkers returns the built-in secondary action conventions.
func DefaultMarkers() []Marker {
	return []Marker{
		// An explicit action line always yields an action; an unrecognized
		// verb is recorded for analysis rather than dropped.
		{Name: "action_line", Regex: `(?mi)^Action:[ \t]*(.+?)[ \t]*$`, Default: workflow.ActionAnalyzeCode},

		// Numbered steps only count when they start with a known action
		// verb; plain list items are prose, not instructions.
		{Name: "numbered_step", Regex: `(?m)^[ \t]*\d+[.)][ \t]+([A-Za-z].*?)[ \t]*$`},
	}
}

// verbTypes maps the leading verb of a matched marker to an action type.
var verbTypes = map[string]workflow.ActionType{
	"install": workflow.ActionInstallPackage,

	"uninstall": workflow.ActionUninstallPackage,
	"remove":    workflow.ActionUninstallPackage,

	"build":   workflow.ActionExecuteCommand,
	"setup":   workflow.ActionExecuteCommand,
	"run":     workflow.ActionExecuteCommand,
	"execute": workflow.ActionExecuteCommand,
	"test":    workflow.ActionExecuteCommand,

	"implement": workflow.ActionModifyFile,
	"configure": workflow.ActionModifyFile,
	"update":    workflow.ActionModifyFile,
	"modify":    workflow.ActionModifyFile,
	"edit":      workflow.ActionModifyFile,

	"create":   workflow.ActionCreateFile,
	"add":      workflow.ActionCreateFile,
	"write":    workflow.ActionCreateFile,
	"generate": workflow.ActionCreateFile,

	"search":   workflow.ActionSearchWeb,
	"find":     workflow.ActionSearchWeb,
	"research": workflow.ActionSearchWeb,

	"analyze": workflow.ActionAnalyzeCode,
	"review":  workflow.ActionAnalyzeCode,
	"check":   workflow.ActionAnalyzeCode,
	"inspect": workflow.ActionAnalyzeCode,
}
