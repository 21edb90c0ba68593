package executor

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/triad/internal/workflow"
)

// analysisSuggestions is the fixed advice attached to every analysis.
var analysisSuggestions = []string{
	"Add unit tests covering the new logic",
	"Review error handling on failure paths",
	"Extract duplicated logic into shared helpers",
	"Document exported functions and complex sections",
}

// analyzeCode runs local, side-effect-free heuristics over the action's
// code payload. It always succeeds.
func (e *Executor) analyzeCode(action *workflow.Action) *workflow.Result {
	code, ok := stringParam(action.Parameters, "code", "content", "text")
	if !ok {
		code = action.Description
	}

	lines := strings.Count(code, "\n") + 1
	if code == "" {
		lines = 0
	}

	data := map[string]interface{}{
		"lines":       lines,
		"characters":  len(code),
		"functions":   strings.Count(code, "function") + strings.Count(code, "func "),
		"classes":     strings.Count(code, "class "),
		"imports":     strings.Count(code, "import ") + strings.Count(code, "require("),
		"suggestions": analysisSuggestions,
	}

	return workflow.NewResult(workflow.ActionAnalyzeCode, action.Title,
		fmt.Sprintf("Analyzed %d lines of code", lines), data)
}
