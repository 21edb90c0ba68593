// Package executor dispatches extracted actions against the injected
// collaborators: the workspace file store, the terminal, and the web
// search provider. Each branch produces a Result whose data carries the
// operation's payload; failures surface as errors for the caller to
// convert, except where an action is specified to degrade into a failed
// Result instead.
package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/search"
	"github.com/fyrsmithlabs/triad/internal/terminal"
	"github.com/fyrsmithlabs/triad/internal/workflow"
	"github.com/fyrsmithlabs/triad/internal/workspace"
)

// FileStore is the workspace capability file actions write through.
type FileStore interface {
	CreateFile(name, path, content, language string) (*workspace.File, error)
	ModifyFile(idOrPath, content string) (*workspace.File, error)
	DeleteFile(idOrPath string) error
}

// Terminal runs shell commands and reports their combined output.
type Terminal interface {
	Run(ctx context.Context, command string) (*terminal.Result, error)
}

// SearchProvider answers web queries.
type SearchProvider interface {
	Search(ctx context.Context, query string) (*search.Results, error)
}

// Executor executes one action at a time against the collaborators it
// was built with. A nil terminal switches command execution to canned
// output; a nil search provider fails search actions gracefully.
type Executor struct {
	files    FileStore
	term     Terminal
	searcher SearchProvider
	log      *logging.Logger
}

// NewExecutor wires an executor to its collaborators. files must be
// non-nil; term and searcher may be nil.
func NewExecutor(files FileStore, term Terminal, searcher SearchProvider, log *logging.Logger) *Executor {
	return &Executor{
		files:    files,
		term:     term,
		searcher: searcher,
		log:      log.Named("executor"),
	}
}

// Execute dispatches the action by type. A returned error means the
// branch could not produce a meaningful Result; the caller records it
// as a failed Result on the task.
func (e *Executor) Execute(ctx context.Context, action *workflow.Action) (*workflow.Result, error) {
	e.log.Debug(ctx, "executing action",
		zap.String("action_id", action.ID),
		zap.String("type", string(action.Type)),
		zap.String("title", action.Title))

	switch action.Type {
	case workflow.ActionCreateFile:
		return e.createFile(action)
	case workflow.ActionModifyFile:
		return e.modifyFile(action)
	case workflow.ActionDeleteFile:
		return e.deleteFile(action)
	case workflow.ActionExecuteCommand:
		return e.executeCommand(ctx, action)
	case workflow.ActionInstallPackage:
		return e.installPackage(ctx, action)
	case workflow.ActionUninstallPackage:
		return e.uninstallPackage(ctx, action)
	case workflow.ActionSearchWeb:
		return e.searchWeb(ctx, action)
	case workflow.ActionAnalyzeCode:
		return e.analyzeCode(action), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, action.Type)
	}
}

func (e *Executor) createFile(action *workflow.Action) (*workflow.Result, error) {
	params := action.Parameters

	name, _ := stringParam(params, "name", "filename")
	if name == "" {
		if path, ok := stringParam(params, "path"); ok && path != "" {
			name = filepath.Base(path)
		}
	}
	if name == "" {
		return nil, fmt.Errorf("%w: file name (name, filename, or path)", ErrMissingParameter)
	}

	// Present-but-empty content is a legitimate empty file.
	content, ok := stringParam(params, "content", "code")
	if !ok {
		return nil, fmt.Errorf("%w: file content (content or code)", ErrMissingParameter)
	}

	path, _ := stringParam(params, "path")
	language, _ := stringParam(params, "language")

	f, err := e.files.CreateFile(name, path, content, language)
	if err != nil {
		return nil, fmt.Errorf("creating file %q: %w", name, err)
	}

	return workflow.NewResult(workflow.ActionCreateFile, action.Title, "Created "+f.Path, map[string]interface{}{
		"file_id":        f.ID,
		"path":           f.Path,
		"language":       f.Language,
		"content_length": len(f.Content),
	}), nil
}

func (e *Executor) modifyFile(action *workflow.Action) (*workflow.Result, error) {
	params := action.Parameters

	path, _ := stringParam(params, "path", "file", "filename", "name")
	if path == "" {
		return nil, fmt.Errorf("%w: file path", ErrMissingParameter)
	}
	content, ok := stringParam(params, "content", "code")
	if !ok {
		return nil, fmt.Errorf("%w: file content (content or code)", ErrMissingParameter)
	}

	f, err := e.files.ModifyFile(path, content)
	if err != nil {
		return nil, fmt.Errorf("modifying file %q: %w", path, err)
	}

	return workflow.NewResult(workflow.ActionModifyFile, action.Title, "Modified "+f.Path, map[string]interface{}{
		"file_id":        f.ID,
		"path":           f.Path,
		"content_length": len(f.Content),
		"operation":      "modify",
	}), nil
}

func (e *Executor) deleteFile(action *workflow.Action) (*workflow.Result, error) {
	path, _ := stringParam(action.Parameters, "path", "file", "filename", "name")
	if path == "" {
		return nil, fmt.Errorf("%w: file path", ErrMissingParameter)
	}

	if err := e.files.DeleteFile(path); err != nil {
		return nil, fmt.Errorf("deleting file %q: %w", path, err)
	}

	return workflow.NewResult(workflow.ActionDeleteFile, action.Title, "Deleted "+path, map[string]interface{}{
		"path":      path,
		"operation": "delete",
	}), nil
}

func (e *Executor) executeCommand(ctx context.Context, action *workflow.Action) (*workflow.Result, error) {
	command := commandParam(action)
	if command == "" {
		return nil, fmt.Errorf("%w: command", ErrMissingParameter)
	}
	return e.runCommand(ctx, workflow.ActionExecuteCommand, action.Title, command)
}

func (e *Executor) installPackage(ctx context.Context, action *workflow.Action) (*workflow.Result, error) {
	pkg := packageParam(action)
	if pkg == "" {
		return nil, fmt.Errorf("%w: package name", ErrMissingParameter)
	}
	if version, ok := stringParam(action.Parameters, "version"); ok && version != "" {
		pkg += "@" + version
	}

	command := "npm install " + pkg
	if boolParam(action.Parameters, "dev") {
		command = "npm install -D " + pkg
	}
	return e.runCommand(ctx, workflow.ActionInstallPackage, action.Title, command)
}

func (e *Executor) uninstallPackage(ctx context.Context, action *workflow.Action) (*workflow.Result, error) {
	pkg := packageParam(action)
	if pkg == "" {
		return nil, fmt.Errorf("%w: package name", ErrMissingParameter)
	}
	return e.runCommand(ctx, workflow.ActionUninstallPackage, action.Title, "npm uninstall "+pkg)
}

// runCommand executes through the terminal when one is configured and
// falls back to simulated output otherwise. Failed commands that still
// produced output become failed Results carrying that output.
func (e *Executor) runCommand(ctx context.Context, actionType workflow.ActionType, title, command string) (*workflow.Result, error) {
	if e.term == nil {
		output := simulatedOutput(command)
		e.log.Debug(ctx, "simulated command", zap.String("command", command))
		return workflow.NewResult(actionType, title, "Executed: "+command, map[string]interface{}{
			"command":   command,
			"output":    output,
			"simulated": true,
		}), nil
	}

	res, err := e.term.Run(ctx, command)
	if err != nil {
		if res == nil {
			return nil, err
		}
		failed := workflow.NewFailedResult(actionType, title, err)
		failed.Data = map[string]interface{}{
			"command":   command,
			"output":    res.Output,
			"exit_code": res.ExitCode,
		}
		return failed, nil
	}

	return workflow.NewResult(actionType, title, "Executed: "+command, map[string]interface{}{
		"command":   command,
		"output":    res.Output,
		"exit_code": res.ExitCode,
		"duration":  res.Duration.String(),
	}), nil
}

// searchWeb degrades provider failures into failed Results so a dead
// search backend cannot take the whole phase down.
func (e *Executor) searchWeb(ctx context.Context, action *workflow.Action) (*workflow.Result, error) {
	query := queryParam(action)
	if query == "" {
		return nil, fmt.Errorf("%w: search query", ErrMissingParameter)
	}

	if e.searcher == nil {
		return workflow.NewFailedResult(workflow.ActionSearchWeb, action.Title,
			fmt.Errorf("no search provider configured")), nil
	}

	results, err := e.searcher.Search(ctx, query)
	if err != nil {
		e.log.Warn(ctx, "search failed", zap.String("query", query), zap.Error(err))
		return workflow.NewFailedResult(workflow.ActionSearchWeb, action.Title, err), nil
	}

	return workflow.NewResult(workflow.ActionSearchWeb, action.Title,
		fmt.Sprintf("Found %d results for %q", len(results.Results), query),
		map[string]interface{}{
			"query":   query,
			"count":   len(results.Results),
			"results": results.Results,
		}), nil
}

// stringParam returns the first string-typed value among the alias
// keys. Presence and emptiness are reported separately so callers can
// accept empty values where they are meaningful.
func stringParam(params map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := params[k]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func boolParam(params map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

// commandParam resolves the shell command. Marker-extracted actions
// carry only the matched text, so a leading run/execute verb is
// stripped from it.
func commandParam(action *workflow.Action) string {
	if cmd, ok := stringParam(action.Parameters, "command", "cmd"); ok && cmd != "" {
		return cmd
	}
	text, _ := stringParam(action.Parameters, "text")
	if text == "" {
		text = action.Description
	}
	return stripLeadingVerb(text, "run", "execute")
}

// packageParam resolves the package name, falling back to the second
// word of marker-extracted text ("install express ..." yields
// "express").
func packageParam(action *workflow.Action) string {
	if pkg, ok := stringParam(action.Parameters, "package", "name"); ok && pkg != "" {
		return pkg
	}
	text, _ := stringParam(action.Parameters, "text")
	if text == "" {
		text = action.Description
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return strings.Trim(fields[1], ".,;:`\"'")
}

// queryParam resolves the search query, stripping the marker verb and
// a connecting "for" from extracted text.
func queryParam(action *workflow.Action) string {
	if q, ok := stringParam(action.Parameters, "query", "q"); ok && q != "" {
		return q
	}
	text, _ := stringParam(action.Parameters, "text")
	if text == "" {
		text = action.Description
	}
	q := stripLeadingVerb(text, "search", "find", "research")
	return strings.TrimSpace(strings.TrimPrefix(q, "for "))
}

// stripLeadingVerb removes the first word when it matches one of the
// verbs, case-insensitively.
func stripLeadingVerb(text string, verbs ...string) string {
	trimmed := strings.TrimSpace(text)
	first, rest, found := strings.Cut(trimmed, " ")
	if !found {
		return trimmed
	}
	word := strings.ToLower(strings.TrimRight(first, ":.,"))
	for _, v := range verbs {
		if word == v {
			return strings.TrimSpace(rest)
		}
	}
	return trimmed
}
