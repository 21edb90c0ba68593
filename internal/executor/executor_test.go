package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/triad/internal/logging"
	"github.com/fyrsmithlabs/triad/internal/search"
	"github.com/fyrsmithlabs/triad/internal/terminal"
	"github.com/fyrsmithlabs/triad/internal/workflow"
	"github.com/fyrsmithlabs/triad/internal/workspace"
)

type fakeTerminal struct {
	lastCommand string
	result      *terminal.Result
	err         error
}

func (f *fakeTerminal) Run(_ context.Context, command string) (*terminal.Result, error) {
	f.lastCommand = command
	return f.result, f.err
}

type fakeSearch struct {
	lastQuery string
	results   *search.Results
	err       error
}

func (f *fakeSearch) Search(_ context.Context, query string) (*search.Results, error) {
	f.lastQuery = query
	return f.results, f.err
}

func newTestExecutor(t *testing.T, term Terminal, searcher SearchProvider) (*Executor, *workspace.Store) {
	t.Helper()
	store, err := workspace.NewStore("")
	require.NoError(t, err)
	return NewExecutor(store, term, searcher, logging.NewTestLogger().Logger), store
}

func TestExecute_CreateFile(t *testing.T) {
	e, store := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionCreateFile, "Create server.js", "", map[string]interface{}{
		"name":     "server.js",
		"content":  "const http = require('http')\n",
		"language": "javascript",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, workflow.ActionCreateFile, res.Type)
	assert.Equal(t, "Created server.js", res.Description)
	assert.Equal(t, "server.js", res.Data["path"])
	assert.Equal(t, 30, res.Data["content_length"])

	f, err := store.Get("server.js")
	require.NoError(t, err)
	assert.Equal(t, "const http = require('http')\n", f.Content)
}

func TestExecute_CreateFile_NameFromPath(t *testing.T) {
	e, store := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionCreateFile, "Create app", "", map[string]interface{}{
		"path":    "src/app.ts",
		"content": "export {}\n",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, "src/app.ts", res.Data["path"])

	f, err := store.Get("src/app.ts")
	require.NoError(t, err)
	assert.Equal(t, "app.ts", f.Name)
}

func TestExecute_CreateFile_MissingParameters(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	t.Run("no name", func(t *testing.T) {
		action := workflow.NewAction(workflow.ActionCreateFile, "Create", "", map[string]interface{}{
			"content": "x",
		})
		_, err := e.Execute(context.Background(), action)
		require.ErrorIs(t, err, ErrMissingParameter)
		assert.Contains(t, err.Error(), "file name")
	})

	t.Run("no content", func(t *testing.T) {
		action := workflow.NewAction(workflow.ActionCreateFile, "Create", "", map[string]interface{}{
			"name": "a.txt",
		})
		_, err := e.Execute(context.Background(), action)
		require.ErrorIs(t, err, ErrMissingParameter)
		assert.Contains(t, err.Error(), "file content")
	})
}

func TestExecute_CreateFile_EmptyContentAllowed(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionCreateFile, "Create placeholder", "", map[string]interface{}{
		"name":    ".gitkeep",
		"content": "",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Data["content_length"])
}

func TestExecute_ModifyFile(t *testing.T) {
	e, store := newTestExecutor(t, nil, nil)
	_, err := store.CreateFile("index.js", "", "old\n", "")
	require.NoError(t, err)

	action := workflow.NewAction(workflow.ActionModifyFile, "Update index.js", "", map[string]interface{}{
		"path":    "index.js",
		"content": "new\n",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "modify", res.Data["operation"])

	f, err := store.Get("index.js")
	require.NoError(t, err)
	assert.Equal(t, "new\n", f.Content)
}

func TestExecute_ModifyFile_MissingPath(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionModifyFile, "Update", "", map[string]interface{}{
		"content": "x",
	})
	_, err := e.Execute(context.Background(), action)
	require.ErrorIs(t, err, ErrMissingParameter)
}

func TestExecute_DeleteFile(t *testing.T) {
	e, store := newTestExecutor(t, nil, nil)
	_, err := store.CreateFile("stale.txt", "", "x", "")
	require.NoError(t, err)

	action := workflow.NewAction(workflow.ActionDeleteFile, "Remove stale.txt", "", map[string]interface{}{
		"path": "stale.txt",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "delete", res.Data["operation"])

	_, err = store.Get("stale.txt")
	require.ErrorIs(t, err, workspace.ErrFileNotFound)
}

func TestExecute_DeleteFile_Unknown(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionDeleteFile, "Remove ghost", "", map[string]interface{}{
		"path": "ghost.txt",
	})
	_, err := e.Execute(context.Background(), action)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting file")
}

func TestExecute_Command_Simulated(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionExecuteCommand, "Install deps", "", map[string]interface{}{
		"command": "npm install",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, true, res.Data["simulated"])
	assert.Contains(t, res.Data["output"], "added")
}

func TestExecute_Command_Delegates(t *testing.T) {
	term := &fakeTerminal{result: &terminal.Result{
		Output:   "v20.11.0\n",
		ExitCode: 0,
		Duration: 12 * time.Millisecond,
	}}
	e, _ := newTestExecutor(t, term, nil)

	action := workflow.NewAction(workflow.ActionExecuteCommand, "Check node", "", map[string]interface{}{
		"command": "node --version",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, "node --version", term.lastCommand)
	assert.True(t, res.Success)
	assert.Equal(t, "v20.11.0\n", res.Data["output"])
	assert.Equal(t, 0, res.Data["exit_code"])
	assert.NotContains(t, res.Data, "simulated")
}

func TestExecute_Command_FromMarkerText(t *testing.T) {
	term := &fakeTerminal{result: &terminal.Result{Output: "ok\n"}}
	e, _ := newTestExecutor(t, term, nil)

	action := workflow.NewAction(workflow.ActionExecuteCommand, "Run tests", "run npm test", map[string]interface{}{
		"text": "run npm test",
	})

	_, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, "npm test", term.lastCommand)
}

func TestExecute_Command_FailureKeepsOutput(t *testing.T) {
	term := &fakeTerminal{
		result: &terminal.Result{Output: "Error: missing module\n", ExitCode: 1},
		err:    terminal.ErrNonZeroExit,
	}
	e, _ := newTestExecutor(t, term, nil)

	action := workflow.NewAction(workflow.ActionExecuteCommand, "Run broken", "", map[string]interface{}{
		"command": "node broken.js",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, terminal.ErrNonZeroExit.Error(), res.Description)
	assert.Equal(t, "Error: missing module\n", res.Data["output"])
	assert.Equal(t, 1, res.Data["exit_code"])
}

func TestExecute_Command_EmptyCommandBeforeStart(t *testing.T) {
	term := &fakeTerminal{err: terminal.ErrEmptyCommand}
	e, _ := newTestExecutor(t, term, nil)

	action := workflow.NewAction(workflow.ActionExecuteCommand, "Run nothing", "", map[string]interface{}{
		"command": "true",
	})

	_, err := e.Execute(context.Background(), action)
	require.ErrorIs(t, err, terminal.ErrEmptyCommand)
}

func TestExecute_InstallPackage(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]interface{}
		command string
	}{
		{
			name:    "plain",
			params:  map[string]interface{}{"package": "express"},
			command: "npm install express",
		},
		{
			name:    "dev dependency",
			params:  map[string]interface{}{"package": "typescript", "dev": true},
			command: "npm install -D typescript",
		},
		{
			name:    "version pinned",
			params:  map[string]interface{}{"package": "express", "version": "4.18.2"},
			command: "npm install express@4.18.2",
		},
		{
			name:    "from marker text",
			params:  map[string]interface{}{"text": "install express for routing"},
			command: "npm install express",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := &fakeTerminal{result: &terminal.Result{Output: "ok\n"}}
			e, _ := newTestExecutor(t, term, nil)

			action := workflow.NewAction(workflow.ActionInstallPackage, "Install", "", tt.params)
			res, err := e.Execute(context.Background(), action)
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.command, term.lastCommand)
		})
	}
}

func TestExecute_InstallPackage_MissingName(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionInstallPackage, "Install", "", nil)
	_, err := e.Execute(context.Background(), action)
	require.ErrorIs(t, err, ErrMissingParameter)
}

func TestExecute_UninstallPackage(t *testing.T) {
	term := &fakeTerminal{result: &terminal.Result{Output: "removed 1 package\n"}}
	e, _ := newTestExecutor(t, term, nil)

	action := workflow.NewAction(workflow.ActionUninstallPackage, "Remove lodash", "", map[string]interface{}{
		"package": "lodash",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "npm uninstall lodash", term.lastCommand)
}

func TestExecute_SearchWeb(t *testing.T) {
	searcher := &fakeSearch{results: &search.Results{
		Query: "react hooks",
		Results: []search.Result{
			{Title: "Hooks at a Glance", URL: "https://react.dev/hooks"},
			{Title: "Rules of Hooks", URL: "https://react.dev/rules"},
		},
	}}
	e, _ := newTestExecutor(t, nil, searcher)

	action := workflow.NewAction(workflow.ActionSearchWeb, "Research hooks", "", map[string]interface{}{
		"query": "react hooks",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "react hooks", searcher.lastQuery)
	assert.Equal(t, 2, res.Data["count"])
	assert.Equal(t, `Found 2 results for "react hooks"`, res.Description)
}

func TestExecute_SearchWeb_QueryFromMarkerText(t *testing.T) {
	searcher := &fakeSearch{results: &search.Results{}}
	e, _ := newTestExecutor(t, nil, searcher)

	action := workflow.NewAction(workflow.ActionSearchWeb, "Search", "search for react hooks", map[string]interface{}{
		"text": "search for react hooks",
	})

	_, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, "react hooks", searcher.lastQuery)
}

func TestExecute_SearchWeb_ProviderFailureBecomesFailedResult(t *testing.T) {
	searcher := &fakeSearch{err: errors.New("search API error (500)")}
	e, _ := newTestExecutor(t, nil, searcher)

	action := workflow.NewAction(workflow.ActionSearchWeb, "Search", "", map[string]interface{}{
		"query": "anything",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "search API error (500)", res.Description)
}

func TestExecute_SearchWeb_NoProvider(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionSearchWeb, "Search", "", map[string]interface{}{
		"query": "anything",
	})

	res, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Description, "no search provider configured")
}

func TestExecute_UnknownActionType(t *testing.T) {
	e, _ := newTestExecutor(t, nil, nil)

	action := workflow.NewAction(workflow.ActionType("teleport"), "Teleport", "", nil)
	_, err := e.Execute(context.Background(), action)
	require.ErrorIs(t, err, ErrUnknownActionType)
	assert.Contains(t, err.Error(), "teleport")
}

func TestStripLeadingVerb(t *testing.T) {
	assert.Equal(t, "npm test", stripLeadingVerb("run npm test", "run", "execute"))
	assert.Equal(t, "npm test", stripLeadingVerb("Run npm test", "run"))
	assert.Equal(t, "build the project", stripLeadingVerb("build the project", "run"))
	assert.Equal(t, "single", stripLeadingVerb("single", "run"))
}
