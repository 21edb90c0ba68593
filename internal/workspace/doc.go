// Package workspace tracks the files a workflow operates on.
//
// The Store is the file-system sink consumed by the action executor: an
// in-memory file table with an optional disk root that mirrors every
// create, modify, and delete beneath it. Paths are workspace-relative and
// guarded against traversal outside the root.
//
// A Watcher keeps the store's view fresh when something other than the
// workflow writes to the disk root, and the ContextBuilder assembles the
// per-phase context block (file listing, active file, terminal history,
// dependencies, git summary) consumed by the task runner. The block is
// scrubbed for secrets before it leaves this package.
package workspace
