package workspace

import "errors"

var (
	// ErrFileNotFound indicates no workspace file matches the given id or path.
	ErrFileNotFound = errors.New("file not found")

	// ErrPathOutsideRoot indicates a path that would resolve outside the
	// workspace root.
	ErrPathOutsideRoot = errors.New("path outside workspace root")

	// ErrNoRoot indicates an operation that requires a disk root was called
	// on a memory-only store.
	ErrNoRoot = errors.New("workspace has no disk root")

	// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
	ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")
)
