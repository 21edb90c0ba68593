package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is an in-memory file table with an optional disk mirror.
//
// When constructed with a non-empty root, every create, modify, and delete
// is mirrored to the corresponding path beneath that root. Lookup accepts
// either a file id or a workspace-relative path. All returned File values
// are copies; mutations go through the store's methods.
type Store struct {
	mu       sync.RWMutex
	files    map[string]*File  // by id
	byPath   map[string]string // path -> id
	activeID string            // most recently written by the workflow
	root     string            // absolute disk root, empty for memory-only
}

// NewStore creates a store. root may be empty for a memory-only store; when
// set, the directory is created if missing and all mirrored paths must
// resolve beneath it.
func NewStore(root string) (*Store, error) {
	s := &Store{
		files:  make(map[string]*File),
		byPath: make(map[string]string),
	}

	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace root: %w", err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace root: %w", err)
		}
		s.root = abs
	}

	return s, nil
}

// Root returns the absolute disk root, or empty string for a memory-only
// store.
func (s *Store) Root() string {
	return s.root
}

// CreateFile records a new file and mirrors it to disk when a root is
// configured. An existing file at the same path is replaced (last write
// wins). path may be empty, in which case name is used. Returns a copy of
// the stored entity.
func (s *Store) CreateFile(name, path, content, language string) (*File, error) {
	if path == "" {
		path = name
	}
	rel, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(rel)
	}
	if language == "" {
		language = LanguageForPath(rel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeDiskLocked(rel, content); err != nil {
		return nil, err
	}

	f := NewFile(name, rel, content, language)
	if oldID, ok := s.byPath[rel]; ok {
		delete(s.files, oldID)
	}
	s.files[f.ID] = f
	s.byPath[rel] = f.ID
	s.activeID = f.ID

	copied := *f
	return &copied, nil
}

// ModifyFile replaces a file's content, addressed by id or path. A path with
// no existing entry is created fresh: the pipeline is driven by free-text
// model output, which routinely modifies files it never formally created.
// Last write wins, no diffing. Returns a copy of the stored entity.
func (s *Store) ModifyFile(idOrPath, content string) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.lookupLocked(idOrPath)
	if f == nil {
		rel, err := normalizePath(idOrPath)
		if err != nil {
			return nil, err
		}
		if err := s.writeDiskLocked(rel, content); err != nil {
			return nil, err
		}
		f = NewFile(filepath.Base(rel), rel, content, LanguageForPath(rel))
		s.files[f.ID] = f
		s.byPath[rel] = f.ID
		s.activeID = f.ID
		copied := *f
		return &copied, nil
	}

	if err := s.writeDiskLocked(f.Path, content); err != nil {
		return nil, err
	}
	f.Content = content
	f.UpdatedAt = time.Now()
	s.activeID = f.ID

	copied := *f
	return &copied, nil
}

// DeleteFile removes a file, addressed by id or path, and deletes the
// mirrored file on disk. A missing file is an error.
func (s *Store) DeleteFile(idOrPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.lookupLocked(idOrPath)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrFileNotFound, idOrPath)
	}

	if s.root != "" {
		full, err := s.diskPath(f.Path)
		if err != nil {
			return err
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", f.Path, err)
		}
	}

	delete(s.files, f.ID)
	delete(s.byPath, f.Path)
	if s.activeID == f.ID {
		s.activeID = ""
	}
	return nil
}

// Get returns a copy of the file addressed by id or path.
func (s *Store) Get(idOrPath string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := s.lookupLocked(idOrPath)
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrFileNotFound, idOrPath)
	}
	copied := *f
	return &copied, nil
}

// List returns copies of all files sorted by path.
func (s *Store) List() []*File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		copied := *f
		files = append(files, &copied)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// ActiveFile returns a copy of the file most recently written by the
// workflow, or nil when nothing has been written yet. Files synced from
// disk by the watcher never become active.
func (s *Store) ActiveFile() *File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[s.activeID]
	if !ok {
		return nil
	}
	copied := *f
	return &copied
}

// Len returns the number of tracked files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// syncFromDisk upserts a file observed on disk without mirroring it back.
// Used by the watcher; does not touch the active file.
func (s *Store) syncFromDisk(rel, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPath[rel]; ok {
		f := s.files[id]
		f.Content = content
		f.UpdatedAt = time.Now()
		return
	}

	f := NewFile(filepath.Base(rel), rel, content, LanguageForPath(rel))
	s.files[f.ID] = f
	s.byPath[rel] = f.ID
}

// evictPath drops a file from the store's view without touching disk.
// Used by the watcher when a file disappears from the root.
func (s *Store) evictPath(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPath[rel]
	if !ok {
		return
	}
	delete(s.files, id)
	delete(s.byPath, rel)
	if s.activeID == id {
		s.activeID = ""
	}
}

// lookupLocked resolves an id or path to the canonical entry. Caller holds
// at least a read lock.
func (s *Store) lookupLocked(idOrPath string) *File {
	if f, ok := s.files[idOrPath]; ok {
		return f
	}
	rel, err := normalizePath(idOrPath)
	if err != nil {
		return nil
	}
	if id, ok := s.byPath[rel]; ok {
		return s.files[id]
	}
	return nil
}

// writeDiskLocked mirrors content to the disk root, creating parent
// directories as needed. No-op for memory-only stores. Caller holds the
// write lock.
func (s *Store) writeDiskLocked(rel, content string) error {
	if s.root == "" {
		return nil
	}
	full, err := s.diskPath(rel)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(full); dir != s.root {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", rel, err)
		}
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// diskPath resolves a normalized relative path beneath the root, rejecting
// anything that escapes it.
func (s *Store) diskPath(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, rel)
	}
	return full, nil
}

// normalizePath cleans a workspace path into relative slash form. Leading
// separators are stripped (the model's view of "/" is the workspace root);
// paths that climb out of the root are rejected.
func normalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	trimmed := strings.TrimLeft(filepath.ToSlash(path), "/")
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(trimmed)))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, path)
	}
	return clean, nil
}
