package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("")
	require.NoError(t, err)
	return s
}

func TestStore_CreateFile(t *testing.T) {
	s := newMemoryStore(t)

	f, err := s.CreateFile("index.ts", "src/index.ts", "console.log('hi')", "")
	require.NoError(t, err)

	assert.NotEmpty(t, f.ID, "file should get a generated id")
	assert.Equal(t, "index.ts", f.Name)
	assert.Equal(t, "src/index.ts", f.Path)
	assert.Equal(t, "console.log('hi')", f.Content)
	assert.Equal(t, "typescript", f.Language, "language should be inferred from extension")
	assert.False(t, f.CreatedAt.IsZero())
	assert.Equal(t, 1, s.Len())
}

func TestStore_CreateFile_ExplicitLanguageWins(t *testing.T) {
	s := newMemoryStore(t)

	f, err := s.CreateFile("app.ts", "app.ts", "", "tsx")
	require.NoError(t, err)
	assert.Equal(t, "tsx", f.Language)
}

func TestStore_CreateFile_PathDefaultsToName(t *testing.T) {
	s := newMemoryStore(t)

	f, err := s.CreateFile("hello.txt", "", "Hello", "")
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", f.Path)
}

func TestStore_CreateFile_NameDefaultsToBasename(t *testing.T) {
	s := newMemoryStore(t)

	f, err := s.CreateFile("", "src/util/strings.go", "package util", "")
	require.NoError(t, err)
	assert.Equal(t, "strings.go", f.Name)
}

func TestStore_CreateFile_EmptyPath(t *testing.T) {
	s := newMemoryStore(t)

	_, err := s.CreateFile("", "", "content", "")
	assert.Error(t, err, "a file needs a name or a path")
}

func TestStore_CreateFile_ReplacesSamePath(t *testing.T) {
	s := newMemoryStore(t)

	first, err := s.CreateFile("a.txt", "a.txt", "one", "")
	require.NoError(t, err)
	second, err := s.CreateFile("a.txt", "a.txt", "two", "")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len(), "same path should replace, not accumulate")
	assert.NotEqual(t, first.ID, second.ID, "replacement gets a fresh id")

	_, err = s.Get(first.ID)
	assert.ErrorIs(t, err, ErrFileNotFound, "replaced entity should be gone")

	got, err := s.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Content, "last write wins")
}

func TestStore_Get(t *testing.T) {
	s := newMemoryStore(t)
	f, err := s.CreateFile("a.go", "pkg/a.go", "package pkg", "")
	require.NoError(t, err)

	byID, err := s.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Path, byID.Path)

	byPath, err := s.Get("pkg/a.go")
	require.NoError(t, err)
	assert.Equal(t, f.ID, byPath.ID)

	_, err = s.Get("missing.go")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStore_Get_ReturnsCopy(t *testing.T) {
	s := newMemoryStore(t)
	_, err := s.CreateFile("a.txt", "a.txt", "original", "")
	require.NoError(t, err)

	got, err := s.Get("a.txt")
	require.NoError(t, err)
	got.Content = "mutated by caller"

	again, err := s.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Content, "callers must not reach the canonical entry")
}

func TestStore_ModifyFile_ByID(t *testing.T) {
	s := newMemoryStore(t)
	f, err := s.CreateFile("a.txt", "a.txt", "v1", "")
	require.NoError(t, err)

	modified, err := s.ModifyFile(f.ID, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", modified.Content)
	assert.Equal(t, f.ID, modified.ID, "modify keeps the identity")

	got, err := s.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
}

func TestStore_ModifyFile_ByPath(t *testing.T) {
	s := newMemoryStore(t)
	_, err := s.CreateFile("a.txt", "docs/a.txt", "v1", "")
	require.NoError(t, err)

	_, err = s.ModifyFile("docs/a.txt", "v2")
	require.NoError(t, err)

	got, err := s.Get("docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
}

func TestStore_ModifyFile_UpsertsUnknownPath(t *testing.T) {
	s := newMemoryStore(t)

	f, err := s.ModifyFile("src/new.ts", "created by modify")
	require.NoError(t, err)

	assert.Equal(t, "src/new.ts", f.Path)
	assert.Equal(t, "new.ts", f.Name)
	assert.Equal(t, "typescript", f.Language)
	assert.Equal(t, 1, s.Len())
}

func TestStore_DeleteFile(t *testing.T) {
	s := newMemoryStore(t)
	f, err := s.CreateFile("a.txt", "a.txt", "x", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile(f.ID))
	assert.Equal(t, 0, s.Len())

	_, err = s.Get("a.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStore_DeleteFile_Missing(t *testing.T) {
	s := newMemoryStore(t)
	err := s.DeleteFile("ghost.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStore_List_SortedByPath(t *testing.T) {
	s := newMemoryStore(t)
	for _, path := range []string{"src/z.ts", "README.md", "src/a.ts"} {
		_, err := s.CreateFile("", path, "", "")
		require.NoError(t, err)
	}

	files := s.List()
	require.Len(t, files, 3)
	assert.Equal(t, "README.md", files[0].Path)
	assert.Equal(t, "src/a.ts", files[1].Path)
	assert.Equal(t, "src/z.ts", files[2].Path)
}

func TestStore_ActiveFile(t *testing.T) {
	s := newMemoryStore(t)
	assert.Nil(t, s.ActiveFile(), "empty store has no active file")

	_, err := s.CreateFile("a.txt", "a.txt", "a", "")
	require.NoError(t, err)
	_, err = s.CreateFile("b.txt", "b.txt", "b", "")
	require.NoError(t, err)

	active := s.ActiveFile()
	require.NotNil(t, active)
	assert.Equal(t, "b.txt", active.Path, "most recent create is active")

	_, err = s.ModifyFile("a.txt", "a2")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", s.ActiveFile().Path, "modify moves the active file")

	require.NoError(t, s.DeleteFile("a.txt"))
	assert.Nil(t, s.ActiveFile(), "deleting the active file clears it")
}

func TestStore_SyncFromDisk_NeverActive(t *testing.T) {
	s := newMemoryStore(t)

	s.syncFromDisk("watched.ts", "external content")

	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.ActiveFile(), "disk churn must not steal the active file")

	got, err := s.Get("watched.ts")
	require.NoError(t, err)
	assert.Equal(t, "external content", got.Content)
}

func TestStore_PathTraversal(t *testing.T) {
	s := newMemoryStore(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
		want    string
	}{
		{name: "plain relative", path: "src/a.ts", want: "src/a.ts"},
		{name: "dot prefixed", path: "./src/a.ts", want: "src/a.ts"},
		{name: "absolute is workspace rooted", path: "/etc/config.yaml", want: "etc/config.yaml"},
		{name: "internal dotdot that stays inside", path: "src/../lib/a.ts", want: "lib/a.ts"},
		{name: "parent escape", path: "../secrets.txt", wantErr: true},
		{name: "nested escape", path: "src/../../outside.txt", wantErr: true},
		{name: "bare dotdot", path: "..", wantErr: true},
		{name: "root only", path: "/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := s.CreateFile("", tt.path, "x", "")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPathOutsideRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Path)
		})
	}
}

func TestStore_DiskMirror(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root)
	require.NoError(t, err)

	t.Run("create writes through", func(t *testing.T) {
		_, err := s.CreateFile("hello.txt", "hello.txt", "Hello", "")
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
		require.NoError(t, err)
		assert.Equal(t, "Hello", string(data))
	})

	t.Run("nested path creates directories", func(t *testing.T) {
		_, err := s.CreateFile("", "deep/nested/file.go", "package nested", "")
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(root, "deep", "nested", "file.go"))
		require.NoError(t, err)
		assert.Equal(t, "package nested", string(data))
	})

	t.Run("modify rewrites", func(t *testing.T) {
		_, err := s.ModifyFile("hello.txt", "Hello again")
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
		require.NoError(t, err)
		assert.Equal(t, "Hello again", string(data))
	})

	t.Run("delete removes", func(t *testing.T) {
		require.NoError(t, s.DeleteFile("hello.txt"))

		_, err := os.Stat(filepath.Join(root, "hello.txt"))
		assert.True(t, os.IsNotExist(err), "mirrored file should be gone")
	})

	t.Run("escape rejected", func(t *testing.T) {
		_, err := s.CreateFile("", "../escape.txt", "nope", "")
		assert.ErrorIs(t, err, ErrPathOutsideRoot)
	})
}

func TestNewStore_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "workspace")

	s, err := NewStore(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, root, s.Root())
}
