package workspace

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is a workspace file tracked by the store. Path is always
// workspace-relative in slash form; Content holds the full text.
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFile creates a file entity with a generated id and current timestamps.
func NewFile(name, path, content, language string) *File {
	now := time.Now()
	return &File{
		ID:        uuid.New().String(),
		Name:      name,
		Path:      path,
		Content:   content,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// knownLanguages maps file extensions to the language tag recorded on File
// entities when the caller does not supply one.
var knownLanguages = map[string]string{
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".md":   "markdown",
	".sh":   "shell",
	".sql":  "sql",
	".html": "html",
	".css":  "css",
}

// LanguageForPath returns the language tag for a file path based on its
// extension, or empty string when the extension is unknown.
func LanguageForPath(path string) string {
	return knownLanguages[strings.ToLower(filepath.Ext(path))]
}
