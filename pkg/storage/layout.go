package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// TempDirName is the subdirectory holding in-flight upload artifacts.
const TempDirName = "temp"

// categoryDirs maps a media category value onto its storage subdirectory.
// The keys are plain strings so the package stays independent of the
// domain model.
var categoryDirs = map[string]string{
	"VIDEO":    "videos",
	"DOCUMENT": "documents",
	"IMAGE":    "images",
	"OTHER":    "other",
}

// Layout owns the on-disk directory taxonomy and deterministic
// path/URL/key construction for stored media.
type Layout struct {
	root    string
	baseURL string
}

// NewLayout resolves the upload root, ensures every category directory and
// the temp directory exist, and returns the layout. Directory creation is
// idempotent; any filesystem failure other than "already exists" is returned.
func NewLayout(root, baseURL string) (*Layout, error) {
	if root == "" {
		root = "./uploads"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	l := &Layout{
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	dirs := make([]string, 0, len(categoryDirs)+1)
	for _, dir := range categoryDirs {
		dirs = append(dirs, filepath.Join(abs, dir))
	}
	dirs = append(dirs, filepath.Join(abs, TempDirName))
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}
	return l, nil
}

// Root returns the absolute upload root.
func (l *Layout) Root() string {
	return l.root
}

// Dir returns the absolute directory for a category value. Unknown
// categories fall back to the OTHER directory so delivery keeps working.
func (l *Layout) Dir(category string) string {
	return filepath.Join(l.root, categoryDir(category))
}

// TempDir returns the directory holding in-flight uploads.
func (l *Layout) TempDir() string {
	return filepath.Join(l.root, TempDirName)
}

// TempPath builds a path inside the temp directory for an upload artifact.
func (l *Layout) TempPath(name string) string {
	return filepath.Join(l.TempDir(), name)
}

// Path builds the absolute on-disk location for a stored filename.
func (l *Layout) Path(category, filename string) string {
	return filepath.Join(l.Dir(category), filename)
}

// URL builds the public-relative reference for a stored filename.
func (l *Layout) URL(category, filename string) string {
	return l.baseURL + "/" + categoryDir(category) + "/" + filename
}

// Key builds the category-relative reference for a stored filename.
func (l *Layout) Key(category, filename string) string {
	return categoryDir(category) + "/" + filename
}

// GenerateFilename produces a collision-resistant storage name carrying the
// original extension lower-cased. The original filename never participates
// in path construction.
func GenerateFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return uuid.NewString() + ext
}

func categoryDir(category string) string {
	if dir, ok := categoryDirs[category]; ok {
		return dir
	}
	return categoryDirs["OTHER"]
}
