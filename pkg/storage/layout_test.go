package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLayoutCreatesDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	layout, err := NewLayout(root, "/uploads")
	require.NoError(t, err)

	for _, dir := range []string{"videos", "documents", "images", "other", TempDirName} {
		info, err := os.Stat(filepath.Join(layout.Root(), dir))
		require.NoError(t, err, dir)
		require.True(t, info.IsDir(), dir)
	}

	// Second call against existing directories must not fail.
	_, err = NewLayout(root, "/uploads")
	require.NoError(t, err)
}

func TestLayoutPathURLKey(t *testing.T) {
	layout, err := NewLayout(t.TempDir(), "/uploads/")
	require.NoError(t, err)

	path := layout.Path("VIDEO", "abc.mp4")
	require.Equal(t, filepath.Join(layout.Root(), "videos", "abc.mp4"), path)
	require.Equal(t, "/uploads/videos/abc.mp4", layout.URL("VIDEO", "abc.mp4"))
	require.Equal(t, "videos/abc.mp4", layout.Key("VIDEO", "abc.mp4"))
}

func TestLayoutUnknownCategoryFallsBack(t *testing.T) {
	layout, err := NewLayout(t.TempDir(), "/uploads")
	require.NoError(t, err)

	require.Equal(t, filepath.Join(layout.Root(), "other"), layout.Dir("AUDIO"))
}

func TestGenerateFilename(t *testing.T) {
	name := GenerateFilename("My Lecture (FINAL).MP4")
	require.True(t, strings.HasSuffix(name, ".mp4"))
	require.NotContains(t, name, " ")
	require.NotContains(t, name, "(")

	other := GenerateFilename("My Lecture (FINAL).MP4")
	require.NotEqual(t, name, other)

	require.NotEmpty(t, GenerateFilename("no-extension"))
}
