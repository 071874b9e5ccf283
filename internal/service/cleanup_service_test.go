package service

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencourse/media-api/internal/models"
	"github.com/opencourse/media-api/pkg/storage"
)

type cleanupRepoStub struct {
	orphaned []models.File
	expired  []models.File
	deleted  []string
}

func (r *cleanupRepoStub) ListOrphaned(ctx context.Context, cutoff time.Time) ([]models.File, error) {
	return r.orphaned, nil
}

func (r *cleanupRepoStub) ListExpired(ctx context.Context, now time.Time) ([]models.File, error) {
	return r.expired, nil
}

func (r *cleanupRepoStub) Delete(ctx context.Context, id string) error {
	for _, existing := range r.deleted {
		if existing == id {
			return sql.ErrNoRows
		}
	}
	r.deleted = append(r.deleted, id)
	return nil
}

func newCleanupFixture(t *testing.T) (*CleanupService, *cleanupRepoStub, *storage.Layout) {
	t.Helper()
	layout, err := storage.NewLayout(t.TempDir(), "http://localhost:8080/static")
	require.NoError(t, err)
	repo := &cleanupRepoStub{}
	svc := NewCleanupService(repo, layout, nil, nil, nil, CleanupSettings{
		OrphanGrace: 24 * time.Hour,
		TempMaxAge:  time.Hour,
	})
	return svc, repo, layout
}

func placeFile(t *testing.T, layout *storage.Layout, id string, category models.MediaCategory) models.File {
	t.Helper()
	name := id + ".bin"
	path := layout.Path(string(category), name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	return models.File{ID: id, Path: path, Category: category}
}

func TestCleanupSweepOrphaned(t *testing.T) {
	svc, repo, layout := newCleanupFixture(t)
	file := placeFile(t, layout, "orphan-1", models.CategoryVideo)
	repo.orphaned = []models.File{file}

	removed, err := svc.SweepOrphaned(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, []string{"orphan-1"}, repo.deleted)
	_, statErr := os.Stat(file.Path)
	require.True(t, os.IsNotExist(statErr))
}

func TestCleanupSweepExpired(t *testing.T) {
	svc, repo, layout := newCleanupFixture(t)
	repo.expired = []models.File{
		placeFile(t, layout, "exp-1", models.CategoryDocument),
		placeFile(t, layout, "exp-2", models.CategoryImage),
	}

	removed, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	require.Len(t, repo.deleted, 2)
}

func TestCleanupToleratesMissingDiskObject(t *testing.T) {
	svc, repo, layout := newCleanupFixture(t)
	file := placeFile(t, layout, "gone-1", models.CategoryVideo)
	require.NoError(t, os.Remove(file.Path))
	repo.expired = []models.File{file}

	removed, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, []string{"gone-1"}, repo.deleted)
}

func TestCleanupSweepTempFiles(t *testing.T) {
	svc, _, layout := newCleanupFixture(t)

	stale := layout.TempPath("stale.part")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := layout.TempPath("fresh.part")
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))

	removed, err := svc.SweepTempFiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, statErr := os.Stat(stale)
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(fresh)
	require.NoError(t, statErr)
}

func TestCleanupSweepSummary(t *testing.T) {
	svc, repo, layout := newCleanupFixture(t)
	repo.orphaned = []models.File{placeFile(t, layout, "orphan-1", models.CategoryVideo)}
	repo.expired = []models.File{placeFile(t, layout, "exp-1", models.CategoryDocument)}

	stale := layout.TempPath("stale.part")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	summary := svc.Sweep(context.Background())
	require.Equal(t, 1, summary.Orphaned)
	require.Equal(t, 1, summary.Expired)
	require.Equal(t, 1, summary.TempFiles)
}
