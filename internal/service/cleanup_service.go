package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/opencourse/media-api/internal/models"
	"github.com/opencourse/media-api/pkg/storage"
)

type cleanupStore interface {
	ListOrphaned(ctx context.Context, cutoff time.Time) ([]models.File, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.File, error)
	Delete(ctx context.Context, id string) error
}

// SweepSummary reports how many items each pass reclaimed.
type SweepSummary struct {
	Orphaned  int `json:"orphaned"`
	Expired   int `json:"expired"`
	TempFiles int `json:"temp_files"`
}

// CleanupSettings tunes the reclamation passes.
type CleanupSettings struct {
	OrphanGrace time.Duration
	TempMaxAge  time.Duration
}

// CleanupService reclaims storage in three passes: orphaned files past
// their grace period, expired files, and stale temp artifacts. Each item
// failure is logged and skipped so one bad entry never aborts a sweep.
type CleanupService struct {
	repo    cleanupStore
	layout  *storage.Layout
	cache   fileMetadataCache
	metrics *MetricsService
	logger  *zap.Logger
	cfg     CleanupSettings
}

// NewCleanupService constructs the service.
func NewCleanupService(repo cleanupStore, layout *storage.Layout, cache fileMetadataCache, metrics *MetricsService, logger *zap.Logger, cfg CleanupSettings) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OrphanGrace <= 0 {
		cfg.OrphanGrace = 24 * time.Hour
	}
	if cfg.TempMaxAge <= 0 {
		cfg.TempMaxAge = time.Hour
	}
	return &CleanupService{
		repo:    repo,
		layout:  layout,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Sweep runs all three passes and returns the combined summary. Pass
// failures are logged; a failed pass contributes zero to the summary.
func (s *CleanupService) Sweep(ctx context.Context) SweepSummary {
	started := time.Now()
	summary := SweepSummary{}

	orphaned, err := s.SweepOrphaned(ctx)
	if err != nil {
		s.logger.Error("orphan sweep failed", zap.Error(err))
	}
	summary.Orphaned = orphaned

	expired, err := s.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
	}
	summary.Expired = expired

	tempFiles, err := s.SweepTempFiles(ctx)
	if err != nil {
		s.logger.Error("temp sweep failed", zap.Error(err))
	}
	summary.TempFiles = tempFiles

	if s.metrics != nil {
		s.metrics.RecordSweep(summary.Orphaned, summary.Expired, summary.TempFiles)
	}
	s.logger.Info("cleanup sweep complete",
		zap.Int("orphaned", summary.Orphaned),
		zap.Int("expired", summary.Expired),
		zap.Int("temp_files", summary.TempFiles),
		zap.Duration("elapsed", time.Since(started)))
	return summary
}

// SweepOrphaned removes files with no owning entity whose grace period has
// elapsed. The grace period protects uploads whose association is still
// being written by another service.
func (s *CleanupService) SweepOrphaned(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.OrphanGrace)
	files, err := s.repo.ListOrphaned(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return s.reclaim(ctx, files, "orphaned"), nil
}

// SweepExpired removes files whose expiry timestamp has passed.
func (s *CleanupService) SweepExpired(ctx context.Context) (int, error) {
	files, err := s.repo.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return s.reclaim(ctx, files, "expired"), nil
}

// SweepTempFiles removes temp directory entries older than the configured
// age. Anything still in temp past that age is an abandoned upload.
func (s *CleanupService) SweepTempFiles(ctx context.Context) (int, error) {
	dir := s.layout.TempDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.cfg.TempMaxAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to stat temp entry", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove temp entry", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// reclaim deletes disk object then metadata for each file. A disk object
// that is already gone does not block metadata removal.
func (s *CleanupService) reclaim(ctx context.Context, files []models.File, reason string) int {
	removed := 0
	for i := range files {
		file := &files[i]
		if ctx.Err() != nil {
			return removed
		}
		if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove disk object",
				zap.String("file_id", file.ID),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}
		if err := s.repo.Delete(ctx, file.ID); err != nil {
			s.logger.Warn("failed to remove file metadata",
				zap.String("file_id", file.ID),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}
		if s.cache != nil {
			s.cache.Invalidate(ctx, file.ID)
		}
		removed++
	}
	return removed
}
