package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/opencourse/media-api/internal/models"
	appErrors "github.com/opencourse/media-api/pkg/errors"
)

// FileCache keeps hot file metadata in Redis so streaming requests avoid a
// database round trip per chunk. Failures are logged and treated as misses.
type FileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewFileCache constructs the cache. A nil client disables it.
func NewFileCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *FileCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a backing client is configured.
func (c *FileCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached record for the id, or ErrCacheMiss.
func (c *FileCache) Get(ctx context.Context, id string) (*models.File, error) {
	if !c.Enabled() {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get file %s: %w", id, err)
	}
	var file models.File
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("unmarshal cached file %s: %w", id, err)
	}
	return &file, nil
}

// Set stores the record with the configured TTL. Errors are logged, not
// returned; a cold cache is never a request failure.
func (c *FileCache) Set(ctx context.Context, file *models.File) {
	if !c.Enabled() || file == nil {
		return
	}
	payload, err := json.Marshal(file)
	if err != nil {
		c.logger.Warn("marshal file for cache failed", zap.String("file_id", file.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(file.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache file metadata failed", zap.String("file_id", file.ID), zap.Error(err))
	}
}

// Invalidate drops the cached record after a mutation or deletion.
func (c *FileCache) Invalidate(ctx context.Context, id string) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logger.Warn("invalidate cached file failed", zap.String("file_id", id), zap.Error(err))
	}
}

func cacheKey(id string) string {
	return "media:file:" + id
}
