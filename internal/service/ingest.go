package service

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencourse/media-api/internal/models"
	"github.com/opencourse/media-api/pkg/config"
	appErrors "github.com/opencourse/media-api/pkg/errors"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".webm": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".m4v": {},
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".bmp": {},
}

var documentExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".ppt": {}, ".pptx": {},
	".xls": {}, ".xlsx": {}, ".txt": {}, ".md": {}, ".csv": {},
}

var documentMimePrefixes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-",
	"text/",
}

// Extensions never accepted regardless of category.
var blockedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".sh": {}, ".msi": {}, ".dll": {},
}

// Categorize classifies an upload by declared MIME type and filename
// extension. It is a pure function; unrecognized combinations fall back to
// OTHER so delivery still works when metadata is imprecise.
func Categorize(mimeType, filename string) models.MediaCategory {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mime, "video/"):
		return models.CategoryVideo
	case strings.HasPrefix(mime, "image/"):
		return models.CategoryImage
	}
	for _, prefix := range documentMimePrefixes {
		if strings.HasPrefix(mime, prefix) {
			return models.CategoryDocument
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := videoExtensions[ext]; ok {
		return models.CategoryVideo
	}
	if _, ok := imageExtensions[ext]; ok {
		return models.CategoryImage
	}
	if _, ok := documentExtensions[ext]; ok {
		return models.CategoryDocument
	}
	return models.CategoryOther
}

// IngestValidator enforces per-category extension allow-lists and size
// limits before any bytes reach permanent storage.
type IngestValidator struct {
	limits map[models.MediaCategory]int64
}

// NewIngestValidator builds the validator from storage configuration.
func NewIngestValidator(cfg config.StorageConfig) *IngestValidator {
	return &IngestValidator{
		limits: map[models.MediaCategory]int64{
			models.CategoryVideo:    cfg.MaxVideoSize,
			models.CategoryDocument: cfg.MaxDocumentSize,
			models.CategoryImage:    cfg.MaxImageSize,
			models.CategoryOther:    cfg.MaxOtherSize,
		},
	}
}

// Validate checks an upload against the rules of its category. The returned
// error, when non-nil, is always a validation error with an actionable
// message.
func (v *IngestValidator) Validate(filename, mimeType string, size int64, category models.MediaCategory) error {
	if size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, blocked := blockedExtensions[ext]; blocked {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("extension %s is not allowed", ext))
	}

	switch category {
	case models.CategoryVideo:
		if _, ok := videoExtensions[ext]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("extension %s is not a supported video format", ext))
		}
	case models.CategoryImage:
		if _, ok := imageExtensions[ext]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("extension %s is not a supported image format", ext))
		}
	case models.CategoryDocument:
		if _, ok := documentExtensions[ext]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("extension %s is not a supported document format", ext))
		}
	}

	limit := v.limits[category]
	if limit > 0 && size > limit {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge,
			fmt.Sprintf("file size %d exceeds the %d byte limit for %s uploads", size, limit, category))
	}
	return nil
}

// ParseExpiry turns the optional expiresIn duration hint into an absolute
// instant. A malformed or non-positive hint is a validation failure distinct
// from content validation.
func ParseExpiry(raw string, now time.Time) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid expiresIn duration %q", raw))
	}
	if d <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiresIn must be positive")
	}
	expiresAt := now.Add(d)
	return &expiresAt, nil
}
