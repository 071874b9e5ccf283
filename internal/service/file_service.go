package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	validatorpkg "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opencourse/media-api/internal/dto"
	"github.com/opencourse/media-api/internal/models"
	appErrors "github.com/opencourse/media-api/pkg/errors"
	"github.com/opencourse/media-api/pkg/export"
	"github.com/opencourse/media-api/pkg/jobs"
	"github.com/opencourse/media-api/pkg/storage"
)

type fileStore interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error)
	UpdateVisibility(ctx context.Context, id string, visibility models.Visibility, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type fileTokenSigner interface {
	Issue(fileID string) (string, time.Time, error)
	Verify(token string) (string, error)
}

type fileMetadataCache interface {
	Get(ctx context.Context, id string) (*models.File, error)
	Set(ctx context.Context, file *models.File)
	Invalidate(ctx context.Context, id string)
}

type telemetrySink interface {
	TryEnqueue(job jobs.Job) bool
}

const telemetryJobType = "file.access"

// UploadInput carries one temporary upload artifact plus its declared
// metadata. The artifact already sits in the temp directory; the pipeline
// either moves it into permanent storage or removes it.
type UploadInput struct {
	TempPath         string `validate:"required"`
	OriginalFilename string `validate:"required"`
	MimeType         string
	Size             int64  `validate:"gte=0"`
	Visibility       string `validate:"omitempty,oneof=PUBLIC PROTECTED PRIVATE"`
	ExpiresIn        string
	CourseID         *string
	LessonID         *string
	PostID           *string
}

// StreamResult bundles an open byte source with the framing the handler
// must emit. Close releases the underlying file handle.
type StreamResult struct {
	File          *os.File
	Reader        io.Reader
	Status        int
	ContentType   string
	ContentLength int64
	Filename      string
	Headers       map[string]string
}

// Close releases the byte source.
func (r *StreamResult) Close() error {
	if r == nil || r.File == nil {
		return nil
	}
	return r.File.Close()
}

// RangeNotSatisfiableError reports an unusable Range header together with
// the resource's true size so the 416 response can frame it.
type RangeNotSatisfiableError struct {
	Size int64
}

func (e *RangeNotSatisfiableError) Error() string {
	return fmt.Sprintf("requested range not satisfiable for %d byte resource", e.Size)
}

// FileServiceConfig holds pipeline tuning.
type FileServiceConfig struct {
	ChecksumAlgorithm string
	StreamChunkSize   int64
}

// FileService orchestrates upload ingestion, delivery and deletion of
// stored media.
type FileService struct {
	repo      fileStore
	layout    *storage.Layout
	signer    fileTokenSigner
	validator *IngestValidator
	validate  *validatorpkg.Validate
	cache     fileMetadataCache
	telemetry telemetrySink
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       FileServiceConfig
}

// NewFileService constructs the service.
func NewFileService(repo fileStore, layout *storage.Layout, signer fileTokenSigner, validator *IngestValidator, cache fileMetadataCache, telemetry telemetrySink, metrics *MetricsService, logger *zap.Logger, cfg FileServiceConfig) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StreamChunkSize <= 0 {
		cfg.StreamChunkSize = 1 << 20
	}
	return &FileService{
		repo:      repo,
		layout:    layout,
		signer:    signer,
		validator: validator,
		validate:  validatorpkg.New(),
		cache:     cache,
		telemetry: telemetry,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Upload runs the full ingestion pipeline for one artifact: validate,
// place atomically, checksum, persist. On any failure no metadata record
// exists and no artifact is left behind.
func (s *FileService) Upload(ctx context.Context, in UploadInput, actor *models.JWTClaims) (*dto.FileResponse, error) {
	if actor == nil {
		s.removeTemp(in.TempPath)
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate.Struct(in); err != nil {
		s.removeTemp(in.TempPath)
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid upload metadata")
	}

	visibility := models.Visibility(in.Visibility)
	if in.Visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !visibility.Valid() {
		s.removeTemp(in.TempPath)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid visibility %q", in.Visibility))
	}

	expiresAt, err := ParseExpiry(in.ExpiresIn, time.Now().UTC())
	if err != nil {
		s.removeTemp(in.TempPath)
		return nil, err
	}

	category := Categorize(in.MimeType, in.OriginalFilename)
	if err := s.validator.Validate(in.OriginalFilename, in.MimeType, in.Size, category); err != nil {
		s.removeTemp(in.TempPath)
		return nil, err
	}

	filename := storage.GenerateFilename(in.OriginalFilename)
	finalPath := s.layout.Path(string(category), filename)

	// Rename, not copy+delete: no window with two copies or zero copies.
	if err := os.Rename(in.TempPath, finalPath); err != nil {
		s.removeTemp(in.TempPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to place uploaded file")
	}

	checksum, err := storage.Checksum(finalPath, s.cfg.ChecksumAlgorithm)
	if err != nil {
		s.removePlaced(finalPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to checksum uploaded file")
	}

	uploaderID := actor.UserID
	file := &models.File{
		Filename:         filename,
		OriginalFilename: in.OriginalFilename,
		MimeType:         in.MimeType,
		SizeBytes:        in.Size,
		Category:         category,
		Path:             finalPath,
		URL:              s.layout.URL(string(category), filename),
		Key:              s.layout.Key(string(category), filename),
		Visibility:       visibility,
		Checksum:         checksum,
		ExpiresAt:        expiresAt,
		UploaderID:       &uploaderID,
		CourseID:         normalizeRef(in.CourseID),
		LessonID:         normalizeRef(in.LessonID),
		PostID:           normalizeRef(in.PostID),
	}
	if err := s.repo.Create(ctx, file); err != nil {
		s.removePlaced(finalPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist file metadata")
	}

	if s.metrics != nil {
		s.metrics.RecordUpload(string(category))
	}

	return s.respond(file)
}

// UploadBatch ingests multiple artifacts with per-item isolation. Failed
// items are skipped; the response enumerates exactly the accepted ones.
func (s *FileService) UploadBatch(ctx context.Context, inputs []UploadInput, actor *models.JWTClaims) (*dto.BatchUploadResponse, error) {
	if actor == nil {
		for _, in := range inputs {
			s.removeTemp(in.TempPath)
		}
		return nil, appErrors.ErrUnauthorized
	}

	result := &dto.BatchUploadResponse{Files: make([]dto.FileResponse, 0, len(inputs))}
	for _, in := range inputs {
		resp, err := s.Upload(ctx, in, actor)
		if err != nil {
			result.Rejected++
			s.logger.Warn("batch item rejected",
				zap.String("filename", in.OriginalFilename),
				zap.Error(err))
			continue
		}
		result.Files = append(result.Files, *resp)
		result.Accepted++
	}
	return result, nil
}

// Get returns file metadata after authorization. Authorized callers of a
// PRIVATE file receive a freshly issued token.
func (s *FileService) Get(ctx context.Context, id, token string, claims *models.JWTClaims) (*dto.FileResponse, error) {
	file, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(file, claims, token, s.signer); err != nil {
		return nil, err
	}
	return s.respond(file)
}

// List returns files visible to the caller. Administrators see everything;
// everyone else sees public files plus their own uploads.
func (s *FileService) List(ctx context.Context, req dto.ListFilesRequest, claims *models.JWTClaims) ([]models.File, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.FileFilter{
		Category: models.MediaCategory(req.Category),
		Page:     req.Page,
		PageSize: req.Limit,
	}
	if claims.Role.Elevated() {
		filter.Visibility = models.Visibility(req.Visibility)
	} else {
		filter.VisibleTo = claims.UserID
	}
	files, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	return files, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UpdateVisibility changes a file's authorization tier. Administrators only.
func (s *FileService) UpdateVisibility(ctx context.Context, id string, visibility models.Visibility, claims *models.JWTClaims) (*models.File, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Role.Elevated() {
		return nil, appErrors.ErrForbidden
	}
	if !visibility.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid visibility %q", visibility))
	}
	if err := s.repo.UpdateVisibility(ctx, id, visibility, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visibility")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload file")
	}
	return file, nil
}

// Delete removes the disk object and the metadata record. Allowed for the
// uploader and administrators. A disk object that is already absent is
// tolerated.
func (s *FileService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	file, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	owner := file.UploaderID != nil && *file.UploaderID == claims.UserID
	if !owner && !claims.Role.Elevated() {
		return appErrors.ErrForbidden
	}
	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove file from disk")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file metadata")
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return nil
}

// Stream delivers a video file, honoring an optional Range header.
func (s *FileService) Stream(ctx context.Context, id, token, rangeHeader string, claims *models.JWTClaims) (*StreamResult, error) {
	file, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(file, claims, token, s.signer); err != nil {
		return nil, err
	}
	if file.Category != models.CategoryVideo {
		return nil, appErrors.Clone(appErrors.ErrValidation, "streaming is only available for video files")
	}

	size, err := s.statPhysical(file)
	if err != nil {
		return nil, err
	}

	if rangeHeader == "" {
		handle, err := s.open(file)
		if err != nil {
			return nil, err
		}
		s.recordAccess(file.ID)
		s.observeDelivery(file.Category, size)
		return &StreamResult{
			File:          handle,
			Reader:        handle,
			Status:        200,
			ContentType:   file.MimeType,
			ContentLength: size,
			Filename:      file.OriginalFilename,
			Headers:       map[string]string{"Accept-Ranges": "bytes"},
		}, nil
	}

	start, end, err := ParseRange(rangeHeader, size, s.cfg.StreamChunkSize)
	if err != nil {
		return nil, &RangeNotSatisfiableError{Size: size}
	}
	handle, err := s.open(file)
	if err != nil {
		return nil, err
	}
	length := end - start + 1
	s.recordAccess(file.ID)
	s.observeDelivery(file.Category, length)
	return &StreamResult{
		File:          handle,
		Reader:        io.NewSectionReader(handle, start, length),
		Status:        206,
		ContentType:   file.MimeType,
		ContentLength: length,
		Filename:      file.OriginalFilename,
		Headers: map[string]string{
			"Accept-Ranges": "bytes",
			"Content-Range": fmt.Sprintf("bytes %d-%d/%d", start, end, size),
		},
	}, nil
}

// Download delivers the whole file for any category with a byte-accurate
// length. Range negotiation does not apply here.
func (s *FileService) Download(ctx context.Context, id, token string, claims *models.JWTClaims) (*StreamResult, error) {
	file, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(file, claims, token, s.signer); err != nil {
		return nil, err
	}

	size, err := s.statPhysical(file)
	if err != nil {
		return nil, err
	}
	handle, err := s.open(file)
	if err != nil {
		return nil, err
	}
	s.recordAccess(file.ID)
	s.observeDelivery(file.Category, size)
	return &StreamResult{
		File:          handle,
		Reader:        handle,
		Status:        200,
		ContentType:   file.MimeType,
		ContentLength: size,
		Filename:      file.OriginalFilename,
	}, nil
}

// ExportCatalog renders the full catalog as a tabular report for
// administrators. Pages through the repository so no single query has to
// hold the whole table.
func (s *FileService) ExportCatalog(ctx context.Context, format export.Format, claims *models.JWTClaims) ([]byte, string, error) {
	if claims == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	if !claims.Role.Elevated() {
		return nil, "", appErrors.ErrForbidden
	}

	table := export.Table{
		Title:   "Media Catalog",
		Columns: []string{"ID", "Filename", "Category", "Visibility", "Size", "Checksum", "Uploader", "Created"},
	}
	const pageSize = 200
	for page := 1; ; page++ {
		files, _, err := s.repo.List(ctx, models.FileFilter{Page: page, PageSize: pageSize})
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files for export")
		}
		for _, file := range files {
			uploader := ""
			if file.UploaderID != nil {
				uploader = *file.UploaderID
			}
			table.Rows = append(table.Rows, []string{
				file.ID,
				file.OriginalFilename,
				string(file.Category),
				string(file.Visibility),
				strconv.FormatInt(file.SizeBytes, 10),
				file.Checksum,
				uploader,
				file.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(files) < pageSize {
			break
		}
	}

	data, contentType, err := export.Render(table, format)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return data, contentType, nil
}

func (s *FileService) load(ctx context.Context, id string) (*models.File, error) {
	if s.cache != nil {
		if file, err := s.cache.Get(ctx, id); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return file, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if s.cache != nil {
		s.cache.Set(ctx, file)
	}
	return file, nil
}

// statPhysical confirms the disk object exists before any read stream is
// opened. A record without its object is an internal inconsistency that the
// client sees as not-found.
func (s *FileService) statPhysical(file *models.File) (int64, error) {
	info, err := os.Stat(file.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Error("file record has no disk object",
				zap.String("file_id", file.ID),
				zap.String("path", file.Path))
			return 0, appErrors.ErrNotFound
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat file")
	}
	return info.Size(), nil
}

func (s *FileService) open(file *models.File) (*os.File, error) {
	handle, err := os.Open(file.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return handle, nil
}

// recordAccess enqueues the telemetry increment. Best-effort: queue
// failures are logged and never surfaced to the client.
func (s *FileService) recordAccess(id string) {
	if s.telemetry == nil {
		return
	}
	if ok := s.telemetry.TryEnqueue(jobs.Job{ID: id, Type: telemetryJobType, Payload: id}); !ok {
		s.logger.Warn("access telemetry dropped", zap.String("file_id", id))
	}
}

func (s *FileService) observeDelivery(category models.MediaCategory, bytes int64) {
	if s.metrics != nil {
		s.metrics.RecordDelivery(string(category), bytes)
	}
}

func (s *FileService) respond(file *models.File) (*dto.FileResponse, error) {
	resp := &dto.FileResponse{File: *file}
	if file.Visibility == models.VisibilityPrivate && s.signer != nil {
		token, expiresAt, err := s.signer.Issue(file.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue access token")
		}
		unix := expiresAt.Unix()
		resp.Token = &token
		resp.TokenExpiresAt = &unix
	}
	return resp, nil
}

func (s *FileService) removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove temp upload artifact", zap.String("path", path), zap.Error(err))
	}
}

func (s *FileService) removePlaced(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove placed file after pipeline failure", zap.String("path", path), zap.Error(err))
	}
}

func normalizeRef(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	result := *value
	return &result
}
