package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opencourse/media-api/internal/models"
)

const fileColumns = `id, filename, original_filename, mime_type, size_bytes, category,
       path, url, key, visibility, checksum, expires_at, uploader_id, course_id,
       lesson_id, post_id, access_count, last_accessed_at, duration_seconds,
       width, height, metadata, is_processed, processed_at, created_at, updated_at`

// FileRepository handles file metadata persistence.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create stores metadata for an uploaded file.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	const query = `INSERT INTO files
	(id, filename, original_filename, mime_type, size_bytes, category, path, url, key,
	 visibility, checksum, expires_at, uploader_id, course_id, lesson_id, post_id,
	 access_count, last_accessed_at, duration_seconds, width, height, metadata,
	 is_processed, processed_at, created_at, updated_at)
	VALUES (:id, :filename, :original_filename, :mime_type, :size_bytes, :category, :path, :url, :key,
	 :visibility, :checksum, :expires_at, :uploader_id, :course_id, :lesson_id, :post_id,
	 :access_count, :last_accessed_at, :duration_seconds, :width, :height, :metadata,
	 :is_processed, :processed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file record: %w", err)
	}
	return nil
}

// GetByID retrieves one file row.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns files matching the filter plus the total count for pagination.
func (r *FileRepository) List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Visibility != "" {
		args = append(args, filter.Visibility)
		conditions = append(conditions, fmt.Sprintf("visibility = $%d", len(args)))
	}
	if filter.UploaderID != "" {
		args = append(args, filter.UploaderID)
		conditions = append(conditions, fmt.Sprintf("uploader_id = $%d", len(args)))
	}
	if filter.VisibleTo != "" {
		args = append(args, filter.VisibleTo)
		conditions = append(conditions, fmt.Sprintf("(visibility = 'PUBLIC' OR uploader_id = $%d)", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM files"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := `SELECT ` + fileColumns + ` FROM files` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var records []models.File
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}
	return records, total, nil
}

// UpdateVisibility changes a file's authorization tier.
func (r *FileRepository) UpdateVisibility(ctx context.Context, id string, visibility models.Visibility, updatedAt time.Time) error {
	const query = `UPDATE files SET visibility = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, visibility, updatedAt)
	if err != nil {
		return fmt.Errorf("update file visibility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check visibility update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a file row.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check file delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordAccess increments the access counter and stamps the last access
// time. Lost updates under concurrency are acceptable; the row-level UPDATE
// keeps the counter monotonic.
func (r *FileRepository) RecordAccess(ctx context.Context, id string, accessedAt time.Time) error {
	const query = `UPDATE files SET access_count = access_count + 1, last_accessed_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, accessedAt); err != nil {
		return fmt.Errorf("record file access: %w", err)
	}
	return nil
}

// ListOrphaned returns files with no uploader and no owning association
// created before the cutoff.
func (r *FileRepository) ListOrphaned(ctx context.Context, cutoff time.Time) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
	WHERE uploader_id IS NULL AND course_id IS NULL AND lesson_id IS NULL AND post_id IS NULL
	  AND created_at < $1`
	var records []models.File
	if err := r.db.SelectContext(ctx, &records, query, cutoff); err != nil {
		return nil, fmt.Errorf("list orphaned files: %w", err)
	}
	return records, nil
}

// ListExpired returns files whose expiry is in the past.
func (r *FileRepository) ListExpired(ctx context.Context, now time.Time) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE expires_at IS NOT NULL AND expires_at < $1`
	var records []models.File
	if err := r.db.SelectContext(ctx, &records, query, now); err != nil {
		return nil, fmt.Errorf("list expired files: %w", err)
	}
	return records, nil
}
