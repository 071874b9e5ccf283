package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const filesSchema = `
CREATE TABLE IF NOT EXISTS files (
	id                UUID PRIMARY KEY,
	filename          TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	mime_type         TEXT NOT NULL,
	size_bytes        BIGINT NOT NULL,
	category          TEXT NOT NULL,
	path              TEXT NOT NULL,
	url               TEXT NOT NULL,
	key               TEXT NOT NULL,
	visibility        TEXT NOT NULL DEFAULT 'PUBLIC',
	checksum          TEXT NOT NULL,
	expires_at        TIMESTAMPTZ,
	uploader_id       TEXT,
	course_id         TEXT,
	lesson_id         TEXT,
	post_id           TEXT,
	access_count      BIGINT NOT NULL DEFAULT 0,
	last_accessed_at  TIMESTAMPTZ,
	duration_seconds  DOUBLE PRECISION,
	width             INTEGER,
	height            INTEGER,
	metadata          JSONB,
	is_processed      BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_files_visibility ON files (visibility);
CREATE INDEX IF NOT EXISTS idx_files_uploader ON files (uploader_id);
CREATE INDEX IF NOT EXISTS idx_files_expires_at ON files (expires_at) WHERE expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_files_category ON files (category);
`

// EnsureSchema creates the files table and its indexes when absent. Startup
// migration keeps single-service deployments self-contained.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, filesSchema); err != nil {
		return fmt.Errorf("ensure files schema: %w", err)
	}
	return nil
}
