package models

import "time"

// MediaCategory is the coarse classification governing storage subdirectory
// and validation rules. It is derived once at ingestion and never recomputed.
type MediaCategory string

const (
	CategoryVideo    MediaCategory = "VIDEO"
	CategoryDocument MediaCategory = "DOCUMENT"
	CategoryImage    MediaCategory = "IMAGE"
	CategoryOther    MediaCategory = "OTHER"
)

// Visibility is the authorization tier of a stored file.
type Visibility string

const (
	VisibilityPublic    Visibility = "PUBLIC"
	VisibilityProtected Visibility = "PROTECTED"
	VisibilityPrivate   Visibility = "PRIVATE"
)

// Valid reports whether the visibility is one of the known tiers.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityProtected, VisibilityPrivate:
		return true
	}
	return false
}

// File is the persisted metadata record for one stored media object.
type File struct {
	ID               string        `db:"id" json:"id"`
	Filename         string        `db:"filename" json:"filename"`
	OriginalFilename string        `db:"original_filename" json:"originalFilename"`
	MimeType         string        `db:"mime_type" json:"mimeType"`
	SizeBytes        int64         `db:"size_bytes" json:"sizeBytes"`
	Category         MediaCategory `db:"category" json:"category"`
	Path             string        `db:"path" json:"-"`
	URL              string        `db:"url" json:"url"`
	Key              string        `db:"key" json:"key"`
	Visibility       Visibility    `db:"visibility" json:"visibility"`
	Checksum         string        `db:"checksum" json:"checksum"`
	ExpiresAt        *time.Time    `db:"expires_at" json:"expiresAt,omitempty"`
	UploaderID       *string       `db:"uploader_id" json:"uploaderId,omitempty"`
	CourseID         *string       `db:"course_id" json:"courseId,omitempty"`
	LessonID         *string       `db:"lesson_id" json:"lessonId,omitempty"`
	PostID           *string       `db:"post_id" json:"postId,omitempty"`
	AccessCount      int64         `db:"access_count" json:"accessCount"`
	LastAccessedAt   *time.Time    `db:"last_accessed_at" json:"lastAccessedAt,omitempty"`

	// Media metadata reserved for the transcoding pipeline.
	DurationSeconds *float64   `db:"duration_seconds" json:"durationSeconds,omitempty"`
	Width           *int       `db:"width" json:"width,omitempty"`
	Height          *int       `db:"height" json:"height,omitempty"`
	Metadata        *string    `db:"metadata" json:"metadata,omitempty"`
	IsProcessed     bool       `db:"is_processed" json:"isProcessed"`
	ProcessedAt     *time.Time `db:"processed_at" json:"processedAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Owned reports whether the file has any owning association.
func (f *File) Owned() bool {
	return f.UploaderID != nil || f.CourseID != nil || f.LessonID != nil || f.PostID != nil
}

// FileFilter narrows listing queries.
type FileFilter struct {
	Category   MediaCategory
	Visibility Visibility
	UploaderID string
	// VisibleTo restricts results to public files plus the given uploader's
	// own files. Empty means no restriction (administrator view).
	VisibleTo string
	Page      int
	PageSize  int
}
