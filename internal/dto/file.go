package dto

import "github.com/opencourse/media-api/internal/models"

// UploadRequest contains metadata submitted alongside a multipart upload.
type UploadRequest struct {
	Visibility string  `form:"visibility" json:"visibility"`
	ExpiresIn  string  `form:"expiresIn" json:"expiresIn"`
	CourseID   *string `form:"courseId" json:"courseId"`
	LessonID   *string `form:"lessonId" json:"lessonId"`
	PostID     *string `form:"postId" json:"postId"`
}

// FileResponse enriches file metadata with the credential matching its
// visibility tier: a signed token for PRIVATE files, nothing extra for
// PROTECTED ones.
type FileResponse struct {
	models.File
	Token          *string `json:"token,omitempty"`
	TokenExpiresAt *int64  `json:"tokenExpiresAt,omitempty"`
}

// BatchUploadResponse enumerates exactly the items that succeeded. The
// accepted count is part of the contract, not inferred by the caller.
type BatchUploadResponse struct {
	Files    []FileResponse `json:"files"`
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
}

// ListFilesRequest captures listing query parameters.
type ListFilesRequest struct {
	Category   string `form:"category"`
	Visibility string `form:"visibility"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

// UpdateVisibilityRequest changes a file's authorization tier.
type UpdateVisibilityRequest struct {
	Visibility string `json:"visibility" binding:"required"`
}
