package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opencourse/media-api/internal/dto"
	"github.com/opencourse/media-api/internal/models"
	"github.com/opencourse/media-api/internal/service"
	appErrors "github.com/opencourse/media-api/pkg/errors"
	"github.com/opencourse/media-api/pkg/export"
	"github.com/opencourse/media-api/pkg/response"
	"github.com/opencourse/media-api/pkg/storage"
)

type fileService interface {
	Upload(ctx context.Context, in service.UploadInput, actor *models.JWTClaims) (*dto.FileResponse, error)
	UploadBatch(ctx context.Context, inputs []service.UploadInput, actor *models.JWTClaims) (*dto.BatchUploadResponse, error)
	Get(ctx context.Context, id, token string, claims *models.JWTClaims) (*dto.FileResponse, error)
	List(ctx context.Context, req dto.ListFilesRequest, claims *models.JWTClaims) ([]models.File, *models.Pagination, error)
	UpdateVisibility(ctx context.Context, id string, visibility models.Visibility, claims *models.JWTClaims) (*models.File, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) error
	Stream(ctx context.Context, id, token, rangeHeader string, claims *models.JWTClaims) (*service.StreamResult, error)
	Download(ctx context.Context, id, token string, claims *models.JWTClaims) (*service.StreamResult, error)
	ExportCatalog(ctx context.Context, format export.Format, claims *models.JWTClaims) ([]byte, string, error)
}

// FileHandler manages media file HTTP endpoints.
type FileHandler struct {
	service fileService
	layout  *storage.Layout
}

// NewFileHandler constructs the handler.
func NewFileHandler(service fileService, layout *storage.Layout) *FileHandler {
	return &FileHandler{service: service, layout: layout}
}

// stageUpload copies one multipart part into the temp directory so the
// ingestion pipeline can take over with a plain filesystem path.
func (h *FileHandler) stageUpload(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close() //nolint:errcheck

	tempPath := h.layout.TempPath("upload-" + uuid.NewString() + ".part")
	dst, err := os.Create(tempPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck
		os.Remove(tempPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

func uploadInputFrom(req dto.UploadRequest, fileHeader *multipart.FileHeader, tempPath string) service.UploadInput {
	return service.UploadInput{
		TempPath:         tempPath,
		OriginalFilename: fileHeader.Filename,
		MimeType:         fileHeader.Header.Get("Content-Type"),
		Size:             fileHeader.Size,
		Visibility:       strings.ToUpper(strings.TrimSpace(req.Visibility)),
		ExpiresIn:        req.ExpiresIn,
		CourseID:         req.CourseID,
		LessonID:         req.LessonID,
		PostID:           req.PostID,
	}
}

// Upload godoc
// @Summary Upload a media file
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Media file"
// @Param visibility formData string false "PUBLIC, PROTECTED or PRIVATE"
// @Param expiresIn formData string false "Retention duration, e.g. 720h"
// @Param courseId formData string false "Course association"
// @Param lessonId formData string false "Lesson association"
// @Param postId formData string false "Post association"
// @Success 201 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	tempPath, err := h.stageUpload(fileHeader)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer upload"))
		return
	}
	result, err := h.service.Upload(c.Request.Context(), uploadInputFrom(req, fileHeader, tempPath), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// UploadBatch godoc
// @Summary Upload multiple media files
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Media files"
// @Param visibility formData string false "PUBLIC, PROTECTED or PRIVATE"
// @Success 201 {object} response.Envelope
// @Router /files/batch [post]
func (h *FileHandler) UploadBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload payload"))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid multipart payload"))
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}

	inputs := make([]service.UploadInput, 0, len(fileHeaders))
	for _, fileHeader := range fileHeaders {
		tempPath, stageErr := h.stageUpload(fileHeader)
		if stageErr != nil {
			// An unstageable part counts as rejected; the service never
			// sees it.
			inputs = append(inputs, service.UploadInput{
				OriginalFilename: fileHeader.Filename,
				MimeType:         fileHeader.Header.Get("Content-Type"),
			})
			continue
		}
		inputs = append(inputs, uploadInputFrom(req, fileHeader, tempPath))
	}

	result, err := h.service.UploadBatch(c.Request.Context(), inputs, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get file metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Param token query string false "Signed access token"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Query("token"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List files visible to the caller
// @Tags Files
// @Produce json
// @Param category query string false "Category filter"
// @Param visibility query string false "Visibility filter (administrators only)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	var req dto.ListFilesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	req.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	req.Visibility = strings.ToUpper(strings.TrimSpace(req.Visibility))

	files, pagination, err := h.service.List(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, pagination)
}

// UpdateVisibility godoc
// @Summary Change a file's visibility tier
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.UpdateVisibilityRequest true "New visibility"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/visibility [patch]
func (h *FileHandler) UpdateVisibility(c *gin.Context) {
	var req dto.UpdateVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid visibility payload"))
		return
	}
	visibility := models.Visibility(strings.ToUpper(strings.TrimSpace(req.Visibility)))
	file, err := h.service.UpdateVisibility(c.Request.Context(), c.Param("id"), visibility, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Delete godoc
// @Summary Delete a file and its metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 204
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the file catalog as CSV or PDF
// @Tags Admin
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /admin/files/export [get]
func (h *FileHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	data, contentType, err := h.service.ExportCatalog(c.Request.Context(), format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "media-catalog."+string(format)))
	c.Data(http.StatusOK, contentType, data)
}

// Stream godoc
// @Summary Stream a video file with Range support
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param token query string false "Signed access token"
// @Param Range header string false "Byte range"
// @Success 206 {file} binary
// @Router /files/{id}/stream [get]
func (h *FileHandler) Stream(c *gin.Context) {
	result, err := h.service.Stream(c.Request.Context(), c.Param("id"), c.Query("token"), c.GetHeader("Range"), claimsFromContext(c))
	if err != nil {
		var rangeErr *service.RangeNotSatisfiableError
		if errors.As(err, &rangeErr) {
			// 416 carries only the total-size framing header, no body.
			c.Header("Content-Range", "bytes */"+strconv.FormatInt(rangeErr.Size, 10))
			c.Status(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		response.Error(c, err)
		return
	}
	defer result.Close() //nolint:errcheck
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(result.Status, result.ContentLength, result.ContentType, result.Reader, result.Headers)
}

// Download godoc
// @Summary Download a file as an attachment
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param token query string false "Signed access token"
// @Success 200 {file} binary
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), c.Query("token"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.ContentLength, result.ContentType, result.Reader, nil)
}
