package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencourse/media-api/internal/dto"
	"github.com/opencourse/media-api/internal/models"
	"github.com/opencourse/media-api/pkg/config"
	appErrors "github.com/opencourse/media-api/pkg/errors"
	"github.com/opencourse/media-api/pkg/export"
	"github.com/opencourse/media-api/pkg/jobs"
	"github.com/opencourse/media-api/pkg/storage"
)

type fileRepoStub struct {
	files      map[string]*models.File
	lastFilter models.FileFilter
}

func newFileRepoStub() *fileRepoStub {
	return &fileRepoStub{files: make(map[string]*models.File)}
}

func (r *fileRepoStub) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = fmt.Sprintf("file-%d", len(r.files)+1)
	}
	now := time.Now().UTC()
	file.CreatedAt = now
	file.UpdatedAt = now
	copy := *file
	r.files[file.ID] = &copy
	return nil
}

func (r *fileRepoStub) GetByID(ctx context.Context, id string) (*models.File, error) {
	if file, ok := r.files[id]; ok {
		copy := *file
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fileRepoStub) List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error) {
	r.lastFilter = filter
	result := make([]models.File, 0, len(r.files))
	for _, file := range r.files {
		result = append(result, *file)
	}
	return result, len(result), nil
}

func (r *fileRepoStub) UpdateVisibility(ctx context.Context, id string, visibility models.Visibility, updatedAt time.Time) error {
	file, ok := r.files[id]
	if !ok {
		return sql.ErrNoRows
	}
	file.Visibility = visibility
	file.UpdatedAt = updatedAt
	return nil
}

func (r *fileRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.files[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.files, id)
	return nil
}

type telemetryStub struct {
	jobs []jobs.Job
}

func (t *telemetryStub) TryEnqueue(job jobs.Job) bool {
	t.jobs = append(t.jobs, job)
	return true
}

type fileServiceFixture struct {
	service   *FileService
	repo      *fileRepoStub
	layout    *storage.Layout
	telemetry *telemetryStub
}

func newFileServiceFixture(t *testing.T) *fileServiceFixture {
	t.Helper()
	layout, err := storage.NewLayout(t.TempDir(), "http://localhost:8080/static")
	require.NoError(t, err)

	repo := newFileRepoStub()
	telemetry := &telemetryStub{}
	validator := NewIngestValidator(config.StorageConfig{
		MaxVideoSize:    10 << 20,
		MaxDocumentSize: 5 << 20,
		MaxImageSize:    1 << 20,
		MaxOtherSize:    1 << 20,
	})
	signer := storage.NewTokenSigner("test-secret", time.Minute)

	svc := NewFileService(repo, layout, signer, validator, nil, telemetry, nil, nil, FileServiceConfig{
		ChecksumAlgorithm: "sha256",
		StreamChunkSize:   1024,
	})
	return &fileServiceFixture{service: svc, repo: repo, layout: layout, telemetry: telemetry}
}

func (f *fileServiceFixture) stageUpload(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := f.layout.TempPath("tmp-" + name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func videoUploadInput(tempPath string, content []byte) UploadInput {
	return UploadInput{
		TempPath:         tempPath,
		OriginalFilename: "lecture.mp4",
		MimeType:         "video/mp4",
		Size:             int64(len(content)),
		Visibility:       "PUBLIC",
	}
}

func student(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func TestFileServiceUpload(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("fake video payload")
	temp := f.stageUpload(t, "a.mp4", content)

	resp, err := f.service.Upload(context.Background(), videoUploadInput(temp, content), student("u-1"))
	require.NoError(t, err)

	// Temp artifact is gone; final object carries the bytes.
	_, statErr := os.Stat(temp)
	require.True(t, os.IsNotExist(statErr))
	placed, readErr := os.ReadFile(resp.Path)
	require.NoError(t, readErr)
	require.Equal(t, content, placed)
	require.Equal(t, filepath.Join(f.layout.Dir(string(models.CategoryVideo)), resp.Filename), resp.Path)

	sum := sha256.Sum256(content)
	require.Equal(t, hex.EncodeToString(sum[:]), resp.Checksum)

	require.Equal(t, models.CategoryVideo, resp.Category)
	require.Equal(t, "u-1", *resp.UploaderID)
	require.NotEmpty(t, resp.URL)
	require.Nil(t, resp.Token)

	stored, err := f.repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Equal(t, resp.Checksum, stored.Checksum)
}

func TestFileServiceUploadPrivateIssuesToken(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("private doc")
	temp := f.stageUpload(t, "a.pdf", content)

	resp, err := f.service.Upload(context.Background(), UploadInput{
		TempPath:         temp,
		OriginalFilename: "grades.pdf",
		MimeType:         "application/pdf",
		Size:             int64(len(content)),
		Visibility:       "PRIVATE",
	}, student("u-1"))
	require.NoError(t, err)
	require.NotNil(t, resp.Token)
	require.NotNil(t, resp.TokenExpiresAt)
	require.Greater(t, *resp.TokenExpiresAt, time.Now().Unix())
}

func TestFileServiceUploadRejectionRemovesTemp(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("nope")
	temp := f.stageUpload(t, "evil.exe", content)

	_, err := f.service.Upload(context.Background(), UploadInput{
		TempPath:         temp,
		OriginalFilename: "evil.exe",
		MimeType:         "application/octet-stream",
		Size:             int64(len(content)),
	}, student("u-1"))
	require.Error(t, err)

	_, statErr := os.Stat(temp)
	require.True(t, os.IsNotExist(statErr))
	require.Empty(t, f.repo.files)
}

func TestFileServiceUploadInvalidVisibility(t *testing.T) {
	f := newFileServiceFixture(t)
	temp := f.stageUpload(t, "a.mp4", []byte("x"))

	in := videoUploadInput(temp, []byte("x"))
	in.Visibility = "SECRET"
	_, err := f.service.Upload(context.Background(), in, student("u-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileServiceUploadBatchPartialFailure(t *testing.T) {
	f := newFileServiceFixture(t)
	good1 := []byte("first")
	good2 := []byte("second")
	inputs := []UploadInput{
		videoUploadInput(f.stageUpload(t, "a.mp4", good1), good1),
		{
			TempPath:         f.stageUpload(t, "evil.exe", []byte("bad")),
			OriginalFilename: "evil.exe",
			MimeType:         "application/octet-stream",
			Size:             3,
		},
		videoUploadInput(f.stageUpload(t, "b.mp4", good2), good2),
	}

	resp, err := f.service.UploadBatch(context.Background(), inputs, student("u-1"))
	require.NoError(t, err)
	require.Equal(t, 2, resp.Accepted)
	require.Equal(t, 1, resp.Rejected)
	require.Len(t, resp.Files, 2)
	require.Len(t, f.repo.files, 2)
}

func TestFileServiceGetIssuesFreshTokenForPrivate(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("private doc")
	temp := f.stageUpload(t, "a.pdf", content)

	uploaded, err := f.service.Upload(context.Background(), UploadInput{
		TempPath:         temp,
		OriginalFilename: "grades.pdf",
		MimeType:         "application/pdf",
		Size:             int64(len(content)),
		Visibility:       "PRIVATE",
	}, student("owner"))
	require.NoError(t, err)

	got, err := f.service.Get(context.Background(), uploaded.ID, "", student("owner"))
	require.NoError(t, err)
	require.NotNil(t, got.Token)

	_, err = f.service.Get(context.Background(), uploaded.ID, "", student("stranger"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.service.Get(context.Background(), "missing", "", student("owner"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFileServiceListScopesNonAdmins(t *testing.T) {
	f := newFileServiceFixture(t)

	_, _, err := f.service.List(context.Background(), dto.ListFilesRequest{}, nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, _, err = f.service.List(context.Background(), dto.ListFilesRequest{}, student("u-1"))
	require.NoError(t, err)
	require.Equal(t, "u-1", f.repo.lastFilter.VisibleTo)

	_, _, err = f.service.List(context.Background(), dto.ListFilesRequest{Visibility: "PRIVATE"}, &models.JWTClaims{UserID: "adm", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Empty(t, f.repo.lastFilter.VisibleTo)
	require.Equal(t, models.VisibilityPrivate, f.repo.lastFilter.Visibility)
}

func TestFileServiceUpdateVisibility(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("payload")
	resp, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	_, err = f.service.UpdateVisibility(context.Background(), resp.ID, models.VisibilityPrivate, student("u-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	admin := &models.JWTClaims{UserID: "adm", Role: models.RoleAdmin}
	updated, err := f.service.UpdateVisibility(context.Background(), resp.ID, models.VisibilityPrivate, admin)
	require.NoError(t, err)
	require.Equal(t, models.VisibilityPrivate, updated.Visibility)

	_, err = f.service.UpdateVisibility(context.Background(), "missing", models.VisibilityPublic, admin)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFileServiceDelete(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("payload")
	resp, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	err = f.service.Delete(context.Background(), resp.ID, student("someone-else"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, f.service.Delete(context.Background(), resp.ID, student("u-1")))
	_, statErr := os.Stat(resp.Path)
	require.True(t, os.IsNotExist(statErr))
	require.Empty(t, f.repo.files)
}

func TestFileServiceDeleteToleratesMissingDiskObject(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("payload")
	resp, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	require.NoError(t, os.Remove(resp.Path))
	require.NoError(t, f.service.Delete(context.Background(), resp.ID, student("u-1")))
	require.Empty(t, f.repo.files)
}

func TestFileServiceStreamFull(t *testing.T) {
	f := newFileServiceFixture(t)
	content := bytes.Repeat([]byte("abcdefghij"), 500)
	resp, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	result, err := f.service.Stream(context.Background(), resp.ID, "", "", nil)
	require.NoError(t, err)
	defer result.Close()

	require.Equal(t, 200, result.Status)
	require.Equal(t, int64(len(content)), result.ContentLength)
	require.Equal(t, "bytes", result.Headers["Accept-Ranges"])

	data, err := io.ReadAll(result.Reader)
	require.NoError(t, err)
	require.Equal(t, content, data)
	require.Len(t, f.telemetry.jobs, 1)
	require.Equal(t, resp.ID, f.telemetry.jobs[0].ID)
}

func TestFileServiceStreamRangeWindow(t *testing.T) {
	f := newFileServiceFixture(t)
	content := bytes.Repeat([]byte("abcdefghij"), 500) // 5000 bytes
	resp, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	result, err := f.service.Stream(context.Background(), resp.ID, "", "bytes=1000-", nil)
	require.NoError(t, err)
	defer result.Close()

	// Chunk size is 1024, so the open-ended request yields a 1024 byte window.
	require.Equal(t, 206, result.Status)
	require.Equal(t, int64(1024), result.ContentLength)
	require.Equal(t, "bytes 1000-2023/5000", result.Headers["Content-Range"])

	data, err := io.ReadAll(result.Reader)
	require.NoError(t, err)
	require.Equal(t, content[1000:2024], data)
}

func TestFileServiceStreamUnsatisfiableRange(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("short")
	resp, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	_, err = f.service.Stream(context.Background(), resp.ID, "", "bytes=9999-", nil)
	var rangeErr *RangeNotSatisfiableError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, int64(len(content)), rangeErr.Size)
}

func TestFileServiceStreamRejectsNonVideo(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("doc body")
	resp, err := f.service.Upload(context.Background(), UploadInput{
		TempPath:         f.stageUpload(t, "a.pdf", content),
		OriginalFilename: "syllabus.pdf",
		MimeType:         "application/pdf",
		Size:             int64(len(content)),
	}, student("u-1"))
	require.NoError(t, err)

	_, err = f.service.Stream(context.Background(), resp.ID, "", "", nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileServiceStreamMissingDiskObject(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("payload")
	resp, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	require.NoError(t, os.Remove(resp.Path))
	_, err = f.service.Stream(context.Background(), resp.ID, "", "", nil)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFileServiceExportCatalog(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("payload")
	_, err := f.service.Upload(context.Background(), videoUploadInput(f.stageUpload(t, "a.mp4", content), content), student("u-1"))
	require.NoError(t, err)

	_, _, err = f.service.ExportCatalog(context.Background(), export.FormatCSV, student("u-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	admin := &models.JWTClaims{UserID: "adm", Role: models.RoleAdmin}
	data, contentType, err := f.service.ExportCatalog(context.Background(), export.FormatCSV, admin)
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)
	require.Contains(t, string(data), "lecture.mp4")
}

func TestFileServiceDownload(t *testing.T) {
	f := newFileServiceFixture(t)
	content := []byte("doc body")
	resp, err := f.service.Upload(context.Background(), UploadInput{
		TempPath:         f.stageUpload(t, "a.pdf", content),
		OriginalFilename: "syllabus.pdf",
		MimeType:         "application/pdf",
		Size:             int64(len(content)),
	}, student("u-1"))
	require.NoError(t, err)

	result, err := f.service.Download(context.Background(), resp.ID, "", nil)
	require.NoError(t, err)
	defer result.Close()

	require.Equal(t, 200, result.Status)
	require.Equal(t, int64(len(content)), result.ContentLength)
	require.Equal(t, "syllabus.pdf", result.Filename)

	data, err := io.ReadAll(result.Reader)
	require.NoError(t, err)
	require.Equal(t, content, data)
}
