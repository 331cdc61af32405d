package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/middleware"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/services"
)

type FileHandler struct {
	releaseAccess
	fileService *services.FileService
	cfg         *config.Config
}

func NewFileHandler(fileService *services.FileService, releaseService *services.ReleaseService, cfg *config.Config) *FileHandler {
	return &FileHandler{releaseAccess: releaseAccess{releases: releaseService}, fileService: fileService, cfg: cfg}
}

func (h *FileHandler) file(c *gin.Context) (*models.ReleaseFile, bool) {
	id, ok := uuidParam(c, "fileId")
	if !ok {
		return nil, false
	}
	f, err := h.fileService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if _, ok := h.byID(c, f.ReleaseID); !ok {
		return nil, false
	}
	return f, true
}

// List returns the release's files, optionally filtered by ?category=
func (h *FileHandler) List(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	var (
		files []models.ReleaseFile
		err   error
	)
	if category := c.Query("category"); category != "" {
		files, err = h.fileService.ListByCategory(c.Request.Context(), release.ID, models.FileCategory(category))
	} else {
		files, err = h.fileService.ListByRelease(c.Request.Context(), release.ID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// Upload stores a release asset
// POST /releases/:id/files
// Multipart form: file (required), category (required)
func (h *FileHandler) Upload(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	if h.cfg.UploadMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.UploadMaxBytes+1<<20)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large", "code": "VALIDATION_ERROR"})
			return
		}
		badRequest(c, "file is required")
		return
	}
	defer file.Close()

	userID, _ := middleware.UserID(c)
	f, err := h.fileService.Add(c.Request.Context(), services.Upload{
		ReleaseID:  release.ID,
		UploadedBy: userID,
		Category:   models.FileCategory(c.PostForm("category")),
		Name:       filepath.Base(header.Filename),
		Size:       header.Size,
		Body:       file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// Download redirects to a presigned URL, or serves the file when it is stored locally.
// ?redirect=false returns the URL as JSON instead.
func (h *FileHandler) Download(c *gin.Context) {
	f, ok := h.file(c)
	if !ok {
		return
	}
	d, err := h.fileService.DownloadURL(c.Request.Context(), f.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	if d.LocalPath != "" {
		if f.MimeType != "" {
			c.Header("Content-Type", f.MimeType)
		}
		c.FileAttachment(d.LocalPath, f.Name)
		return
	}
	if c.Query("redirect") == "false" {
		c.JSON(http.StatusOK, d)
		return
	}
	c.Redirect(http.StatusFound, d.URL)
}

func (h *FileHandler) Delete(c *gin.Context) {
	f, ok := h.file(c)
	if !ok {
		return
	}
	if err := h.fileService.Delete(c.Request.Context(), f.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AudioCheck tells whether the release has its required audio file
func (h *FileHandler) AudioCheck(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	files, err := h.fileService.ListByCategory(c.Request.Context(), release.ID, models.FileCategoryAudio)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_audio": services.HasRequiredAudioFile(release.ID, files)})
}
