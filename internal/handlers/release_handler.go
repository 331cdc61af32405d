package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/releasedesk/backend/internal/middleware"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/services"
)

type ReleaseHandler struct {
	releaseAccess
	releaseService *services.ReleaseService
}

func NewReleaseHandler(releaseService *services.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{releaseAccess: releaseAccess{releases: releaseService}, releaseService: releaseService}
}

// List returns the caller's releases
func (h *ReleaseHandler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	releases, err := h.releaseService.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"releases": releases})
}

// Create handles release creation
// POST /releases  {"title": "...", "artist_name": "...", "type": "single", "with_default_tasks": true}
func (h *ReleaseHandler) Create(c *gin.Context) {
	var req struct {
		Title            string             `json:"title" binding:"required,max=255"`
		ArtistName       string             `json:"artist_name" binding:"required,max=255"`
		Type             models.ReleaseType `json:"type" binding:"required"`
		ReleaseDate      *time.Time         `json:"release_date"`
		CoverArtKey      string             `json:"cover_art_key"`
		WithDefaultTasks bool               `json:"with_default_tasks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID, _ := middleware.UserID(c)
	release, err := h.releaseService.Create(c.Request.Context(), userID, services.ReleaseDraft{
		Title:            req.Title,
		ArtistName:       req.ArtistName,
		Type:             req.Type,
		ReleaseDate:      req.ReleaseDate,
		CoverArtKey:      req.CoverArtKey,
		WithDefaultTasks: req.WithDefaultTasks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, release)
}

func (h *ReleaseHandler) Get(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, release)
}

func (h *ReleaseHandler) Update(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	var req struct {
		Title       *string               `json:"title" binding:"omitempty,max=255"`
		ArtistName  *string               `json:"artist_name" binding:"omitempty,max=255"`
		Type        *models.ReleaseType   `json:"type"`
		Status      *models.ReleaseStatus `json:"status"`
		ReleaseDate *time.Time            `json:"release_date"`
		CoverArtKey *string               `json:"cover_art_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := h.releaseService.Update(c.Request.Context(), release.ID, services.ReleaseUpdate{
		Title:       req.Title,
		ArtistName:  req.ArtistName,
		Type:        req.Type,
		Status:      req.Status,
		ReleaseDate: req.ReleaseDate,
		CoverArtKey: req.CoverArtKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes the release with its tasks, profile, campaign and files
func (h *ReleaseHandler) Delete(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	if err := h.releaseService.Delete(c.Request.Context(), release.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
