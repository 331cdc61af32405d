package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/middleware"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/services"
)

type ProfileHandler struct {
	releaseAccess
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService, releaseService *services.ReleaseService) *ProfileHandler {
	return &ProfileHandler{releaseAccess: releaseAccess{releases: releaseService}, profileService: profileService}
}

// CreateDraft starts the setup wizard for a release. Calling it again returns the
// existing profile.
func (h *ProfileHandler) CreateDraft(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	p, err := h.profileService.CreateDraft(c.Request.Context(), release.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProfileHandler) Get(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	p, err := h.profileService.Get(c.Request.Context(), release.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// saveSection binds the wizard section T from the body and stores it with set.
func saveSection[T any](h *ProfileHandler, c *gin.Context, set func(context.Context, uuid.UUID, T) (*models.ReleaseProfile, error)) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	var in T
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := set(c.Request.Context(), release.ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) SetSongIntake(c *gin.Context) {
	saveSection(h, c, h.profileService.SetSongIntake)
}

func (h *ProfileHandler) SetTargetAudience(c *gin.Context) {
	saveSection(h, c, h.profileService.SetTargetAudience)
}

func (h *ProfileHandler) SetBudgetTimeline(c *gin.Context) {
	saveSection(h, c, h.profileService.SetBudgetTimeline)
}

func (h *ProfileHandler) SetGoals(c *gin.Context) {
	saveSection(h, c, h.profileService.SetGoals)
}

type narrativeInput struct {
	Narrative string `json:"narrative"`
}

func (h *ProfileHandler) SetNarrative(c *gin.Context) {
	saveSection(h, c, func(ctx context.Context, id uuid.UUID, in narrativeInput) (*models.ReleaseProfile, error) {
		return h.profileService.SetNarrative(ctx, id, in.Narrative)
	})
}

// Complete finishes the wizard. Fails with 400 naming the missing sections.
func (h *ProfileHandler) Complete(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	p, err := h.profileService.CompleteSetup(c.Request.Context(), release.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) GetArtistProfile(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	a, err := h.profileService.GetArtistProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ProfileHandler) UpsertArtistProfile(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	var in services.ArtistProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.profileService.UpsertArtistProfile(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
