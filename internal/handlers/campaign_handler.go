package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/services"
)

type CampaignHandler struct {
	releaseAccess
	campaignService *services.CampaignService
	reportService   *services.ReportService
}

func NewCampaignHandler(campaignService *services.CampaignService, reportService *services.ReportService, releaseService *services.ReleaseService) *CampaignHandler {
	return &CampaignHandler{
		releaseAccess:   releaseAccess{releases: releaseService},
		campaignService: campaignService,
		reportService:   reportService,
	}
}

// Start begins the campaign once the setup wizard is complete
func (h *CampaignHandler) Start(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	view, err := h.campaignService.Start(c.Request.Context(), release.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Get returns progress, the current task and the queue
func (h *CampaignHandler) Get(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	view, err := h.campaignService.Progress(c.Request.Context(), release.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CampaignHandler) taskParams(c *gin.Context) (*models.Release, uuid.UUID, bool) {
	release, ok := h.param(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	taskID, ok := uuidParam(c, "taskId")
	if !ok {
		return nil, uuid.Nil, false
	}
	return release, taskID, true
}

func (h *CampaignHandler) Complete(c *gin.Context) {
	release, taskID, ok := h.taskParams(c)
	if !ok {
		return
	}
	view, err := h.campaignService.Complete(c.Request.Context(), release.ID, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CampaignHandler) Skip(c *gin.Context) {
	release, taskID, ok := h.taskParams(c)
	if !ok {
		return
	}
	view, err := h.campaignService.Skip(c.Request.Context(), release.ID, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Swap replaces the current task with a generated alternative
func (h *CampaignHandler) Swap(c *gin.Context) {
	release, taskID, ok := h.taskParams(c)
	if !ok {
		return
	}
	task, err := h.campaignService.Swap(c.Request.Context(), release.ID, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Requeue puts a skipped task back at the end of the queue
func (h *CampaignHandler) Requeue(c *gin.Context) {
	release, taskID, ok := h.taskParams(c)
	if !ok {
		return
	}
	view, err := h.campaignService.RequeueSkipped(c.Request.Context(), release.ID, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Report downloads the campaign summary as PDF
func (h *CampaignHandler) Report(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	pdf, err := h.reportService.CampaignPDF(c.Request.Context(), release)
	if err != nil {
		respondError(c, err)
		return
	}
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, release.Title)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-campaign.pdf"`, name))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
