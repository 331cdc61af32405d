package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/releasedesk/backend/internal/middleware"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/services"
)

type TaskHandler struct {
	releaseAccess
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService, releaseService *services.ReleaseService) *TaskHandler {
	return &TaskHandler{releaseAccess: releaseAccess{releases: releaseService}, taskService: taskService}
}

// task loads the :taskId task after checking the caller may see its release.
func (h *TaskHandler) task(c *gin.Context) (*models.Task, bool) {
	id, ok := uuidParam(c, "taskId")
	if !ok {
		return nil, false
	}
	task, err := h.taskService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if _, ok := h.byID(c, task.ReleaseID); !ok {
		return nil, false
	}
	return task, true
}

// List returns the release checklist, optionally filtered by ?phase=
func (h *TaskHandler) List(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	var (
		tasks []models.Task
		err   error
	)
	if phase := c.Query("phase"); phase != "" {
		tasks, err = h.taskService.ListByPhase(c.Request.Context(), release.ID, models.Phase(phase))
	} else {
		tasks, err = h.taskService.ListByRelease(c.Request.Context(), release.ID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) Add(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	var req struct {
		Title       string       `json:"title" binding:"required,max=255"`
		Description string       `json:"description" binding:"max=2000"`
		Phase       models.Phase `json:"phase" binding:"required"`
		DueDate     *time.Time   `json:"due_date"`
		Order       int          `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID, _ := middleware.UserID(c)
	task, err := h.taskService.Add(c.Request.Context(), &models.Task{
		ReleaseID:   release.ID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Phase:       req.Phase,
		DueDate:     req.DueDate,
		Order:       req.Order,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// AddDefaults inserts the standard checklist
func (h *TaskHandler) AddDefaults(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.AddDefaultTasks(c.Request.Context(), release.ID, release.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tasks": tasks})
}

func (h *TaskHandler) Stats(c *gin.Context) {
	release, ok := h.param(c)
	if !ok {
		return
	}
	stats, err := h.taskService.Stats(c.Request.Context(), release.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *TaskHandler) Update(c *gin.Context) {
	task, ok := h.task(c)
	if !ok {
		return
	}
	var req struct {
		Title       *string    `json:"title" binding:"omitempty,max=255"`
		Description *string    `json:"description" binding:"omitempty,max=2000"`
		DueDate     *time.Time `json:"due_date"`
		ClearDue    bool       `json:"clear_due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	updated, err := h.taskService.Update(c.Request.Context(), task.ID, services.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDue,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Toggle flips a task between pending and completed
func (h *TaskHandler) Toggle(c *gin.Context) {
	task, ok := h.task(c)
	if !ok {
		return
	}
	toggled, err := h.taskService.ToggleStatus(c.Request.Context(), task.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toggled)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	task, ok := h.task(c)
	if !ok {
		return
	}
	if err := h.taskService.Delete(c.Request.Context(), task.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

