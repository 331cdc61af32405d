package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"gorm.io/gorm"
)

type TaskService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskService(db *gorm.DB, log *logger.Logger) *TaskService {
	return &TaskService{db: db, log: log}
}

// TaskStats summarizes the checklist of one release.
type TaskStats struct {
	Total       int                  `json:"total"`
	Completed   int                  `json:"completed"`
	Pending     int                  `json:"pending"`
	ByPhase     map[models.Phase]int `json:"by_phase"`
	HealthScore int                  `json:"health_score"`
}

// TaskUpdate carries the editable fields of a checklist task. Nil means unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	ClearDue    bool
}

func (s *TaskService) ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Order("sort_order ASC, created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) ListByPhase(ctx context.Context, releaseID uuid.UUID, phase models.Phase) ([]models.Task, error) {
	if !phase.Valid() {
		return nil, invalid("phase", fmt.Sprintf("unknown phase %q", phase))
	}
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("release_id = ? AND phase = ?", releaseID, phase).
		Order("sort_order ASC, created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Add persists a single task as pending. A zero Order is replaced by the next free
// position in the release.
func (s *TaskService) Add(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.Title == "" {
		return nil, invalid("title", "is required")
	}
	if !task.Phase.Valid() {
		return nil, invalid("phase", fmt.Sprintf("unknown phase %q", task.Phase))
	}
	task.ID = uuid.Nil
	task.Status = models.TaskStatusPending

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if task.Order == 0 {
			var maxOrder sql.NullInt64
			if err := tx.Model(&models.Task{}).
				Where("release_id = ?", task.ReleaseID).
				Select("MAX(sort_order)").
				Row().Scan(&maxOrder); err != nil {
				return err
			}
			if maxOrder.Valid {
				task.Order = int(maxOrder.Int64) + 1
			}
		}
		return tx.Create(task).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// AddDefaultTasks inserts the default checklist for a release. A release gets the
// checklist at most once.
func (s *TaskService) AddDefaultTasks(ctx context.Context, releaseID, userID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tasks, err = insertDefaultTasks(tx, releaseID, userID)
		return err
	})
	if err != nil {
		if IsConflict(err) || IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create default tasks: %w", err)
	}
	s.log.Info("Default tasks created", "release_id", releaseID, "count", len(tasks))
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "task", id.String())
	}
	return &task, nil
}

// ToggleStatus flips a task between pending and completed.
func (s *TaskService) ToggleStatus(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", id).Error; err != nil {
			return err
		}
		next := models.TaskStatusCompleted
		if task.Status == models.TaskStatusCompleted {
			next = models.TaskStatusPending
		}
		if err := tx.Model(&task).Update("status", next).Error; err != nil {
			return err
		}
		task.Status = next
		return nil
	})
	if err != nil {
		return nil, translateNotFound(err, "task", id.String())
	}
	return &task, nil
}

func (s *TaskService) Update(ctx context.Context, id uuid.UUID, in TaskUpdate) (*models.Task, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		if *in.Title == "" {
			return nil, invalid("title", "must not be empty")
		}
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.ClearDue {
		updates["due_date"] = nil
	} else if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return task, nil
	}
	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("task", id.String())
	}
	return nil
}

func (s *TaskService) Stats(ctx context.Context, releaseID uuid.UUID) (*TaskStats, error) {
	tasks, err := s.ListByRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	return computeTaskStats(tasks), nil
}

func computeTaskStats(tasks []models.Task) *TaskStats {
	stats := &TaskStats{Total: len(tasks), ByPhase: make(map[models.Phase]int, len(models.Phases))}
	for _, p := range models.Phases {
		stats.ByPhase[p] = 0
	}
	for _, t := range tasks {
		stats.ByPhase[t.Phase]++
		if t.Status == models.TaskStatusCompleted {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.HealthScore = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats
}
