package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignService runs the campaign task queue of a release: pending tasks are promoted
// one at a time to current, the user completes or skips the current task, and a new
// batch is generated when nothing is pending any more. The database is the only state.
type CampaignService struct {
	db        *gorm.DB
	cfg       *config.Config
	generator TaskGenerator
	fallback  TaskGenerator
	group     singleflight.Group
	log       *logger.Logger
}

func NewCampaignService(db *gorm.DB, cfg *config.Config, generator TaskGenerator, log *logger.Logger) *CampaignService {
	if generator == nil {
		generator = NewFallbackGenerator()
	}
	return &CampaignService{
		db:        db,
		cfg:       cfg,
		generator: generator,
		fallback:  NewFallbackGenerator(),
		log:       log,
	}
}

// CampaignView is the aggregate state of a campaign.
type CampaignView struct {
	ReleaseID          uuid.UUID             `json:"release_id"`
	CompletedCount     int                   `json:"completed_count"`
	TotalTasksEstimate int                   `json:"total_tasks_estimate"`
	ProgressPercent    int                   `json:"progress_percent"`
	BatchCount         int                   `json:"batch_count"`
	Current            *models.CampaignTask  `json:"current_task"`
	PendingCount       int                   `json:"pending_count"`
	Pending            []models.CampaignTask `json:"pending"`
	Completed          []models.CampaignTask `json:"completed"`
	Skipped            []models.CampaignTask `json:"skipped"`
}

// ProgressPercent is round(completed/estimate*100) clamped to [0,100], and 0 without an estimate.
func ProgressPercent(completed, estimate int) int {
	if estimate <= 0 || completed <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(estimate) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// Start begins the campaign once setup is complete. It generates the first batch if
// the release has no campaign tasks yet. Calling it again only re-runs promotion.
func (s *CampaignService) Start(ctx context.Context, releaseID uuid.UUID) (*CampaignView, error) {
	profile, err := s.profile(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if !profile.SetupCompleted {
		return nil, invalid("setup", "campaign setup is not completed")
	}
	if err := s.advance(ctx, releaseID); err != nil {
		return nil, err
	}
	s.log.Info("Campaign started", "release_id", releaseID)
	return s.Progress(ctx, releaseID)
}

// Complete marks the current task completed and moves the queue on.
func (s *CampaignService) Complete(ctx context.Context, releaseID, taskID uuid.UUID) (*CampaignView, error) {
	if err := s.finish(ctx, releaseID, taskID, models.CampaignTaskCompleted); err != nil {
		return nil, err
	}
	return s.afterFinish(ctx, releaseID)
}

// Skip marks the current task skipped and moves the queue on. Skipped tasks do not
// count as completed.
func (s *CampaignService) Skip(ctx context.Context, releaseID, taskID uuid.UUID) (*CampaignView, error) {
	if err := s.finish(ctx, releaseID, taskID, models.CampaignTaskSkipped); err != nil {
		return nil, err
	}
	return s.afterFinish(ctx, releaseID)
}

// afterFinish moves the queue on once a transition has committed. If the caller goes
// away while the next batch is generated, the generation promotes on its own and the
// committed transition is still reported as a success.
func (s *CampaignService) afterFinish(ctx context.Context, releaseID uuid.UUID) (*CampaignView, error) {
	if err := s.advance(ctx, releaseID); err != nil {
		if ctx.Err() == nil {
			return nil, err
		}
		s.log.Info("Caller left while the queue was advancing", "release_id", releaseID, "error", err)
		ctx = context.WithoutCancel(ctx)
	}
	return s.Progress(ctx, releaseID)
}

func (s *CampaignService) task(ctx context.Context, releaseID, taskID uuid.UUID) (*models.CampaignTask, error) {
	var t models.CampaignTask
	if err := s.db.WithContext(ctx).First(&t, "id = ? AND release_id = ?", taskID, releaseID).Error; err != nil {
		return nil, translateNotFound(err, "campaign task", taskID.String())
	}
	return &t, nil
}

// finish moves a current task to a terminal status. The update only applies while
// the task is still current at the version that was read.
func (s *CampaignService) finish(ctx context.Context, releaseID, taskID uuid.UUID, to models.CampaignTaskStatus) error {
	t, err := s.task(ctx, releaseID, taskID)
	if err != nil {
		return err
	}
	if t.Status != models.CampaignTaskCurrent {
		return &ConflictError{Message: fmt.Sprintf("campaign task %s is %s, not current", taskID, t.Status)}
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":  to,
		"version": gorm.Expr("version + 1"),
	}
	if to == models.CampaignTaskCompleted {
		updates["completed_at"] = now
	} else {
		updates["skipped_at"] = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CampaignTask{}).
			Where("id = ? AND release_id = ? AND status = ? AND version = ?", t.ID, releaseID, models.CampaignTaskCurrent, t.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Message: fmt.Sprintf("campaign task %s was changed concurrently", taskID)}
		}
		if to == models.CampaignTaskCompleted {
			return tx.Model(&models.ReleaseProfile{}).
				Where("release_id = ?", releaseID).
				UpdateColumn("completed_task_count", gorm.Expr("completed_task_count + 1")).Error
		}
		return nil
	})
	if err != nil {
		if IsConflict(err) {
			return err
		}
		return fmt.Errorf("failed to update campaign task: %w", err)
	}

	s.log.Info("Campaign task finished", "release_id", releaseID, "task_id", taskID, "status", to)
	return nil
}

// advance makes sure the release has a current task: it promotes the oldest pending
// task, and generates a new batch first when nothing is pending.
func (s *CampaignService) advance(ctx context.Context, releaseID uuid.UUID) error {
	promoted, err := s.promote(ctx, releaseID)
	if err != nil || promoted {
		return err
	}
	if err := s.generateBatch(ctx, releaseID); err != nil {
		return err
	}
	_, err = s.promote(ctx, releaseID)
	return err
}

// promote returns true once the release has a current task. It is false only when
// there is neither a current nor a pending task.
func (s *CampaignService) promote(ctx context.Context, releaseID uuid.UUID) (bool, error) {
	db := s.db.WithContext(ctx)
	for attempt := 0; attempt < 3; attempt++ {
		var current int64
		if err := db.Model(&models.CampaignTask{}).
			Where("release_id = ? AND status = ?", releaseID, models.CampaignTaskCurrent).
			Count(&current).Error; err != nil {
			return false, err
		}
		if current > 0 {
			return true, nil
		}

		var next models.CampaignTask
		err := db.Where("release_id = ? AND status = ?", releaseID, models.CampaignTaskPending).
			Order("sequence ASC").
			First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		noCurrent := s.db.Model(&models.CampaignTask{}).Select("1").
			Where("release_id = ? AND status = ?", releaseID, models.CampaignTaskCurrent)
		res := db.Model(&models.CampaignTask{}).
			Where("id = ? AND status = ? AND version = ?", next.ID, models.CampaignTaskPending, next.Version).
			Where("NOT EXISTS (?)", noCurrent).
			Updates(map[string]interface{}{
				"status":  models.CampaignTaskCurrent,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, res.Error
		}
		if res.Error == nil && res.RowsAffected == 1 {
			s.log.Debug("Campaign task promoted", "release_id", releaseID, "task_id", next.ID)
			return true, nil
		}
		// someone else changed the queue; look again
	}
	return false, &ConflictError{Message: "campaign queue is changing, try again"}
}

// generateBatch requests the next batch of tasks. Concurrent requests for the same
// release share one generation. The work runs detached from the caller's
// cancellation so a dropped request never leaves the queue empty.
func (s *CampaignService) generateBatch(ctx context.Context, releaseID uuid.UUID) error {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(releaseID.String(), func() (interface{}, error) {
		return s.runGeneration(detached, releaseID)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CampaignService) runGeneration(ctx context.Context, releaseID uuid.UUID) (int, error) {
	gc, initial, err := s.generationContext(ctx, releaseID)
	if err != nil {
		return 0, err
	}

	tasks, usedFallback := s.generate(ctx, gc, initial)
	n, err := s.persistBatch(ctx, releaseID, tasks, usedFallback)
	if err != nil {
		return 0, err
	}
	// the requester may no longer be waiting to promote
	if _, err := s.promote(ctx, releaseID); err != nil {
		s.log.Warn("Promotion after generation failed", "release_id", releaseID, "error", err)
	}
	return n, nil
}

// generate calls the generator under the configured timeout and falls back to the
// canned tasks on any failure.
func (s *CampaignService) generate(ctx context.Context, gc GenerationContext, initial bool) ([]GeneratedTask, bool) {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	call := func(ctx context.Context, g TaskGenerator) ([]GeneratedTask, error) {
		if initial {
			return g.GenerateInitialStrategy(ctx, gc)
		}
		return g.GenerateNextTasks(ctx, gc)
	}

	tasks, err := runBounded(genCtx, func(ctx context.Context) ([]GeneratedTask, error) { return call(ctx, s.generator) })
	if err == nil {
		tasks = filterGenerated(tasks, gc)
	}
	if err == nil && len(tasks) > 0 {
		return tasks, false
	}
	if err == nil {
		err = errors.New("generator returned no usable tasks")
	}
	s.log.Warn("Task generation failed, using fallback", "release_id", gc.Release.ID, "initial", initial, "error", err)

	tasks, _ = call(ctx, s.fallback)
	return filterGenerated(tasks, gc), true
}

// runBounded returns when fn returns or ctx ends, whichever is first. A generator that
// ignores its context cannot hold up the caller past the deadline.
func runBounded[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, &TimeoutError{Service: "task generator", Err: ctx.Err()}
	}
}

func (s *CampaignService) generationContext(ctx context.Context, releaseID uuid.UUID) (GenerationContext, bool, error) {
	db := s.db.WithContext(ctx)
	gc := GenerationContext{BatchSize: s.cfg.CampaignBatchSize, CurrentPhase: models.PhasePreProduction}

	var release models.Release
	if err := db.First(&release, "id = ?", releaseID).Error; err != nil {
		return gc, false, translateNotFound(err, "release", releaseID.String())
	}
	gc.Release = &release

	profile, err := s.profile(ctx, releaseID)
	if err != nil {
		return gc, false, err
	}
	gc.Profile = profile

	var artist models.ArtistProfile
	if err := db.First(&artist, "user_id = ?", release.UserID).Error; err == nil {
		gc.Artist = &artist
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return gc, false, err
	}

	var all []models.CampaignTask
	if err := db.Where("release_id = ?", releaseID).Order("sequence ASC").Find(&all).Error; err != nil {
		return gc, false, err
	}
	for _, t := range all {
		gc.ExistingTitles = append(gc.ExistingTitles, t.Title)
	}
	if len(all) > 0 {
		gc.CurrentPhase = all[len(all)-1].Phase
	}

	var completed []models.CampaignTask
	err = db.Where("release_id = ? AND status = ?", releaseID, models.CampaignTaskCompleted).
		Order("completed_at DESC, sequence DESC").
		Limit(s.cfg.CampaignSummaryLimit).
		Find(&completed).Error
	if err != nil {
		return gc, false, err
	}
	for _, t := range completed {
		gc.Completed = append(gc.Completed, CompletedTaskSummary{Title: t.Title, Phase: t.Phase})
	}

	return gc, len(all) == 0, nil
}

// persistBatch appends tasks to the queue unless the release gained pending or current
// tasks while the batch was generated, in which case the batch is discarded.
func (s *CampaignService) persistBatch(ctx context.Context, releaseID uuid.UUID, tasks []GeneratedTask, usedFallback bool) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	discarded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.ReleaseProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&profile, "release_id = ?", releaseID).Error; err != nil {
			return translateNotFound(err, "release profile", releaseID.String())
		}

		var actionable int64
		if err := tx.Model(&models.CampaignTask{}).
			Where("release_id = ? AND status IN ?", releaseID, []models.CampaignTaskStatus{models.CampaignTaskPending, models.CampaignTaskCurrent}).
			Count(&actionable).Error; err != nil {
			return err
		}
		if actionable > 0 {
			discarded = true
			return nil
		}

		var maxSeq int
		if err := tx.Model(&models.CampaignTask{}).
			Where("release_id = ?", releaseID).
			Select("COALESCE(MAX(sequence), 0)").
			Row().Scan(&maxSeq); err != nil {
			return err
		}

		batch := profile.BatchCount + 1
		rows := make([]models.CampaignTask, 0, len(tasks))
		for i, t := range tasks {
			rows = append(rows, models.CampaignTask{
				ReleaseID:   releaseID,
				Sequence:    maxSeq + i + 1,
				Batch:       batch,
				Title:       t.Title,
				Description: t.Description,
				Phase:       t.Phase,
				Status:      models.CampaignTaskPending,
				Category:    t.Category,
				Platform:    t.Platform,
				Rationale:   t.Rationale,
				Fallback:    usedFallback,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		generated := profile.GeneratedTaskCount + len(rows)
		return tx.Model(&profile).Updates(map[string]interface{}{
			"generated_task_count": generated,
			"batch_count":          batch,
			"total_tasks_estimate": generated + s.cfg.CampaignEstimateIncrement,
		}).Error
	})
	if err != nil {
		if IsNotFound(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to store generated tasks: %w", err)
	}
	if discarded {
		s.log.Info("Discarded generated batch, queue is no longer empty", "release_id", releaseID, "tasks", len(tasks))
		return 0, nil
	}
	s.log.Info("Campaign batch stored", "release_id", releaseID, "tasks", len(tasks), "fallback", usedFallback)
	return len(tasks), nil
}

// Swap replaces the current task in place with a generated alternative.
func (s *CampaignService) Swap(ctx context.Context, releaseID, taskID uuid.UUID) (*models.CampaignTask, error) {
	t, err := s.task(ctx, releaseID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.CampaignTaskCurrent {
		return nil, &ConflictError{Message: fmt.Sprintf("campaign task %s is %s, not current", taskID, t.Status)}
	}
	gc, _, err := s.generationContext(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	genCtx, cancel := context.WithTimeout(detached, s.cfg.GenerationTimeout)
	variant, err := runBounded(genCtx, func(ctx context.Context) (GeneratedTask, error) {
		return s.generator.GenerateTaskVariant(ctx, gc, *t)
	})
	cancel()
	usedFallback := false
	if err == nil {
		variant = variant.normalize(t.Phase)
		if titleSet(gc.ExistingTitles)[normalizeTitle(variant.Title)] || variant.Title == "" {
			err = errors.New("variant repeats an existing task")
		}
	}
	if err != nil {
		s.log.Warn("Task variant generation failed, using fallback", "release_id", releaseID, "task_id", taskID, "error", err)
		variant, _ = s.fallback.GenerateTaskVariant(detached, gc, *t)
		usedFallback = true
	}

	res := s.db.WithContext(detached).Model(&models.CampaignTask{}).
		Where("id = ? AND status = ? AND version = ?", t.ID, models.CampaignTaskCurrent, t.Version).
		Updates(map[string]interface{}{
			"title":       variant.Title,
			"description": variant.Description,
			"category":    variant.Category,
			"platform":    variant.Platform,
			"rationale":   variant.Rationale,
			"fallback":    usedFallback,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to swap campaign task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("campaign task %s was changed concurrently", taskID)}
	}
	return s.task(ctx, releaseID, taskID)
}

// RequeueSkipped puts a skipped task back at the end of the queue.
func (s *CampaignService) RequeueSkipped(ctx context.Context, releaseID, taskID uuid.UUID) (*CampaignView, error) {
	t, err := s.task(ctx, releaseID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.CampaignTaskSkipped {
		return nil, &ConflictError{Message: fmt.Sprintf("campaign task %s is %s, not skipped", taskID, t.Status)}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		if err := tx.Model(&models.CampaignTask{}).
			Where("release_id = ?", releaseID).
			Select("COALESCE(MAX(sequence), 0)").
			Row().Scan(&maxSeq); err != nil {
			return err
		}
		res := tx.Model(&models.CampaignTask{}).
			Where("id = ? AND status = ? AND version = ?", t.ID, models.CampaignTaskSkipped, t.Version).
			Updates(map[string]interface{}{
				"status":     models.CampaignTaskPending,
				"sequence":   maxSeq + 1,
				"skipped_at": nil,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Message: fmt.Sprintf("campaign task %s was changed concurrently", taskID)}
		}
		return nil
	})
	if err != nil {
		if IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to requeue campaign task: %w", err)
	}

	if _, err := s.promote(ctx, releaseID); err != nil {
		return nil, err
	}
	return s.Progress(ctx, releaseID)
}

// Progress returns the campaign's aggregate view. A pending task left without a
// current one is promoted first.
func (s *CampaignService) Progress(ctx context.Context, releaseID uuid.UUID) (*CampaignView, error) {
	profile, err := s.profile(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.promote(ctx, releaseID); err != nil && !IsConflict(err) {
		return nil, fmt.Errorf("failed to promote campaign task: %w", err)
	}
	var tasks []models.CampaignTask
	if err := s.db.WithContext(ctx).Where("release_id = ?", releaseID).Order("sequence ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaign tasks: %w", err)
	}

	view := &CampaignView{
		ReleaseID:          releaseID,
		CompletedCount:     profile.CompletedTaskCount,
		TotalTasksEstimate: profile.TotalTasksEstimate,
		ProgressPercent:    ProgressPercent(profile.CompletedTaskCount, profile.TotalTasksEstimate),
		BatchCount:         profile.BatchCount,
		Pending:            []models.CampaignTask{},
		Completed:          []models.CampaignTask{},
		Skipped:            []models.CampaignTask{},
	}
	for i := range tasks {
		switch tasks[i].Status {
		case models.CampaignTaskCurrent:
			view.Current = &tasks[i]
		case models.CampaignTaskPending:
			view.Pending = append(view.Pending, tasks[i])
		case models.CampaignTaskCompleted:
			view.Completed = append(view.Completed, tasks[i])
		case models.CampaignTaskSkipped:
			view.Skipped = append(view.Skipped, tasks[i])
		}
	}
	view.PendingCount = len(view.Pending)
	return view, nil
}

func (s *CampaignService) profile(ctx context.Context, releaseID uuid.UUID) (*models.ReleaseProfile, error) {
	var p models.ReleaseProfile
	if err := s.db.WithContext(ctx).First(&p, "release_id = ?", releaseID).Error; err != nil {
		return nil, translateNotFound(err, "release profile", releaseID.String())
	}
	return &p, nil
}
