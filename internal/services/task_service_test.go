package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultTasks(t *testing.T) {
	releaseID, userID := uuid.New(), uuid.New()
	tasks := GenerateDefaultTasks(releaseID, userID)

	require.Len(t, tasks, 16)

	perPhase := map[models.Phase]int{}
	for i, task := range tasks {
		assert.Equal(t, i, task.Order)
		assert.Equal(t, models.TaskStatusPending, task.Status)
		assert.True(t, task.IsSystemGenerated)
		assert.Equal(t, releaseID, task.ReleaseID)
		assert.Equal(t, userID, task.UserID)
		assert.Equal(t, defaultTaskTemplates[i].Title, task.Title)
		perPhase[task.Phase]++
	}
	assert.Equal(t, map[models.Phase]int{
		models.PhasePreProduction: 3,
		models.PhaseProduction:    4,
		models.PhasePromotion:     5,
		models.PhaseDistribution:  4,
	}, perPhase)

	// phases appear as contiguous blocks in lifecycle order
	phaseIdx := 0
	for _, task := range tasks {
		for models.Phases[phaseIdx] != task.Phase {
			phaseIdx++
			require.Less(t, phaseIdx, len(models.Phases))
		}
	}

	again := GenerateDefaultTasks(releaseID, userID)
	assert.Equal(t, tasks, again)
}

func TestTaskService_ToggleUnknownID(t *testing.T) {
	svc := NewTaskService(newTestDB(t), nopLog)

	_, err := svc.ToggleStatus(bg, uuid.New())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestTaskService_ToggleAllDefaults(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	release := seedRelease(t, db, user.ID)
	svc := NewTaskService(db, nopLog)

	tasks, err := svc.AddDefaultTasks(bg, release.ID, user.ID)
	require.NoError(t, err)

	for _, task := range tasks {
		toggled, err := svc.ToggleStatus(bg, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusCompleted, toggled.Status)
	}

	stats, err := svc.Stats(bg, release.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, stats.Total)
	assert.Equal(t, 16, stats.Completed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 100, stats.HealthScore)

	back, err := svc.ToggleStatus(bg, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, back.Status)
}

func TestTaskService_DefaultTasksOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	release := seedRelease(t, db, user.ID)
	svc := NewTaskService(db, nopLog)

	_, err := svc.AddDefaultTasks(bg, release.ID, user.ID)
	require.NoError(t, err)
	_, err = svc.AddDefaultTasks(bg, release.ID, user.ID)
	assert.True(t, IsConflict(err))

	stats, err := svc.Stats(bg, release.ID)
	require.NoError(t, err)
	assert.Equal(t, 16, stats.Total)

	_, err = svc.AddDefaultTasks(bg, uuid.New(), user.ID)
	assert.True(t, IsNotFound(err))

	created, err := NewReleaseService(db, nil, nopLog).Create(bg, user.ID, ReleaseDraft{
		Title: "Afterglow", ArtistName: "Nova", Type: models.ReleaseTypeEP, WithDefaultTasks: true,
	})
	require.NoError(t, err)
	_, err = svc.AddDefaultTasks(bg, created.ID, user.ID)
	assert.True(t, IsConflict(err))
	tasks, err := svc.ListByRelease(bg, created.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 16)
}

func TestTaskService_ListByPhaseAndOrder(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	release := seedRelease(t, db, user.ID)
	svc := NewTaskService(db, nopLog)

	_, err := svc.AddDefaultTasks(bg, release.ID, user.ID)
	require.NoError(t, err)

	promo, err := svc.ListByPhase(bg, release.ID, models.PhasePromotion)
	require.NoError(t, err)
	require.Len(t, promo, 5)
	assert.Equal(t, "Write press release", promo[0].Title)

	added, err := svc.Add(bg, &models.Task{ReleaseID: release.ID, UserID: user.ID, Title: "Book release show", Phase: models.PhasePromotion})
	require.NoError(t, err)
	assert.Equal(t, 16, added.Order)
	assert.Equal(t, models.TaskStatusPending, added.Status)

	_, err = svc.ListByPhase(bg, release.ID, models.Phase("mastering"))
	assert.True(t, IsValidation(err))
}

func TestTaskService_UpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	release := seedRelease(t, db, user.ID)
	svc := NewTaskService(db, nopLog)

	task, err := svc.Add(bg, &models.Task{ReleaseID: release.ID, UserID: user.ID, Title: "Draft", Phase: models.PhasePreProduction})
	require.NoError(t, err)

	title := "Final"
	updated, err := svc.Update(bg, task.ID, TaskUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)

	empty := ""
	_, err = svc.Update(bg, task.ID, TaskUpdate{Title: &empty})
	assert.True(t, IsValidation(err))

	require.NoError(t, svc.Delete(bg, task.ID))
	assert.True(t, IsNotFound(svc.Delete(bg, task.ID)))
}

func TestComputeTaskStats_Empty(t *testing.T) {
	stats := computeTaskStats(nil)
	assert.Equal(t, 0, stats.HealthScore)
	assert.Len(t, stats.ByPhase, 4)
}
