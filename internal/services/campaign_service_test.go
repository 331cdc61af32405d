package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// scriptedGenerator hands out numbered tasks unless fail or block is set.
type scriptedGenerator struct {
	mu           sync.Mutex
	n            int
	initialCalls int
	nextCalls    int
	last         GenerationContext
	fail         error
	block        bool
	delay        time.Duration
	titles       []string
}

func (g *scriptedGenerator) produce(ctx context.Context, gc GenerationContext) ([]GeneratedTask, error) {
	g.mu.Lock()
	g.last = gc
	fail, block, delay, titles := g.fail, g.block, g.delay, g.titles
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail != nil {
		return nil, fail
	}
	if titles != nil {
		out := make([]GeneratedTask, 0, len(titles))
		for _, t := range titles {
			out = append(out, GeneratedTask{Title: t, Phase: models.PhasePromotion})
		}
		return out, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GeneratedTask, 0, gc.BatchSize)
	for i := 0; i < gc.BatchSize; i++ {
		g.n++
		out = append(out, GeneratedTask{
			Title:       fmt.Sprintf("Task %d", g.n),
			Description: "do it",
			Phase:       models.PhasePromotion,
			Category:    models.CategorySocial,
			Platform:    models.PlatformTikTok,
		})
	}
	return out, nil
}

func (g *scriptedGenerator) GenerateInitialStrategy(ctx context.Context, gc GenerationContext) ([]GeneratedTask, error) {
	g.mu.Lock()
	g.initialCalls++
	g.mu.Unlock()
	return g.produce(ctx, gc)
}

func (g *scriptedGenerator) GenerateNextTasks(ctx context.Context, gc GenerationContext) ([]GeneratedTask, error) {
	g.mu.Lock()
	g.nextCalls++
	g.mu.Unlock()
	return g.produce(ctx, gc)
}

func (g *scriptedGenerator) GenerateTaskVariant(ctx context.Context, gc GenerationContext, task models.CampaignTask) (GeneratedTask, error) {
	tasks, err := g.produce(ctx, gc)
	if err != nil {
		return GeneratedTask{}, err
	}
	return tasks[0], nil
}

func seedCampaign(t *testing.T, db *gorm.DB, setupDone bool) *models.Release {
	t.Helper()
	u := seedUser(t, db)
	r := seedRelease(t, db, u.ID)
	require.NoError(t, db.Create(&models.ReleaseProfile{ReleaseID: r.ID, SetupCompleted: setupDone}).Error)
	return r
}

func campaignTasks(t *testing.T, db *gorm.DB, releaseID uuid.UUID) []models.CampaignTask {
	t.Helper()
	var tasks []models.CampaignTask
	require.NoError(t, db.Where("release_id = ?", releaseID).Order("sequence ASC").Find(&tasks).Error)
	return tasks
}

func countCurrent(tasks []models.CampaignTask) int {
	n := 0
	for _, task := range tasks {
		if task.Status == models.CampaignTaskCurrent {
			n++
		}
	}
	return n
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		completed, estimate, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 13, 0},
		{1, 13, 8},
		{13, 13, 100},
		{20, 13, 100},
		{1, 3, 33},
		{2, 3, 67},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.completed, tt.estimate), func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressPercent(tt.completed, tt.estimate))
		})
	}
}

func TestCampaignService_StartRequiresSetup(t *testing.T) {
	db := newTestDB(t)
	gen := &scriptedGenerator{}
	svc := NewCampaignService(db, testConfig(), gen, nopLog)
	r := seedCampaign(t, db, false)

	_, err := svc.Start(bg, r.ID)
	assert.True(t, IsValidation(err))
	assert.Empty(t, campaignTasks(t, db, r.ID))
	assert.Zero(t, gen.initialCalls)

	_, err = svc.Start(bg, uuid.New())
	assert.True(t, IsNotFound(err))
}

func TestCampaignService_StartPromotesFirstTask(t *testing.T) {
	db := newTestDB(t)
	gen := &scriptedGenerator{}
	svc := NewCampaignService(db, testConfig(), gen, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	assert.Equal(t, "Task 1", view.Current.Title)
	assert.Equal(t, 1, view.Current.Sequence)
	assert.Equal(t, 2, view.PendingCount)
	assert.Equal(t, 1, view.BatchCount)
	assert.Equal(t, 13, view.TotalTasksEstimate)
	assert.Equal(t, 0, view.ProgressPercent)
	assert.Equal(t, 1, gen.initialCalls)

	again, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Current.ID, again.Current.ID)
	assert.Len(t, campaignTasks(t, db, r.ID), 3)
	assert.Equal(t, 1, gen.initialCalls)
}

func TestCampaignService_CompleteAdvancesQueue(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, testConfig(), &scriptedGenerator{}, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	first := view.Current

	view, err = svc.Complete(bg, r.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CompletedCount)
	assert.Equal(t, 8, view.ProgressPercent)
	require.NotNil(t, view.Current)
	assert.Equal(t, 2, view.Current.Sequence)
	require.Len(t, view.Completed, 1)
	assert.Equal(t, first.ID, view.Completed[0].ID)
	assert.NotNil(t, view.Completed[0].CompletedAt)
	assert.Greater(t, view.Completed[0].Version, first.Version)
	assert.Equal(t, 1, countCurrent(campaignTasks(t, db, r.ID)))
}

func TestCampaignService_CompleteRejectsNonCurrent(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, testConfig(), &scriptedGenerator{}, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	pending := view.Pending[0]

	_, err = svc.Complete(bg, r.ID, pending.ID)
	assert.True(t, IsConflict(err))
	_, err = svc.Skip(bg, r.ID, pending.ID)
	assert.True(t, IsConflict(err))

	var reloaded models.CampaignTask
	require.NoError(t, db.First(&reloaded, "id = ?", pending.ID).Error)
	assert.Equal(t, models.CampaignTaskPending, reloaded.Status)
	assert.Equal(t, pending.Version, reloaded.Version)

	_, err = svc.Complete(bg, r.ID, uuid.New())
	assert.True(t, IsNotFound(err))

	// a task of another release is not found through this release
	other := seedCampaign(t, db, true)
	_, err = svc.Complete(bg, other.ID, view.Current.ID)
	assert.True(t, IsNotFound(err))
}

func TestCampaignService_ConcurrentCompleteOneWins(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, testConfig(), &scriptedGenerator{}, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	current := view.Current.ID

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Complete(bg, r.ID, current)
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case IsConflict(err):
			conflicts++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)

	tasks := campaignTasks(t, db, r.ID)
	assert.Equal(t, 1, countCurrent(tasks))

	var profile models.ReleaseProfile
	require.NoError(t, db.First(&profile, "release_id = ?", r.ID).Error)
	assert.Equal(t, 1, profile.CompletedTaskCount)
}

func TestCampaignService_ExhaustionGeneratesNextBatch(t *testing.T) {
	db := newTestDB(t)
	gen := &scriptedGenerator{}
	svc := NewCampaignService(db, testConfig(), gen, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		view, err = svc.Complete(bg, r.ID, view.Current.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, gen.nextCalls)
	require.NotNil(t, view.Current)
	assert.Equal(t, "Task 4", view.Current.Title)
	assert.Equal(t, 4, view.Current.Sequence)
	assert.Equal(t, 2, view.Current.Batch)
	assert.Equal(t, 2, view.BatchCount)
	assert.Equal(t, 3, view.CompletedCount)
	assert.Equal(t, 16, view.TotalTasksEstimate)
	assert.Equal(t, 19, view.ProgressPercent)

	gc := gen.last
	require.Len(t, gc.Completed, 3)
	assert.Equal(t, "Task 3", gc.Completed[0].Title)
	assert.Equal(t, "Task 1", gc.Completed[2].Title)
	assert.Len(t, gc.ExistingTitles, 3)
	assert.Equal(t, models.PhasePromotion, gc.CurrentPhase)
	require.NotNil(t, gc.Profile)
	assert.Equal(t, r.ID, gc.Release.ID)
}

func TestCampaignService_SkipAndRequeue(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, testConfig(), &scriptedGenerator{}, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	skipped := view.Current

	view, err = svc.Skip(bg, r.ID, skipped.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.CompletedCount)
	require.Len(t, view.Skipped, 1)
	assert.NotNil(t, view.Skipped[0].SkippedAt)
	assert.Equal(t, 2, view.Current.Sequence)

	_, err = svc.RequeueSkipped(bg, r.ID, view.Current.ID)
	assert.True(t, IsConflict(err))

	view, err = svc.RequeueSkipped(bg, r.ID, skipped.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Skipped)
	require.Len(t, view.Pending, 2)
	last := view.Pending[len(view.Pending)-1]
	assert.Equal(t, skipped.ID, last.ID)
	assert.Equal(t, 4, last.Sequence)
	assert.Nil(t, last.SkippedAt)
	assert.Equal(t, 2, view.Current.Sequence)
}

func TestCampaignService_FallbackOnGeneratorError(t *testing.T) {
	db := newTestDB(t)
	gen := &scriptedGenerator{fail: &UpstreamError{Service: "task generator", Err: errors.New("boom")}}
	svc := NewCampaignService(db, testConfig(), gen, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	assert.Equal(t, "Define your campaign goal", view.Current.Title)
	assert.True(t, view.Current.Fallback)
	assert.Equal(t, models.PhasePreProduction, view.Current.Phase)
	assert.Equal(t, 2, view.PendingCount)
}

func TestCampaignService_FallbackOnTimeout(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.GenerationTimeout = 50 * time.Millisecond
	svc := NewCampaignService(db, cfg, &scriptedGenerator{block: true}, nopLog)
	r := seedCampaign(t, db, true)

	start := time.Now()
	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.NotNil(t, view.Current)
	assert.True(t, view.Current.Fallback)
}

func TestCampaignService_DuplicateTitlesFallBack(t *testing.T) {
	db := newTestDB(t)
	gen := &scriptedGenerator{}
	svc := NewCampaignService(db, testConfig(), gen, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)

	gen.mu.Lock()
	gen.titles = []string{"Task 1", " task 2 ", "TASK 3"}
	gen.mu.Unlock()

	for i := 0; i < 3; i++ {
		view, err = svc.Complete(bg, r.ID, view.Current.ID)
		require.NoError(t, err)
	}
	require.NotNil(t, view.Current)
	assert.True(t, view.Current.Fallback)
	assert.NotContains(t, []string{"Task 1", "Task 2", "Task 3"}, view.Current.Title)
}

func TestCampaignService_CompleteSurvivesCallerCancel(t *testing.T) {
	db := newTestDB(t)
	gen := &scriptedGenerator{}
	svc := NewCampaignService(db, testConfig(), gen, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		view, err = svc.Complete(bg, r.ID, view.Current.ID)
		require.NoError(t, err)
	}
	require.NotNil(t, view.Current)
	require.Zero(t, view.PendingCount)

	gen.mu.Lock()
	gen.delay = 300 * time.Millisecond
	gen.mu.Unlock()

	ctx, cancel := context.WithTimeout(bg, 50*time.Millisecond)
	defer cancel()
	view, err = svc.Complete(ctx, r.ID, view.Current.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.CompletedCount)

	// the detached generation stores the batch and promotes its first task
	require.Eventually(t, func() bool {
		var tasks []models.CampaignTask
		if err := db.Where("release_id = ?", r.ID).Find(&tasks).Error; err != nil {
			return false
		}
		return len(tasks) == 6 && countCurrent(tasks) == 1
	}, 3*time.Second, 20*time.Millisecond)

	view, err = svc.Progress(bg, r.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	assert.Equal(t, "Task 4", view.Current.Title)
	assert.Equal(t, 2, view.PendingCount)

	_, err = svc.Complete(bg, r.ID, view.Current.ID)
	require.NoError(t, err)
}

func TestCampaignService_ProgressPromotesStrandedTask(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, testConfig(), &scriptedGenerator{}, nopLog)
	r := seedCampaign(t, db, true)

	n, err := svc.persistBatch(bg, r.ID, []GeneratedTask{{Title: "Stranded", Phase: models.PhasePromotion}}, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	view, err := svc.Progress(bg, r.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Current)
	assert.Equal(t, "Stranded", view.Current.Title)
}

func TestCampaignService_StaleBatchDiscarded(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, testConfig(), &scriptedGenerator{}, nopLog)
	r := seedCampaign(t, db, true)

	_, err := svc.Start(bg, r.ID)
	require.NoError(t, err)

	n, err := svc.persistBatch(bg, r.ID, []GeneratedTask{{Title: "Late task", Phase: models.PhasePromotion}}, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, campaignTasks(t, db, r.ID), 3)

	var profile models.ReleaseProfile
	require.NoError(t, db.First(&profile, "release_id = ?", r.ID).Error)
	assert.Equal(t, 1, profile.BatchCount)
	assert.Equal(t, 3, profile.GeneratedTaskCount)
}

func TestCampaignService_Swap(t *testing.T) {
	db := newTestDB(t)
	svc := NewCampaignService(db, testConfig(), &scriptedGenerator{}, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)
	current := view.Current

	swapped, err := svc.Swap(bg, r.ID, current.ID)
	require.NoError(t, err)
	assert.Equal(t, current.ID, swapped.ID)
	assert.Equal(t, "Task 4", swapped.Title)
	assert.Equal(t, models.CampaignTaskCurrent, swapped.Status)
	assert.Equal(t, current.Sequence, swapped.Sequence)
	assert.Equal(t, current.Version+1, swapped.Version)

	_, err = svc.Swap(bg, r.ID, view.Pending[0].ID)
	assert.True(t, IsConflict(err))
}

func TestCampaignService_SwapFallsBackToCatalog(t *testing.T) {
	db := newTestDB(t)
	gen := &scriptedGenerator{}
	svc := NewCampaignService(db, testConfig(), gen, nopLog)
	r := seedCampaign(t, db, true)

	view, err := svc.Start(bg, r.ID)
	require.NoError(t, err)

	gen.mu.Lock()
	gen.fail = errors.New("unavailable")
	gen.mu.Unlock()

	swapped, err := svc.Swap(bg, r.ID, view.Current.ID)
	require.NoError(t, err)
	assert.True(t, swapped.Fallback)
	assert.Equal(t, models.PhasePromotion, swapped.Phase)
	assert.Equal(t, "Announce the release date", swapped.Title)
}
