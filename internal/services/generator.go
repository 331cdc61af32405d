package services

import (
	"context"
	"strings"

	"github.com/releasedesk/backend/internal/models"
)

// GeneratedTask is a campaign task proposed by a TaskGenerator, before it is stored.
type GeneratedTask struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Phase       models.Phase        `json:"phase"`
	Category    models.TaskCategory `json:"category"`
	Platform    models.TaskPlatform `json:"platform"`
	Rationale   string              `json:"rationale"`
}

// CompletedTaskSummary is the part of a finished task that is fed back into generation.
type CompletedTaskSummary struct {
	Title string       `json:"title"`
	Phase models.Phase `json:"phase"`
}

// GenerationContext is everything a generator may use to propose tasks. Artist may be nil.
type GenerationContext struct {
	Release        *models.Release
	Profile        *models.ReleaseProfile
	Artist         *models.ArtistProfile
	CurrentPhase   models.Phase
	Completed      []CompletedTaskSummary
	ExistingTitles []string
	BatchSize      int
}

// TaskGenerator proposes campaign tasks.
type TaskGenerator interface {
	// GenerateInitialStrategy proposes the first batch for a freshly set up campaign.
	GenerateInitialStrategy(ctx context.Context, gc GenerationContext) ([]GeneratedTask, error)
	// GenerateNextTasks proposes the next batch once the previous one is used up.
	GenerateNextTasks(ctx context.Context, gc GenerationContext) ([]GeneratedTask, error)
	// GenerateTaskVariant proposes a replacement for a task the user wants swapped.
	GenerateTaskVariant(ctx context.Context, gc GenerationContext, task models.CampaignTask) (GeneratedTask, error)
}

// normalize coerces a generated task into the closed category/platform/phase sets.
func (t GeneratedTask) normalize(fallbackPhase models.Phase) GeneratedTask {
	if !t.Phase.Valid() {
		t.Phase = fallbackPhase
	}
	if !t.Category.Valid() {
		t.Category = models.CategoryPlanning
	}
	if !t.Platform.Valid() {
		t.Platform = models.PlatformGeneral
	}
	t.Title = truncateRunes(strings.TrimSpace(t.Title), 255)
	t.Description = truncateRunes(t.Description, 2000)
	t.Rationale = truncateRunes(t.Rationale, 1000)
	return t
}

// filterGenerated normalizes tasks, drops duplicates and caps the batch size.
func filterGenerated(tasks []GeneratedTask, gc GenerationContext) []GeneratedTask {
	phase := gc.CurrentPhase
	if !phase.Valid() {
		phase = models.PhasePreProduction
	}
	used := titleSet(gc.ExistingTitles)
	out := make([]GeneratedTask, 0, len(tasks))
	for _, t := range tasks {
		t = t.normalize(phase)
		key := normalizeTitle(t.Title)
		if key == "" || used[key] {
			continue
		}
		used[key] = true
		out = append(out, t)
		if len(out) == batchSize(gc) {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func titleSet(titles []string) map[string]bool {
	set := make(map[string]bool, len(titles))
	for _, t := range titles {
		set[normalizeTitle(t)] = true
	}
	return set
}
