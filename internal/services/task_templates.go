package services

import (
	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// taskTemplate is a blueprint for one default checklist task.
type taskTemplate struct {
	Title       string
	Description string
	Phase       models.Phase
}

// defaultTaskTemplates is the fixed release checklist, in display order.
var defaultTaskTemplates = []taskTemplate{
	// pre-production
	{Title: "Finalize song selection", Description: "Lock the tracklist and running order", Phase: models.PhasePreProduction},
	{Title: "Book studio time", Description: "Reserve recording and mixing sessions", Phase: models.PhasePreProduction},
	{Title: "Set release budget", Description: "Plan spend for production, artwork and promotion", Phase: models.PhasePreProduction},

	// production
	{Title: "Record tracks", Description: "Track all vocals and instruments", Phase: models.PhaseProduction},
	{Title: "Mix tracks", Description: "Get final mixes approved", Phase: models.PhaseProduction},
	{Title: "Master tracks", Description: "Master for streaming loudness targets", Phase: models.PhaseProduction},
	{Title: "Create cover artwork", Description: "3000x3000 px artwork that meets store guidelines", Phase: models.PhaseProduction},

	// promotion
	{Title: "Write press release", Description: "One page story, credits and links", Phase: models.PhasePromotion},
	{Title: "Plan social media content", Description: "Teasers, snippets and a posting calendar", Phase: models.PhasePromotion},
	{Title: "Pitch to playlists", Description: "Submit to editorial and independent curators", Phase: models.PhasePromotion},
	{Title: "Contact blogs and press", Description: "Send the press kit to relevant outlets", Phase: models.PhasePromotion},
	{Title: "Shoot promo video", Description: "Music video, visualizer or short-form clips", Phase: models.PhasePromotion},

	// distribution
	{Title: "Choose distributor", Description: "Pick a distributor and set up the account", Phase: models.PhaseDistribution},
	{Title: "Register with PRO", Description: "Register songs with your performing rights organization", Phase: models.PhaseDistribution},
	{Title: "Upload to distributor", Description: "Upload audio, artwork and metadata", Phase: models.PhaseDistribution},
	{Title: "Set up pre-save link", Description: "Create a pre-save campaign for release day", Phase: models.PhaseDistribution},
}

// GenerateDefaultTasks builds the default checklist for a release without touching
// the database. Order is the template index.
func GenerateDefaultTasks(releaseID, userID uuid.UUID) []models.Task {
	tasks := make([]models.Task, 0, len(defaultTaskTemplates))
	for i, tpl := range defaultTaskTemplates {
		tasks = append(tasks, models.Task{
			ReleaseID:         releaseID,
			UserID:            userID,
			Title:             tpl.Title,
			Description:       tpl.Description,
			Phase:             tpl.Phase,
			Status:            models.TaskStatusPending,
			IsSystemGenerated: true,
			Order:             i,
		})
	}
	return tasks
}

// insertDefaultTasks writes the default checklist inside tx. The release row is locked
// so concurrent callers cannot both insert it.
func insertDefaultTasks(tx *gorm.DB, releaseID, userID uuid.UUID) ([]models.Task, error) {
	var release models.Release
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&release, "id = ?", releaseID).Error; err != nil {
		return nil, translateNotFound(err, "release", releaseID.String())
	}
	var existing int64
	if err := tx.Model(&models.Task{}).
		Where("release_id = ? AND is_system_generated = ?", releaseID, true).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, &ConflictError{Message: "release already has the default checklist"}
	}
	tasks := GenerateDefaultTasks(releaseID, userID)
	if err := tx.Create(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}
