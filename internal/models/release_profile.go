package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wizard steps. SetupStep on a profile is the next step the user has to fill in.
const (
	StepSongIntake     = 1
	StepTargetAudience = 2
	StepBudgetTimeline = 3
	StepGoals          = 4
	StepNarrative      = 5
)

type SongIntake struct {
	Genre           string   `json:"genre" validate:"required,max=100"`
	SubGenres       []string `json:"sub_genres,omitempty" validate:"max=5,dive,max=100"`
	Mood            string   `json:"mood" validate:"required,max=100"`
	Tempo           string   `json:"tempo,omitempty" validate:"omitempty,oneof=slow mid fast"`
	Themes          []string `json:"themes,omitempty" validate:"max=10,dive,max=200"`
	Story           string   `json:"story,omitempty" validate:"max=4000"`
	SimilarArtists  []string `json:"similar_artists,omitempty" validate:"max=10,dive,max=100"`
	HasMusicVideo   bool     `json:"has_music_video"`
	HasExplicitText bool     `json:"has_explicit_text"`
}

type TargetAudience struct {
	AgeMin        int      `json:"age_min" validate:"gte=0,lte=100"`
	AgeMax        int      `json:"age_max" validate:"gte=0,lte=100,gtefield=AgeMin"`
	Regions       []string `json:"regions" validate:"required,min=1,max=20,dive,max=100"`
	Platforms     []string `json:"platforms" validate:"required,min=1,dive,oneof=instagram tiktok youtube spotify apple_music email press general"`
	Interests     []string `json:"interests,omitempty" validate:"max=20,dive,max=100"`
	ExistingFans  int      `json:"existing_fans" validate:"gte=0"`
	ListenerHabit string   `json:"listener_habit,omitempty" validate:"max=500"`
}

type BudgetTimeline struct {
	BudgetAmount      int        `json:"budget_amount" validate:"gte=0"`
	Currency          string     `json:"currency" validate:"required,len=3"`
	TargetReleaseDate *time.Time `json:"target_release_date,omitempty"`
	WeeksOfPromotion  int        `json:"weeks_of_promotion" validate:"gte=1,lte=52"`
	HoursPerWeek      int        `json:"hours_per_week" validate:"gte=0,lte=168"`
	HasTeam           bool       `json:"has_team"`
}

type Goals struct {
	Primary        string   `json:"primary" validate:"required,oneof=streams followers playlists press sales live"`
	Secondary      []string `json:"secondary,omitempty" validate:"max=5,dive,max=100"`
	StreamsTarget  int      `json:"streams_target" validate:"gte=0"`
	FollowerTarget int      `json:"follower_target" validate:"gte=0"`
	Notes          string   `json:"notes,omitempty" validate:"max=2000"`
}

// ReleaseProfile holds the campaign setup answers for one release plus the engine's
// running counters. A section counts as recorded once its *SavedAt is set.
type ReleaseProfile struct {
	ID                 uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID          uuid.UUID                          `gorm:"type:uuid;not null;uniqueIndex" json:"release_id"`
	SetupCompleted     bool                               `gorm:"default:false" json:"setup_completed"`
	SetupStep          int                                `gorm:"not null;default:1" json:"setup_step"`
	SongIntake         datatypes.JSONType[SongIntake]     `json:"song_intake"`
	SongIntakeSavedAt  *time.Time                         `json:"song_intake_saved_at,omitempty"`
	TargetAudience     datatypes.JSONType[TargetAudience] `json:"target_audience"`
	AudienceSavedAt    *time.Time                         `json:"target_audience_saved_at,omitempty"`
	BudgetTimeline     datatypes.JSONType[BudgetTimeline] `json:"budget_timeline"`
	BudgetSavedAt      *time.Time                         `json:"budget_timeline_saved_at,omitempty"`
	Goals              datatypes.JSONType[Goals]          `json:"goals"`
	GoalsSavedAt       *time.Time                         `json:"goals_saved_at,omitempty"`
	CampaignNarrative  string                             `gorm:"type:text" json:"campaign_narrative,omitempty"`
	TargetReleaseDate  *time.Time                         `json:"target_release_date,omitempty"`
	SetupCompletedAt   *time.Time                         `json:"setup_completed_at,omitempty"`
	CompletedTaskCount int                                `gorm:"not null;default:0" json:"completed_task_count"`
	GeneratedTaskCount int                                `gorm:"not null;default:0" json:"generated_task_count"`
	TotalTasksEstimate int                                `gorm:"not null;default:0" json:"total_tasks_estimate"`
	BatchCount         int                                `gorm:"not null;default:0" json:"batch_count"`
	CreatedAt          time.Time                          `json:"created_at"`
	UpdatedAt          time.Time                          `json:"updated_at"`
}

func (p *ReleaseProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.SetupStep == 0 {
		p.SetupStep = StepSongIntake
	}
	return nil
}

// MissingSections names the wizard sections that have never been saved.
func (p *ReleaseProfile) MissingSections() []string {
	var missing []string
	if p.SongIntakeSavedAt == nil {
		missing = append(missing, "song_intake")
	}
	if p.AudienceSavedAt == nil {
		missing = append(missing, "target_audience")
	}
	if p.BudgetSavedAt == nil {
		missing = append(missing, "budget_timeline")
	}
	if p.GoalsSavedAt == nil {
		missing = append(missing, "goals")
	}
	return missing
}
