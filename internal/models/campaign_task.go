package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CampaignTaskStatus string

const (
	CampaignTaskPending   CampaignTaskStatus = "pending"
	CampaignTaskCurrent   CampaignTaskStatus = "current"
	CampaignTaskCompleted CampaignTaskStatus = "completed"
	CampaignTaskSkipped   CampaignTaskStatus = "skipped"
)

// TaskCategory and TaskPlatform together tag what kind of work a campaign task is.
type TaskCategory string

const (
	CategoryPlanning     TaskCategory = "planning"
	CategoryContent      TaskCategory = "content"
	CategorySocial       TaskCategory = "social"
	CategoryPlaylist     TaskCategory = "playlist"
	CategoryPress        TaskCategory = "press"
	CategoryAdvertising  TaskCategory = "advertising"
	CategoryDistribution TaskCategory = "distribution"
)

var taskCategories = map[TaskCategory]bool{
	CategoryPlanning: true, CategoryContent: true, CategorySocial: true, CategoryPlaylist: true,
	CategoryPress: true, CategoryAdvertising: true, CategoryDistribution: true,
}

func (c TaskCategory) Valid() bool { return taskCategories[c] }

type TaskPlatform string

const (
	PlatformGeneral    TaskPlatform = "general"
	PlatformInstagram  TaskPlatform = "instagram"
	PlatformTikTok     TaskPlatform = "tiktok"
	PlatformYouTube    TaskPlatform = "youtube"
	PlatformSpotify    TaskPlatform = "spotify"
	PlatformAppleMusic TaskPlatform = "apple_music"
	PlatformEmail      TaskPlatform = "email"
	PlatformPress      TaskPlatform = "press"
)

var taskPlatforms = map[TaskPlatform]bool{
	PlatformGeneral: true, PlatformInstagram: true, PlatformTikTok: true, PlatformYouTube: true,
	PlatformSpotify: true, PlatformAppleMusic: true, PlatformEmail: true, PlatformPress: true,
}

func (p TaskPlatform) Valid() bool { return taskPlatforms[p] }

// CampaignTask is one step of the AI campaign for a release. At most one task per
// release is current; Version is bumped on every transition and guards concurrent writes.
type CampaignTask struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID   uuid.UUID          `gorm:"type:uuid;not null;index:idx_campaign_release_seq,priority:1" json:"release_id"`
	Sequence    int                `gorm:"not null;index:idx_campaign_release_seq,priority:2" json:"sequence"`
	Batch       int                `gorm:"not null;default:0" json:"batch"`
	Title       string             `gorm:"size:255;not null" json:"title"`
	Description string             `gorm:"size:2000" json:"description,omitempty"`
	Phase       Phase              `gorm:"size:20;not null" json:"phase"`
	Status      CampaignTaskStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Category    TaskCategory       `gorm:"size:20;not null;default:'planning'" json:"category"`
	Platform    TaskPlatform       `gorm:"size:20;not null;default:'general'" json:"platform"`
	Rationale   string             `gorm:"size:1000" json:"rationale,omitempty"`
	Fallback    bool               `gorm:"default:false" json:"fallback"`
	Version     int                `gorm:"not null;default:1" json:"version"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	SkippedAt   *time.Time         `json:"skipped_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (t *CampaignTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = CampaignTaskPending
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}
