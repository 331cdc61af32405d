package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Phase is one of the four fixed release stages tasks are grouped by.
type Phase string

const (
	PhasePreProduction Phase = "pre-production"
	PhaseProduction    Phase = "production"
	PhasePromotion     Phase = "promotion"
	PhaseDistribution  Phase = "distribution"
)

// Phases lists the phases in lifecycle order.
var Phases = []Phase{PhasePreProduction, PhaseProduction, PhasePromotion, PhaseDistribution}

func (p Phase) Valid() bool {
	for _, v := range Phases {
		if p == v {
			return true
		}
	}
	return false
}

// Next returns the phase after p, or p itself for the last phase.
func (p Phase) Next() Phase {
	for i, v := range Phases {
		if v == p && i+1 < len(Phases) {
			return Phases[i+1]
		}
	}
	return p
}

type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress is accepted on input but never produced by the checklist toggle.
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task is an item of the per-release checklist.
type Task struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ReleaseID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"release_id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Description       string     `gorm:"size:2000" json:"description,omitempty"`
	Phase             Phase      `gorm:"size:20;not null;index" json:"phase"`
	Status            TaskStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	IsSystemGenerated bool       `gorm:"default:false" json:"is_system_generated"`
	Order             int        `gorm:"column:sort_order;default:0" json:"order"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
