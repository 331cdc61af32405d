package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"github.com/releasedesk/backend/pkg/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileService struct {
	db       *gorm.DB
	validate *validator.Validate
	log      *logger.Logger
}

func NewProfileService(db *gorm.DB, log *logger.Logger) *ProfileService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ProfileService{db: db, validate: v, log: log}
}

// ArtistProfileInput is the editable part of an artist profile.
type ArtistProfileInput struct {
	Bio              string             `json:"bio" validate:"max=4000"`
	BrandAesthetic   string             `json:"brand_aesthetic" validate:"max=1000"`
	CareerStage      models.CareerStage `json:"career_stage" validate:"omitempty,oneof=emerging developing established"`
	SocialHandles    map[string]string  `json:"social_handles" validate:"max=10,dive,keys,oneof=instagram tiktok youtube spotify apple_music twitter facebook soundcloud bandcamp,endkeys"`
	ReferenceArtists []string           `json:"reference_artists" validate:"max=10,dive,required,max=100"`
}

func (s *ProfileService) check(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.TrimPrefix(fe.Namespace(), reflect.TypeOf(v).Elem().Name()+".")
		msg := fmt.Sprintf("failed %q validation", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q validation (%s)", fe.Tag(), fe.Param())
		}
		return invalid(field, msg)
	}
	return invalid("", err.Error())
}

// CreateDraft creates the profile for a release, or returns the existing one.
func (s *ProfileService) CreateDraft(ctx context.Context, releaseID uuid.UUID) (*models.ReleaseProfile, error) {
	profile := &models.ReleaseProfile{ReleaseID: releaseID, SetupStep: models.StepSongIntake}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "release_id"}}, DoNothing: true}).
		Create(profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create release profile: %w", err)
	}
	return s.Get(ctx, releaseID)
}

func (s *ProfileService) Get(ctx context.Context, releaseID uuid.UUID) (*models.ReleaseProfile, error) {
	var p models.ReleaseProfile
	if err := s.db.WithContext(ctx).First(&p, "release_id = ?", releaseID).Error; err != nil {
		return nil, translateNotFound(err, "release profile", releaseID.String())
	}
	return &p, nil
}

func (s *ProfileService) SetSongIntake(ctx context.Context, releaseID uuid.UUID, in models.SongIntake) (*models.ReleaseProfile, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	return s.saveSection(ctx, releaseID, models.StepSongIntake, map[string]interface{}{
		"song_intake":          datatypes.NewJSONType(in),
		"song_intake_saved_at": time.Now().UTC(),
	})
}

func (s *ProfileService) SetTargetAudience(ctx context.Context, releaseID uuid.UUID, in models.TargetAudience) (*models.ReleaseProfile, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	return s.saveSection(ctx, releaseID, models.StepTargetAudience, map[string]interface{}{
		"target_audience":   datatypes.NewJSONType(in),
		"audience_saved_at": time.Now().UTC(),
	})
}

func (s *ProfileService) SetBudgetTimeline(ctx context.Context, releaseID uuid.UUID, in models.BudgetTimeline) (*models.ReleaseProfile, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	return s.saveSection(ctx, releaseID, models.StepBudgetTimeline, map[string]interface{}{
		"budget_timeline":     datatypes.NewJSONType(in),
		"budget_saved_at":     time.Now().UTC(),
		"target_release_date": in.TargetReleaseDate,
	})
}

func (s *ProfileService) SetGoals(ctx context.Context, releaseID uuid.UUID, in models.Goals) (*models.ReleaseProfile, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	return s.saveSection(ctx, releaseID, models.StepGoals, map[string]interface{}{
		"goals":          datatypes.NewJSONType(in),
		"goals_saved_at": time.Now().UTC(),
	})
}

// SetNarrative stores the free-text campaign story of the last wizard step.
func (s *ProfileService) SetNarrative(ctx context.Context, releaseID uuid.UUID, narrative string) (*models.ReleaseProfile, error) {
	narrative = validation.SanitizeString(narrative)
	if utf8.RuneCountInString(narrative) > 8000 {
		return nil, invalid("campaign_narrative", "must be at most 8000 characters")
	}
	return s.saveSection(ctx, releaseID, models.StepNarrative, map[string]interface{}{
		"campaign_narrative": narrative,
	})
}

// saveSection writes one wizard step and moves setup_step forward, never backward.
func (s *ProfileService) saveSection(ctx context.Context, releaseID uuid.UUID, step int, updates map[string]interface{}) (*models.ReleaseProfile, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.ReleaseProfile
		if err := tx.First(&p, "release_id = ?", releaseID).Error; err != nil {
			return translateNotFound(err, "release profile", releaseID.String())
		}
		if p.SetupCompleted {
			return &ConflictError{Message: "campaign setup already completed"}
		}
		next := step + 1
		if p.SetupStep > next {
			next = p.SetupStep
		}
		if next > models.StepNarrative {
			next = models.StepNarrative
		}
		updates["setup_step"] = next
		return tx.Model(&p).Updates(updates).Error
	})
	if err != nil {
		if IsNotFound(err) || IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save release profile: %w", err)
	}
	return s.Get(ctx, releaseID)
}

// CompleteSetup marks the profile complete once the four required sections have
// each been saved at least once.
func (s *ProfileService) CompleteSetup(ctx context.Context, releaseID uuid.UUID) (*models.ReleaseProfile, error) {
	p, err := s.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if p.SetupCompleted {
		return p, nil
	}
	if missing := p.MissingSections(); len(missing) > 0 {
		return nil, invalid("setup", "missing sections: "+strings.Join(missing, ", "))
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(p).Updates(map[string]interface{}{
		"setup_completed":    true,
		"setup_completed_at": now,
		"setup_step":         models.StepNarrative,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to complete setup: %w", err)
	}
	s.log.Info("Campaign setup completed", "release_id", releaseID)
	return s.Get(ctx, releaseID)
}

// GetArtistProfile returns the user's artist profile.
func (s *ProfileService) GetArtistProfile(ctx context.Context, userID uuid.UUID) (*models.ArtistProfile, error) {
	var a models.ArtistProfile
	if err := s.db.WithContext(ctx).First(&a, "user_id = ?", userID).Error; err != nil {
		return nil, translateNotFound(err, "artist profile", userID.String())
	}
	return &a, nil
}

// UpsertArtistProfile creates or replaces the user's artist profile.
func (s *ProfileService) UpsertArtistProfile(ctx context.Context, userID uuid.UUID, in ArtistProfileInput) (*models.ArtistProfile, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	for platform, handle := range in.SocialHandles {
		if !validation.ValidateHandle(handle) {
			return nil, invalid("social_handles."+platform, "invalid handle")
		}
	}
	if in.SocialHandles == nil {
		in.SocialHandles = map[string]string{}
	}

	profile := &models.ArtistProfile{
		UserID:           userID,
		Bio:              validation.SanitizeString(in.Bio),
		BrandAesthetic:   validation.SanitizeString(in.BrandAesthetic),
		CareerStage:      in.CareerStage,
		SocialHandles:    datatypes.NewJSONType(in.SocialHandles),
		ReferenceArtists: datatypes.JSONSlice[string](in.ReferenceArtists),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bio", "brand_aesthetic", "career_stage", "social_handles", "reference_artists", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save artist profile: %w", err)
	}
	return s.GetArtistProfile(ctx, userID)
}
