package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.GenerationTimeout = 2 * time.Second
	cfg.CampaignBatchSize = 3
	cfg.CampaignEstimateIncrement = 10
	cfg.CampaignSummaryLimit = 30
	return cfg
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com", Password: "x", Name: "Test Artist"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedRelease(t *testing.T, db *gorm.DB, userID uuid.UUID) *models.Release {
	t.Helper()
	r := &models.Release{UserID: userID, Title: "Night Drive", ArtistName: "Test Artist", Type: models.ReleaseTypeSingle}
	require.NoError(t, db.Create(r).Error)
	return r
}

var nopLog = logger.NewNop()

var bg = context.Background()
