package services

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseService_CreateWithDefaultTasks(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	svc := NewReleaseService(db, nil, nopLog)

	release, err := svc.Create(bg, user.ID, ReleaseDraft{
		Title: "Afterglow", ArtistName: "Nova", Type: models.ReleaseTypeEP, WithDefaultTasks: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReleaseStatusDraft, release.Status)

	var count int64
	require.NoError(t, db.Model(&models.Task{}).Where("release_id = ?", release.ID).Count(&count).Error)
	assert.Equal(t, int64(16), count)
}

func TestReleaseService_CreateValidation(t *testing.T) {
	svc := NewReleaseService(newTestDB(t), nil, nopLog)
	userID := uuid.New()

	_, err := svc.Create(bg, userID, ReleaseDraft{ArtistName: "Nova", Type: models.ReleaseTypeSingle})
	assert.True(t, IsValidation(err))
	_, err = svc.Create(bg, userID, ReleaseDraft{Title: "A", Type: models.ReleaseTypeSingle})
	assert.True(t, IsValidation(err))
	_, err = svc.Create(bg, userID, ReleaseDraft{Title: "A", ArtistName: "Nova", Type: "mixtape"})
	assert.True(t, IsValidation(err))
}

func TestReleaseService_ListNewestFirstAndOwnership(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	other := seedUser(t, db)
	svc := NewReleaseService(db, nil, nopLog)

	first, err := svc.Create(bg, user.ID, ReleaseDraft{Title: "First", ArtistName: "Nova", Type: models.ReleaseTypeSingle})
	require.NoError(t, err)
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Hour)).Error)
	_, err = svc.Create(bg, user.ID, ReleaseDraft{Title: "Second", ArtistName: "Nova", Type: models.ReleaseTypeSingle})
	require.NoError(t, err)

	list, err := svc.List(bg, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Title)

	_, err = svc.GetOwned(bg, first.ID, other.ID)
	assert.True(t, IsNotFound(err))
}

func TestReleaseService_UpdateDoesNotTransitionStatus(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	svc := NewReleaseService(db, nil, nopLog)

	release, err := svc.Create(bg, user.ID, ReleaseDraft{Title: "Old", ArtistName: "Nova", Type: models.ReleaseTypeSingle})
	require.NoError(t, err)

	title := "New"
	updated, err := svc.Update(bg, release.ID, ReleaseUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, models.ReleaseStatusDraft, updated.Status)

	status := models.ReleaseStatusReady
	updated, err = svc.Update(bg, release.ID, ReleaseUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.ReleaseStatusReady, updated.Status)

	bad := models.ReleaseStatus("archived")
	_, err = svc.Update(bg, release.ID, ReleaseUpdate{Status: &bad})
	assert.True(t, IsValidation(err))
}

func TestReleaseService_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	store := &recordingStore{}
	files := NewFileService(db, testConfig(), store, nopLog)
	svc := NewReleaseService(db, files, nopLog)

	release, err := svc.Create(bg, user.ID, ReleaseDraft{Title: "Gone", ArtistName: "Nova", Type: models.ReleaseTypeSingle, WithDefaultTasks: true})
	require.NoError(t, err)
	_, err = files.Add(bg, Upload{ReleaseID: release.ID, UploadedBy: user.ID, Category: models.FileCategoryArtwork, Name: "cover.jpg", Body: strings.NewReader("jpg")})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ReleaseProfile{ReleaseID: release.ID}).Error)

	require.NoError(t, svc.Delete(bg, release.ID))

	for _, m := range []interface{}{&models.Task{}, &models.ReleaseFile{}, &models.ReleaseProfile{}} {
		var n int64
		require.NoError(t, db.Model(m).Where("release_id = ?", release.ID).Count(&n).Error)
		assert.Zero(t, n)
	}
	assert.Len(t, store.deleted, 1)
	assert.True(t, IsNotFound(svc.Delete(bg, release.ID)))
}
