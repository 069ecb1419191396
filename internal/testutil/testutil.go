// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/killallgit/testimony-api/internal/database"
	"github.com/killallgit/testimony-api/internal/models"
)

// NewDB returns a migrated in-memory sqlite database closed at test end
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Initialize(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	t.Cleanup(func() {
		db.Close()
	})
	return db.DB
}

// CreateTestimony inserts a testimony with sensible defaults applied
func CreateTestimony(t testing.TB, db *gorm.DB, mutate func(*models.Testimony)) *models.Testimony {
	t.Helper()

	tm := &models.Testimony{
		Origin:           "lausanne",
		AudioURL:         "file:///data/objects/testimony_audio/a.mp3",
		AudioHash:        "abc123",
		AudioDurationMS:  90_000,
		TranscriptStatus: models.TranscriptPending,
	}
	if mutate != nil {
		mutate(tm)
	}
	require.NoError(t, db.Create(tm).Error)
	return tm
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
