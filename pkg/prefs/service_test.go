package prefs

import (
	"context"
	"database/sql"
	"testing"

	"github.com/romshelf/romshelf/pkg/migrations"
	"github.com/romshelf/romshelf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestGetReturnsDefaultsForNewProfile(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))

	prefs, err := svc.Get(context.Background(), "default")
	require.NoError(t, err)

	assert.Equal(t, "default", prefs.Profile)
	assert.Equal(t, "name", prefs.SortField)
	assert.True(t, prefs.SortAsc)
	assert.Empty(t, prefs.LastPlatform)
}

func TestSaveThenGetRoundTrips(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	_, err := svc.Save(ctx, &models.ViewPrefs{
		Profile:      "default",
		LastPlatform: "snes",
		ColumnLayout: `["name","developer","rating"]`,
		SortField:    "release_date",
		SortAsc:      false,
		PanelSizes:   `{"table":70,"detail":30}`,
	})
	require.NoError(t, err)

	prefs, err := svc.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "snes", prefs.LastPlatform)
	assert.Equal(t, "release_date", prefs.SortField)
	assert.False(t, prefs.SortAsc)
	assert.Equal(t, `{"table":70,"detail":30}`, prefs.PanelSizes)
}

func TestSaveUpsertsExistingProfile(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	_, err := svc.Save(ctx, &models.ViewPrefs{Profile: "default", LastPlatform: "snes", SortField: "name", SortAsc: true})
	require.NoError(t, err)
	_, err = svc.Save(ctx, &models.ViewPrefs{Profile: "default", LastPlatform: "genesis", SortField: "name", SortAsc: true})
	require.NoError(t, err)

	prefs, err := svc.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "genesis", prefs.LastPlatform)

	count, err := svc.db.NewSelect().Model((*models.ViewPrefs)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSaveLastPlatformPreservesOtherPrefs(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	_, err := svc.Save(ctx, &models.ViewPrefs{
		Profile:      "default",
		LastPlatform: "snes",
		SortField:    "rating",
		SortAsc:      false,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SaveLastPlatform(ctx, "default", "genesis"))

	prefs, err := svc.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "genesis", prefs.LastPlatform)
	assert.Equal(t, "rating", prefs.SortField)
	assert.False(t, prefs.SortAsc)
}

func TestProfilesAreIsolated(t *testing.T) {
	t.Parallel()
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	_, err := svc.Save(ctx, &models.ViewPrefs{Profile: "default", LastPlatform: "snes", SortField: "name", SortAsc: true})
	require.NoError(t, err)

	prefs, err := svc.Get(ctx, "kiosk")
	require.NoError(t, err)
	assert.Empty(t, prefs.LastPlatform)
}
