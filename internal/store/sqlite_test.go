package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubscout/clubscout-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_CreateAndFindByNameAndCity(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateActivity(ctx, model.Candidate{
		Name:        "Judo Club Toulouse",
		Category:    model.CategorySport,
		Subcategory: "judo",
		Address:     "3 rue des Arts",
		PostalCode:  "31000",
		City:        "Toulouse",
		Phone:       "0561000000",
		Latitude:    model.Float64(43.6),
		Longitude:   model.Float64(1.44),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// Name matching is case-insensitive.
	found, err := s.FindByNameAndCity(ctx, "JUDO CLUB TOULOUSE", "toulouse")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "judo", found.Subcategory)
	assert.Equal(t, "0561000000", found.Phone)
	assert.Empty(t, found.Email)
	require.True(t, found.HasCoordinates())
	assert.Equal(t, 43.6, *found.Latitude)
}

func TestSQLiteStore_FindByNameAndCity_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	found, err := s.FindByNameAndCity(context.Background(), "nope", "Toulouse")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteStore_FindByNameAndBoundingBox(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.CreateActivity(ctx, model.Candidate{
		Name:      "Club Echecs",
		Category:  model.CategoryIntellectual,
		Address:   "5 rue du Taur",
		City:      "Toulouse",
		Latitude:  model.Float64(43.6005),
		Longitude: model.Float64(1.4402),
	})
	require.NoError(t, err)

	// Inside the tolerance box.
	found, err := s.FindByNameAndBoundingBox(ctx, "club echecs", 43.600, 1.440, 0.001)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Club Echecs", found.Name)

	// Outside the tolerance box.
	found, err = s.FindByNameAndBoundingBox(ctx, "club echecs", 43.610, 1.440, 0.001)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLiteStore_UpdateActivity(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateActivity(ctx, model.Candidate{
		Name:     "Club Sans Tel",
		Category: model.CategorySport,
		Address:  model.UnknownAddress,
		City:     "Toulouse",
	})
	require.NoError(t, err)

	created.Phone = "0561999999"
	created.Latitude = model.Float64(43.61)
	created.Longitude = model.Float64(1.45)
	updated, err := s.UpdateActivity(ctx, *created)
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.CreatedAt) || updated.UpdatedAt.Equal(created.CreatedAt))

	found, err := s.FindByNameAndCity(ctx, "Club Sans Tel", "Toulouse")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "0561999999", found.Phone)
	require.True(t, found.HasCoordinates())
}

func TestSQLiteStore_UpdateActivity_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.UpdateActivity(context.Background(), model.Activity{
		ID: "missing", Name: "x", Category: model.CategorySport, Address: "a", City: "c",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_ListActivities_Filter(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, c := range []model.Candidate{
		{Name: "Boxe Club", Category: model.CategorySport, Address: "a", City: "Toulouse"},
		{Name: "Atelier Peinture", Category: model.CategoryIntellectual, Address: "b", City: "Toulouse"},
		{Name: "Rugby Balma", Category: model.CategorySport, Address: "c", City: "Balma"},
	} {
		_, err := s.CreateActivity(ctx, c)
		require.NoError(t, err)
	}

	sport, err := s.ListActivities(ctx, ActivityFilter{Category: model.CategorySport})
	require.NoError(t, err)
	assert.Len(t, sport, 2)

	toulouse, err := s.ListActivities(ctx, ActivityFilter{City: "toulouse"})
	require.NoError(t, err)
	require.Len(t, toulouse, 2)
	// Ordered by name.
	assert.Equal(t, "Atelier Peinture", toulouse[0].Name)

	limited, err := s.ListActivities(ctx, ActivityFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_ListWithCoordinates(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.CreateActivity(ctx, model.Candidate{
		Name: "Avec GPS", Category: model.CategorySport, Address: "a", City: "Toulouse",
		Latitude: model.Float64(43.6), Longitude: model.Float64(1.44),
	})
	require.NoError(t, err)
	_, err = s.CreateActivity(ctx, model.Candidate{
		Name: "Sans GPS", Category: model.CategorySport, Address: "b", City: "Toulouse",
	})
	require.NoError(t, err)

	located, err := s.ListWithCoordinates(ctx, "")
	require.NoError(t, err)
	require.Len(t, located, 1)
	assert.Equal(t, "Avec GPS", located[0].Name)
}

func TestSQLiteStore_ScrapeRunLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := s.StartScrapeRun(ctx, "toulouse")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	stats := &model.RunStats{
		Total: 12, Created: 5, Updated: 7,
		Sources: map[string]int{"overpass": 8, "serp": 4},
	}
	require.NoError(t, s.CompleteScrapeRun(ctx, run.ID, stats))

	runs, err := s.ListScrapeRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Stats)
	assert.Equal(t, 5, runs[0].Stats.Created)
	assert.Equal(t, 8, runs[0].Stats.Sources["overpass"])
	require.NotNil(t, runs[0].FinishedAt)
}

func TestSQLiteStore_FailScrapeRun(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := s.StartScrapeRun(ctx, "paris")
	require.NoError(t, err)
	require.NoError(t, s.FailScrapeRun(ctx, run.ID, assert.AnError))

	runs, err := s.ListScrapeRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
	assert.Nil(t, runs[0].Stats)
}
