package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxkey/listing-ingest/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testCity(t *testing.T, st *SQLiteStore) *model.City {
	t.Helper()
	city, err := st.UpsertCity(context.Background(), model.City{
		Slug:   "miami",
		Name:   "Miami",
		Region: "Florida",
		Market: "South Florida",
	})
	require.NoError(t, err)
	return city
}

func TestSQLiteUpsertCityIdempotent(t *testing.T) {
	st := newTestSQLite(t)

	first := testCity(t, st)
	require.NotEmpty(t, first.ID)

	second, err := st.UpsertCity(context.Background(), model.City{
		Slug: "miami",
		Name: "Miami (updated)",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "conflicting upsert keeps the original id")
}

func TestSQLiteCreateListingAndDedupe(t *testing.T) {
	st := newTestSQLite(t)
	city := testCity(t, st)
	ctx := context.Background()

	sourceID := "158209187"
	address := "123 Ocean Dr, Miami, FL 33139"
	listing := &model.Listing{
		Slug:         "miami-123-ocean-dr-158209187",
		Source:       model.SourceATTOM,
		SourceID:     &sourceID,
		CityID:       city.ID,
		Status:       model.ListingStatusLive,
		Visibility:   model.ListingVisibilityPublic,
		Verification: model.ListingVerificationSelfReport,
		Title:        "SFR in Miami",
		Address:      &address,
		Currency:     "USD",
	}
	media := []model.ListingMedia{
		{URL: "https://img.example.com/1.jpg", SortOrder: 0},
		{URL: "https://img.example.com/2.jpg", SortOrder: 1},
	}

	require.NoError(t, st.CreateListing(ctx, listing, media))
	assert.NotEmpty(t, listing.ID)
	assert.Equal(t, listing.ID, media[0].ListingID)

	exists, err := st.ListingExists(ctx, model.SourceATTOM, &sourceID, nil, city.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = st.ListingExists(ctx, model.SourceATTOM, nil, &address, city.ID)
	require.NoError(t, err)
	assert.True(t, exists, "address fallback matches")

	exists, err = st.ListingExists(ctx, model.SourceATTOM, nil, &address, "other-city")
	require.NoError(t, err)
	assert.False(t, exists, "address match is scoped to the city")

	// Same source id again hits the unique index.
	dup := &model.Listing{
		Slug:     "miami-123-ocean-dr-dup",
		Source:   model.SourceATTOM,
		SourceID: &sourceID,
		CityID:   city.ID,
		Title:    "SFR in Miami",
		Currency: "USD",
	}
	err = st.CreateListing(ctx, dup, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicate))

	// Same address, different source id.
	otherID := "999"
	dup2 := &model.Listing{
		Slug:     "miami-123-ocean-dr-999",
		Source:   model.SourceRealtor,
		SourceID: &otherID,
		CityID:   city.ID,
		Title:    "SFR in Miami",
		Address:  &address,
		Currency: "USD",
	}
	err = st.CreateListing(ctx, dup2, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicate))
}

func TestSQLiteImportRunLifecycle(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	run := &model.ImportRun{
		Source: model.SourceATTOM,
		Scope:  model.ScopeProperties,
		Region: "Florida",
		Market: "South Florida",
		Params: map[string]any{"city": "miami", "limit": float64(50)},
	}
	require.NoError(t, st.CreateImportRun(ctx, run))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetImportRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Equal(t, "miami", got.Params["city"])

	run.Status = model.RunStatusSucceeded
	run.Scanned = 10
	run.Created = 3
	run.Skipped = 6
	run.Errors = 1
	run.ErrorSamples = []model.ErrorSample{{Step: "item", Message: "boom"}}
	run.Message = "scanned 10, created 3, skipped 6, errors 1"
	require.NoError(t, st.FinalizeImportRun(ctx, run))

	got, err = st.GetImportRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, got.Status)
	assert.Equal(t, 10, got.Scanned)
	assert.Equal(t, 3, got.Created)
	require.Len(t, got.ErrorSamples, 1)
	assert.Equal(t, "item", got.ErrorSamples[0].Step)
	assert.NotNil(t, got.FinishedAt)
}

func TestSQLiteGetImportRunNotFound(t *testing.T) {
	st := newTestSQLite(t)

	_, err := st.GetImportRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteFinalizeImportRunNotFound(t *testing.T) {
	st := newTestSQLite(t)

	err := st.FinalizeImportRun(context.Background(), &model.ImportRun{ID: "missing"})
	require.Error(t, err)
}

func TestSQLiteListImportRunsFilter(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	attomRun := &model.ImportRun{Source: model.SourceATTOM, Scope: model.ScopeProperties}
	require.NoError(t, st.CreateImportRun(ctx, attomRun))
	attomRun.Status = model.RunStatusSucceeded
	require.NoError(t, st.FinalizeImportRun(ctx, attomRun))

	realtorRun := &model.ImportRun{Source: model.SourceRealtor, Scope: model.ScopeProperties}
	require.NoError(t, st.CreateImportRun(ctx, realtorRun))

	all, err := st.ListImportRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	attomOnly, err := st.ListImportRuns(ctx, RunFilter{Source: model.SourceATTOM})
	require.NoError(t, err)
	require.Len(t, attomOnly, 1)
	assert.Equal(t, attomRun.ID, attomOnly[0].ID)

	succeeded, err := st.ListImportRuns(ctx, RunFilter{Status: model.RunStatusSucceeded})
	require.NoError(t, err)
	require.Len(t, succeeded, 1)

	limited, err := st.ListImportRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
