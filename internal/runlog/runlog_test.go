package runlog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxkey/listing-ingest/internal/model"
	"github.com/luxkey/listing-ingest/internal/store"
)

// fakeRunStore records run lifecycle calls. Only the run methods matter here.
type fakeRunStore struct {
	created   *model.ImportRun
	finalized *model.ImportRun
	createErr error
}

func (f *fakeRunStore) CreateImportRun(_ context.Context, run *model.ImportRun) error {
	if f.createErr != nil {
		return f.createErr
	}
	run.ID = "run-1"
	copied := *run
	f.created = &copied
	return nil
}

func (f *fakeRunStore) FinalizeImportRun(_ context.Context, run *model.ImportRun) error {
	copied := *run
	f.finalized = &copied
	return nil
}

func (f *fakeRunStore) UpsertCity(context.Context, model.City) (*model.City, error) {
	return nil, nil
}

func (f *fakeRunStore) ListingExists(context.Context, model.Source, *string, *string, string) (bool, error) {
	return false, nil
}

func (f *fakeRunStore) CreateListing(context.Context, *model.Listing, []model.ListingMedia) error {
	return nil
}

func (f *fakeRunStore) GetImportRun(context.Context, string) (*model.ImportRun, error) {
	return nil, store.ErrNotFound
}

func (f *fakeRunStore) ListImportRuns(context.Context, store.RunFilter) ([]model.ImportRun, error) {
	return nil, nil
}

func (f *fakeRunStore) Migrate(context.Context) error { return nil }
func (f *fakeRunStore) Close() error                  { return nil }

func TestAccumulatorCounts(t *testing.T) {
	acc := &Accumulator{}

	acc.Scan()
	acc.Scan()
	acc.Scan()
	acc.Create()
	acc.Skip(model.SkipMinBeds)
	acc.RecordError("item", errors.New("boom"))

	assert.Equal(t, 3, acc.Scanned)
	assert.Equal(t, 1, acc.Created)
	assert.Equal(t, 1, acc.Skipped)
	assert.Equal(t, 1, acc.Errors)
	assert.Equal(t, 1, acc.Breakdown.SkippedMinBeds)
	assert.Equal(t, 1, acc.Breakdown.Total())
}

func TestAccumulatorSampleCap(t *testing.T) {
	acc := &Accumulator{}
	for i := 0; i < 10; i++ {
		acc.RecordError("item", fmt.Errorf("failure %d", i))
	}

	assert.Equal(t, 10, acc.Errors, "counter keeps counting past the cap")
	require.Len(t, acc.Samples, MaxErrorSamples)
	assert.Equal(t, "failure 0", acc.Samples[0].Message)
	assert.Equal(t, "failure 5", acc.Samples[MaxErrorSamples-1].Message)
}

func TestAccumulatorMessage(t *testing.T) {
	acc := &Accumulator{}
	assert.Equal(t, "scanned 0, created 0, skipped 0, errors 0", acc.Message())

	acc.Scan()
	acc.Scan()
	acc.Skip(model.SkipExisting)
	acc.Skip(model.SkipBelowMinValue)

	assert.Equal(t,
		"scanned 2, created 0, skipped 2, errors 0 (existing=1, belowMinValue=1)",
		acc.Message())
}

func TestAccumulatorSummary(t *testing.T) {
	acc := &Accumulator{}
	acc.Scan()
	acc.Create()

	s := acc.Summary("run-1", true)
	assert.True(t, s.OK)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 1, s.Scanned)
	assert.Equal(t, 1, s.Created)
}

func TestReporterLifecycle(t *testing.T) {
	st := &fakeRunStore{}

	r, err := Start(context.Background(), st, model.SourceATTOM, model.ScopeProperties,
		"Florida", "South Florida", map[string]any{"city": "miami"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", r.RunID())

	require.NotNil(t, st.created)
	assert.Equal(t, model.RunStatusRunning, st.created.Status)
	assert.Equal(t, model.SourceATTOM, st.created.Source)
	assert.Equal(t, "Florida", st.created.Region)

	acc := &Accumulator{}
	acc.Scan()
	acc.Create()
	require.NoError(t, r.Succeed(context.Background(), acc))

	require.NotNil(t, st.finalized)
	assert.Equal(t, model.RunStatusSucceeded, st.finalized.Status)
	assert.Equal(t, 1, st.finalized.Scanned)
	assert.Equal(t, 1, st.finalized.Created)
	assert.NotEmpty(t, st.finalized.Message)
}

func TestReporterFail(t *testing.T) {
	st := &fakeRunStore{}

	r, err := Start(context.Background(), st, model.SourceRealtor, model.ScopeProperties, "", "", nil)
	require.NoError(t, err)

	acc := &Accumulator{}
	acc.RecordError("apify:run-sync-get-dataset-items", errors.New("status 502"))
	require.NoError(t, r.Fail(context.Background(), acc, "actor run failed"))

	require.NotNil(t, st.finalized)
	assert.Equal(t, model.RunStatusFailed, st.finalized.Status)
	assert.Equal(t, "actor run failed", st.finalized.Message)
	require.Len(t, st.finalized.ErrorSamples, 1)
}

func TestStartPropagatesStoreError(t *testing.T) {
	st := &fakeRunStore{createErr: errors.New("db down")}

	_, err := Start(context.Background(), st, model.SourceATTOM, model.ScopeProperties, "", "", nil)
	require.Error(t, err)
}
