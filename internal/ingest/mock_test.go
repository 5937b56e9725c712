package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/luxkey/listing-ingest/internal/model"
	"github.com/luxkey/listing-ingest/internal/store"
)

// mockStore is an in-memory store.Store for orchestrator tests. It enforces
// the same uniqueness rules as the real backends so dedup paths are
// exercised end to end.
type mockStore struct {
	mu       sync.Mutex
	cities   map[string]*model.City
	listings []*model.Listing
	media    map[string][]model.ListingMedia
	runs     map[string]*model.ImportRun
	runSeq   int

	upsertCityErr error
	createErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		cities: make(map[string]*model.City),
		media:  make(map[string][]model.ListingMedia),
		runs:   make(map[string]*model.ImportRun),
	}
}

func (m *mockStore) UpsertCity(_ context.Context, city model.City) (*model.City, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertCityErr != nil {
		return nil, m.upsertCityErr
	}
	if existing, ok := m.cities[city.Slug]; ok {
		return existing, nil
	}
	c := city
	c.ID = "city-" + city.Slug
	c.CreatedAt = time.Now()
	m.cities[city.Slug] = &c
	return &c, nil
}

func (m *mockStore) ListingExists(_ context.Context, source model.Source, sourceID, address *string, cityID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listings {
		if sourceID != nil && l.SourceID != nil && l.Source == source && *l.SourceID == *sourceID {
			return true, nil
		}
		if address != nil && l.Address != nil && *l.Address == *address && l.CityID == cityID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) CreateListing(_ context.Context, listing *model.Listing, media []model.ListingMedia) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, l := range m.listings {
		if listing.SourceID != nil && l.SourceID != nil && l.Source == listing.Source && *l.SourceID == *listing.SourceID {
			return store.ErrDuplicate
		}
		if listing.Address != nil && l.Address != nil && *l.Address == *listing.Address && l.CityID == listing.CityID {
			return store.ErrDuplicate
		}
	}
	listing.ID = fmt.Sprintf("listing-%d", len(m.listings)+1)
	m.listings = append(m.listings, listing)
	m.media[listing.ID] = media
	return nil
}

func (m *mockStore) CreateImportRun(_ context.Context, run *model.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runSeq++
	run.ID = fmt.Sprintf("run-%d", m.runSeq)
	run.StartedAt = time.Now()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *mockStore) FinalizeImportRun(_ context.Context, run *model.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	run.FinishedAt = &now
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *mockStore) GetImportRun(_ context.Context, runID string) (*model.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func (m *mockStore) ListImportRuns(_ context.Context, _ store.RunFilter) ([]model.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ImportRun
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

// mockAttom is a canned AttomAPI.
type mockAttom struct {
	snapshot    []json.RawMessage
	snapshotErr error

	detail    map[string]json.RawMessage
	detailErr error

	avm    map[string]json.RawMessage
	avmErr error

	avmCalls int
}

func (m *mockAttom) SearchSnapshot(context.Context, float64, float64, float64, int) ([]json.RawMessage, error) {
	return m.snapshot, m.snapshotErr
}

func (m *mockAttom) Detail(_ context.Context, attomID string) (json.RawMessage, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	if d, ok := m.detail[attomID]; ok {
		return d, nil
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockAttom) AVM(_ context.Context, address1, _ string) (json.RawMessage, error) {
	m.avmCalls++
	if m.avmErr != nil {
		return nil, m.avmErr
	}
	if a, ok := m.avm[address1]; ok {
		return a, nil
	}
	return json.RawMessage(`{}`), nil
}

// mockActor is a canned ActorAPI that records the input it was given.
type mockActor struct {
	items []json.RawMessage
	err   error

	gotActorID string
	gotInput   map[string]any
}

func (m *mockActor) RunSyncGetDatasetItems(_ context.Context, actorID string, input map[string]any) ([]json.RawMessage, error) {
	m.gotActorID = actorID
	m.gotInput = input
	return m.items, m.err
}

// mockPhotos is a canned PhotoSource.
type mockPhotos struct {
	urls map[string][]string
	err  error
}

func (m *mockPhotos) Photos(_ context.Context, sourceID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.urls[sourceID], nil
}
