// Package store persists cities, listings, media, and import runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/luxkey/listing-ingest/internal/model"
)

// ErrDuplicate is returned by CreateListing when a unique constraint on
// (source, source_id) or (address, city_id) rejects the insert. It converts
// the dedup read-then-write race into a handled conflict.
var ErrDuplicate = eris.New("store: duplicate listing")

// ErrNotFound is returned by lookups for missing rows.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing import runs.
type RunFilter struct {
	Source model.Source    `json:"source,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingest pipeline.
type Store interface {
	// Cities
	UpsertCity(ctx context.Context, city model.City) (*model.City, error)

	// Listings. ListingExists matches on (source, sourceID) when sourceID is
	// present, falling back to (address, cityID). CreateListing writes the
	// listing and its media rows in one transaction.
	ListingExists(ctx context.Context, source model.Source, sourceID, address *string, cityID string) (bool, error)
	CreateListing(ctx context.Context, listing *model.Listing, media []model.ListingMedia) error

	// Import runs
	CreateImportRun(ctx context.Context, run *model.ImportRun) error
	FinalizeImportRun(ctx context.Context, run *model.ImportRun) error
	GetImportRun(ctx context.Context, runID string) (*model.ImportRun, error)
	ListImportRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
