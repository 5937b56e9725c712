package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/luxkey/listing-ingest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// and dry-run-ish development ingests; production uses Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	region     TEXT,
	market     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS listings (
	id                TEXT PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	source            TEXT NOT NULL,
	source_id         TEXT,
	source_url        TEXT,
	city_id           TEXT NOT NULL REFERENCES cities(id),
	status            TEXT NOT NULL DEFAULT 'LIVE',
	visibility        TEXT NOT NULL DEFAULT 'PUBLIC',
	verification      TEXT NOT NULL DEFAULT 'SELF_REPORTED',
	title             TEXT NOT NULL,
	description       TEXT,
	address           TEXT,
	lat               REAL,
	lng               REAL,
	property_type     TEXT,
	bedrooms          INTEGER,
	bathrooms         REAL,
	built_sqft        REAL,
	plot_sqft         REAL,
	built_m2          INTEGER,
	plot_m2           INTEGER,
	price             REAL CHECK (price IS NULL OR price >= 0),
	currency          TEXT NOT NULL DEFAULT 'USD',
	price_confidence  INTEGER NOT NULL DEFAULT 0,
	data_completeness INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_source_source_id
	ON listings(source, source_id) WHERE source_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_address_city
	ON listings(address, city_id) WHERE address IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_listings_city_id ON listings(city_id);

CREATE TABLE IF NOT EXISTS listing_media (
	id         TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	url        TEXT NOT NULL,
	alt        TEXT,
	sort_order INTEGER NOT NULL DEFAULT 0,
	kind       TEXT NOT NULL DEFAULT 'image',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_listing_media_listing_id ON listing_media(listing_id);

CREATE TABLE IF NOT EXISTS import_runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	scope         TEXT NOT NULL,
	region        TEXT,
	market        TEXT,
	params        TEXT,
	status        TEXT NOT NULL DEFAULT 'RUNNING',
	scanned       INTEGER NOT NULL DEFAULT 0,
	created       INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	errors        INTEGER NOT NULL DEFAULT 0,
	error_samples TEXT,
	message       TEXT,
	started_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_import_runs_source ON import_runs(source);
CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertCity(ctx context.Context, city model.City) (*model.City, error) {
	if city.ID == "" {
		city.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cities (id, slug, name, region, market, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET name = excluded.name, region = excluded.region, market = excluded.market`,
		city.ID, city.Slug, city.Name, city.Region, city.Market, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert city %s", city.Slug)
	}

	// Re-read the row: on conflict the existing id wins over the one generated above.
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at FROM cities WHERE slug = ?`, city.Slug)
	if err := row.Scan(&city.ID, &city.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: read back city %s", city.Slug)
	}
	return &city, nil
}

func (s *SQLiteStore) ListingExists(ctx context.Context, source model.Source, sourceID, address *string, cityID string) (bool, error) {
	var exists bool

	if sourceID != nil && *sourceID != "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM listings WHERE source = ? AND source_id = ?)`,
			string(source), *sourceID,
		).Scan(&exists)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: listing exists by source id")
		}
		if exists {
			return true, nil
		}
	}

	if address != nil && *address != "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM listings WHERE address = ? AND city_id = ?)`,
			*address, cityID,
		).Scan(&exists)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: listing exists by address")
		}
	}

	return exists, nil
}

func (s *SQLiteStore) CreateListing(ctx context.Context, listing *model.Listing, media []model.ListingMedia) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin create listing")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO listings
		 (id, slug, source, source_id, source_url, city_id, status, visibility, verification,
		  title, description, address, lat, lng, property_type, bedrooms, bathrooms,
		  built_sqft, plot_sqft, built_m2, plot_m2, price, currency,
		  price_confidence, data_completeness, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ID, listing.Slug, string(listing.Source), listing.SourceID, listing.SourceURL,
		listing.CityID, listing.Status, listing.Visibility, listing.Verification,
		listing.Title, listing.Description, listing.Address, listing.Lat, listing.Lng,
		listing.PropertyType, listing.Bedrooms, listing.Bathrooms,
		listing.BuiltSqft, listing.PlotSqft, listing.BuiltM2, listing.PlotM2,
		listing.Price, listing.Currency, listing.PriceConfidence, listing.DataCompleteness,
		listing.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return eris.Wrapf(err, "sqlite: insert listing %s", listing.Slug)
	}

	now := time.Now().UTC()
	for i := range media {
		m := &media[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		m.ListingID = listing.ID
		if m.Kind == "" {
			m.Kind = model.MediaKindImage
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO listing_media (id, listing_id, url, alt, sort_order, kind, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ListingID, m.URL, m.Alt, m.SortOrder, m.Kind, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert media for listing %s", listing.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit create listing")
	}
	return nil
}

func (s *SQLiteStore) CreateImportRun(ctx context.Context, run *model.ImportRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	var paramsJSON []byte
	if run.Params != nil {
		var err error
		paramsJSON, err = json.Marshal(run.Params)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run params")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, scope, region, market, params, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Source), string(run.Scope), run.Region, run.Market,
		nullableString(paramsJSON), string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "sqlite: insert import run")
}

func (s *SQLiteStore) FinalizeImportRun(ctx context.Context, run *model.ImportRun) error {
	samplesJSON, err := json.Marshal(run.ErrorSamples)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error samples")
	}

	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt

	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs
		 SET status = ?, scanned = ?, created = ?, skipped = ?, errors = ?,
		     error_samples = ?, message = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Scanned, run.Created, run.Skipped, run.Errors,
		string(samplesJSON), run.Message, finishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize import run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("import run not found: %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) GetImportRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, scope, region, market, params, status, scanned, created, skipped,
		        errors, error_samples, message, started_at, finished_at
		 FROM import_runs WHERE id = ?`,
		runID,
	)
	run, err := scanSQLiteImportRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get import run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListImportRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error) {
	query := `SELECT id, source, scope, region, market, params, status, scanned, created, skipped,
	                 errors, error_samples, message, started_at, finished_at
	          FROM import_runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list import runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		run, err := scanSQLiteImportRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list import runs iterate")
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func scanSQLiteImportRun(row scannable) (*model.ImportRun, error) {
	var run model.ImportRun
	var region, market, message, paramsJSON, samplesJSON sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Source, &run.Scope, &region, &market, &paramsJSON,
		&run.Status, &run.Scanned, &run.Created, &run.Skipped, &run.Errors,
		&samplesJSON, &message, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Region = region.String
	run.Market = market.String
	run.Message = message.String
	if paramsJSON.Valid {
		_ = json.Unmarshal([]byte(paramsJSON.String), &run.Params)
	}
	if samplesJSON.Valid {
		_ = json.Unmarshal([]byte(samplesJSON.String), &run.ErrorSamples)
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}
