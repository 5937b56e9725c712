package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/luxkey/listing-ingest/internal/db"
	"github.com/luxkey/listing-ingest/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists the hot-path queries prepared on each new
// connection. The per-item loop hits the existence checks constantly.
var preparedStatements = map[string]string{
	"listing_exists_source":  `SELECT EXISTS (SELECT 1 FROM listings WHERE source = $1 AND source_id = $2)`,
	"listing_exists_address": `SELECT EXISTS (SELECT 1 FROM listings WHERE address = $1 AND city_id = $2)`,
	"insert_import_run":      `INSERT INTO import_runs (id, source, scope, region, market, params, status, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"finalize_import_run":    `UPDATE import_runs SET status = $1, scanned = $2, created = $3, skipped = $4, errors = $5, error_samples = $6, message = $7, finished_at = $8 WHERE id = $9`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	region     TEXT,
	market     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	lat               DOUBLE PRECISION,
	lng               DOUBLE PRECISION,
	property_type     TEXT,
	bedrooms          INTEGER,
	bathrooms         DOUBLE PRECISION,
	built_sqft        DOUBLE PRECISION,
	plot_sqft         DOUBLE PRECISION,
	built_m2          INTEGER,
	plot_m2           INTEGER,
	price             DOUBLE PRECISION CHECK (price IS NULL OR price >= 0),
	currency          TEXT NOT NULL DEFAULT 'USD',
	price_confidence  INTEGER NOT NULL DEFAULT 0,
	data_completeness INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listing_media_listing_id ON listing_media(listing_id);

CREATE TABLE IF NOT EXISTS import_runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	scope         TEXT NOT NULL,
	region        TEXT,
	market        TEXT,
	params        JSONB,
	status        TEXT NOT NULL DEFAULT 'RUNNING',
	scanned       INTEGER NOT NULL DEFAULT 0,
	created       INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	errors        INTEGER NOT NULL DEFAULT 0,
	error_samples JSONB,
	message       TEXT,
	started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_import_runs_source ON import_runs(source);
CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) UpsertCity(ctx context.Context, city model.City) (*model.City, error) {
	if city.ID == "" {
		city.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO cities (id, slug, name, region, market, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, region = EXCLUDED.region, market = EXCLUDED.market
		 RETURNING id, created_at`,
		city.ID, city.Slug, city.Name, city.Region, city.Market, now,
	).Scan(&city.ID, &city.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert city %s", city.Slug)
	}
	return &city, nil
}

func (s *PostgresStore) ListingExists(ctx context.Context, source model.Source, sourceID, address *string, cityID string) (bool, error) {
	var exists bool

	if sourceID != nil && *sourceID != "" {
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM listings WHERE source = $1 AND source_id = $2)`,
			string(source), *sourceID,
		).Scan(&exists)
		if err != nil {
			return false, eris.Wrap(err, "postgres: listing exists by source id")
		}
		if exists {
			return true, nil
		}
	}

	if address != nil && *address != "" {
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM listings WHERE address = $1 AND city_id = $2)`,
			*address, cityID,
		).Scan(&exists)
		if err != nil {
			return false, eris.Wrap(err, "postgres: listing exists by address")
		}
	}

	return exists, nil
}

func (s *PostgresStore) CreateListing(ctx context.Context, listing *model.Listing, media []model.ListingMedia) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin create listing")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO listings
		 (id, slug, source, source_id, source_url, city_id, status, visibility, verification,
		  title, description, address, lat, lng, property_type, bedrooms, bathrooms,
		  built_sqft, plot_sqft, built_m2, plot_m2, price, currency,
		  price_confidence, data_completeness, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		         $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		listing.ID, listing.Slug, string(listing.Source), listing.SourceID, listing.SourceURL,
		listing.CityID, listing.Status, listing.Visibility, listing.Verification,
		listing.Title, listing.Description, listing.Address, listing.Lat, listing.Lng,
		listing.PropertyType, listing.Bedrooms, listing.Bathrooms,
		listing.BuiltSqft, listing.PlotSqft, listing.BuiltM2, listing.PlotM2,
		listing.Price, listing.Currency, listing.PriceConfidence, listing.DataCompleteness,
		listing.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return eris.Wrapf(err, "postgres: insert listing %s", listing.Slug)
	}

	if len(media) > 0 {
		rows := make([][]any, 0, len(media))
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
			rows = append(rows, []any{m.ID, m.ListingID, m.URL, m.Alt, m.SortOrder, m.Kind, now})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"listing_media"},
			[]string{"id", "listing_id", "url", "alt", "sort_order", "kind", "created_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert media for listing %s", listing.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit create listing")
	}
	return nil
}

func (s *PostgresStore) CreateImportRun(ctx context.Context, run *model.ImportRun) error {
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
			return eris.Wrap(err, "postgres: marshal run params")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, source, scope, region, market, params, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Source), string(run.Scope), run.Region, run.Market,
		paramsJSON, string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "postgres: insert import run")
}

func (s *PostgresStore) FinalizeImportRun(ctx context.Context, run *model.ImportRun) error {
	samplesJSON, err := json.Marshal(run.ErrorSamples)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal error samples")
	}

	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt

	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs
		 SET status = $1, scanned = $2, created = $3, skipped = $4, errors = $5,
		     error_samples = $6, message = $7, finished_at = $8
		 WHERE id = $9`,
		string(run.Status), run.Scanned, run.Created, run.Skipped, run.Errors,
		samplesJSON, run.Message, finishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize import run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetImportRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, scope, region, market, params, status, scanned, created, skipped,
		        errors, error_samples, message, started_at, finished_at
		 FROM import_runs WHERE id = $1`,
		runID,
	)
	run, err := scanImportRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get import run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListImportRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error) {
	query := `SELECT id, source, scope, region, market, params, status, scanned, created, skipped,
	                 errors, error_samples, message, started_at, finished_at
	          FROM import_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, string(filter.Source))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list import runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan import run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list import runs iterate")
}

// isUniqueViolation reports whether err is a PostgreSQL 23505 error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type scannable interface {
	Scan(dest ...any) error
}

func scanImportRun(row scannable) (*model.ImportRun, error) {
	var run model.ImportRun
	var region, market, message *string
	var paramsJSON, samplesJSON []byte

	err := row.Scan(&run.ID, &run.Source, &run.Scope, &region, &market, &paramsJSON,
		&run.Status, &run.Scanned, &run.Created, &run.Skipped, &run.Errors,
		&samplesJSON, &message, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}

	if region != nil {
		run.Region = *region
	}
	if market != nil {
		run.Market = *market
	}
	if message != nil {
		run.Message = *message
	}
	if paramsJSON != nil {
		_ = json.Unmarshal(paramsJSON, &run.Params)
	}
	if samplesJSON != nil {
		_ = json.Unmarshal(samplesJSON, &run.ErrorSamples)
	}
	return &run, nil
}
