package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clubscout/clubscout-cli/internal/db"
	"github.com/clubscout/clubscout-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const activityColumns = `id, name, category, subcategory, address, postal_code, city,
	phone, email, website, latitude, longitude, neighborhood, description,
	created_at, updated_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

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

// NewPostgresWithPool wraps an existing pool. Used by tests and by the
// seed command, which shares one pool between the store and bulk COPY.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk seeding).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS activities (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL,
	subcategory  TEXT,
	address      TEXT NOT NULL,
	postal_code  TEXT,
	city         TEXT NOT NULL,
	phone        TEXT,
	email        TEXT,
	website      TEXT,
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	neighborhood TEXT,
	description  TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_activities_lower_name ON activities(LOWER(name));
CREATE INDEX IF NOT EXISTS idx_activities_lower_city ON activities(LOWER(city));
CREATE INDEX IF NOT EXISTS idx_activities_category ON activities(category);
CREATE INDEX IF NOT EXISTS idx_activities_coords ON activities(latitude, longitude);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	location    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_started_at ON scrape_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_status ON scrape_runs(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) CreateActivity(ctx context.Context, cand model.Candidate) (*model.Activity, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO activities
		 (id, name, category, subcategory, address, postal_code, city, phone, email, website, latitude, longitude, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, cand.Name, string(cand.Category), nullIfEmpty(cand.Subcategory),
		cand.Address, nullIfEmpty(cand.PostalCode), cand.City,
		nullIfEmpty(cand.Phone), nullIfEmpty(cand.Email), nullIfEmpty(cand.Website),
		cand.Latitude, cand.Longitude, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert activity %q", cand.Name)
	}

	return &model.Activity{
		ID:          id,
		Name:        cand.Name,
		Category:    cand.Category,
		Subcategory: cand.Subcategory,
		Address:     cand.Address,
		PostalCode:  cand.PostalCode,
		City:        cand.City,
		Phone:       cand.Phone,
		Email:       cand.Email,
		Website:     cand.Website,
		Latitude:    cand.Latitude,
		Longitude:   cand.Longitude,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *PostgresStore) UpdateActivity(ctx context.Context, act model.Activity) (*model.Activity, error) {
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE activities SET
		 name = $1, category = $2, subcategory = $3, address = $4, postal_code = $5,
		 city = $6, phone = $7, email = $8, website = $9, latitude = $10, longitude = $11,
		 neighborhood = $12, description = $13, updated_at = $14
		 WHERE id = $15`,
		act.Name, string(act.Category), nullIfEmpty(act.Subcategory),
		act.Address, nullIfEmpty(act.PostalCode), act.City,
		nullIfEmpty(act.Phone), nullIfEmpty(act.Email), nullIfEmpty(act.Website),
		act.Latitude, act.Longitude,
		nullIfEmpty(act.Neighborhood), nullIfEmpty(act.Description),
		now, act.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update activity %s", act.ID)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Errorf("activity not found: %s", act.ID)
	}

	act.UpdatedAt = now
	return &act, nil
}

func (s *PostgresStore) FindByNameAndCity(ctx context.Context, name, city string) (*model.Activity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE LOWER(name) = LOWER($1) AND LOWER(city) = LOWER($2)
		 LIMIT 1`,
		name, city,
	)
	return scanActivityRow(row, "postgres: find by name and city")
}

func (s *PostgresStore) FindByNameAndBoundingBox(ctx context.Context, name string, lat, lon, tolerance float64) (*model.Activity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE LOWER(name) = LOWER($1)
		   AND latitude BETWEEN $2 AND $3
		   AND longitude BETWEEN $4 AND $5
		 LIMIT 1`,
		name, lat-tolerance, lat+tolerance, lon-tolerance, lon+tolerance,
	)
	return scanActivityRow(row, "postgres: find by name and bounding box")
}

func (s *PostgresStore) ListActivities(ctx context.Context, filter ActivityFilter) ([]model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND LOWER(city) = LOWER($%d)`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	query += ` ORDER BY name ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
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
		return nil, eris.Wrap(err, "postgres: list activities")
	}
	defer rows.Close()

	return collectActivities(rows, "postgres: list activities")
}

func (s *PostgresStore) ListWithCoordinates(ctx context.Context, category model.Category) ([]model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
	          WHERE latitude IS NOT NULL AND longitude IS NOT NULL`
	args := []any{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, string(category))
	}
	query += ` ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list with coordinates")
	}
	defer rows.Close()

	return collectActivities(rows, "postgres: list with coordinates")
}

func (s *PostgresStore) StartScrapeRun(ctx context.Context, location string) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, location, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, location, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert scrape run for %s", location)
	}

	return &model.ScrapeRun{
		ID:        id,
		Location:  location,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteScrapeRun(ctx context.Context, runID string, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $1, stats = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), statsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete scrape run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scrape run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailScrapeRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail scrape run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scrape run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListScrapeRuns(ctx context.Context, limit int) ([]model.ScrapeRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, location, status, stats, error, started_at, finished_at
		 FROM scrape_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scrape runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		var r model.ScrapeRun
		var statsJSON []byte
		var errMsg *string

		if err := rows.Scan(&r.ID, &r.Location, &r.Status, &statsJSON, &errMsg, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scrape run")
		}
		if len(statsJSON) > 0 {
			r.Stats = &model.RunStats{}
			if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run stats")
			}
		}
		r.Error = deref(errMsg)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list scrape runs iterate")
}

// scanActivityRow scans a single activity row, mapping pgx.ErrNoRows to
// (nil, nil).
func scanActivityRow(row pgx.Row, op string) (*model.Activity, error) {
	var a model.Activity
	var subcategory, postalCode, phone, email, website, neighborhood, description *string

	err := row.Scan(&a.ID, &a.Name, &a.Category, &subcategory, &a.Address, &postalCode, &a.City,
		&phone, &email, &website, &a.Latitude, &a.Longitude, &neighborhood, &description,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, op)
	}

	a.Subcategory = deref(subcategory)
	a.PostalCode = deref(postalCode)
	a.Phone = deref(phone)
	a.Email = deref(email)
	a.Website = deref(website)
	a.Neighborhood = deref(neighborhood)
	a.Description = deref(description)
	return &a, nil
}

func collectActivities(rows pgx.Rows, op string) ([]model.Activity, error) {
	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivityRow(rows, op)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, eris.Wrap(rows.Err(), op+" iterate")
}
