package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clubscout/clubscout-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// default driver for local development and one-off CLI runs.
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS activities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL,
	subcategory  TEXT,
	address      TEXT NOT NULL,
	postal_code  TEXT,
	city         TEXT NOT NULL,
	phone        TEXT,
	email        TEXT,
	website      TEXT,
	latitude     REAL,
	longitude    REAL,
	neighborhood TEXT,
	description  TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_activities_name ON activities(name);
CREATE INDEX IF NOT EXISTS idx_activities_city ON activities(city);
CREATE INDEX IF NOT EXISTS idx_activities_category ON activities(category);
CREATE INDEX IF NOT EXISTS idx_activities_coords ON activities(latitude, longitude);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id          TEXT PRIMARY KEY,
	location    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_started_at ON scrape_runs(started_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateActivity(ctx context.Context, cand model.Candidate) (*model.Activity, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities
		 (id, name, category, subcategory, address, postal_code, city, phone, email, website, latitude, longitude, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, cand.Name, string(cand.Category), nullIfEmpty(cand.Subcategory),
		cand.Address, nullIfEmpty(cand.PostalCode), cand.City,
		nullIfEmpty(cand.Phone), nullIfEmpty(cand.Email), nullIfEmpty(cand.Website),
		cand.Latitude, cand.Longitude, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert activity %q", cand.Name)
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

func (s *SQLiteStore) UpdateActivity(ctx context.Context, act model.Activity) (*model.Activity, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE activities SET
		 name = ?, category = ?, subcategory = ?, address = ?, postal_code = ?,
		 city = ?, phone = ?, email = ?, website = ?, latitude = ?, longitude = ?,
		 neighborhood = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		act.Name, string(act.Category), nullIfEmpty(act.Subcategory),
		act.Address, nullIfEmpty(act.PostalCode), act.City,
		nullIfEmpty(act.Phone), nullIfEmpty(act.Email), nullIfEmpty(act.Website),
		act.Latitude, act.Longitude,
		nullIfEmpty(act.Neighborhood), nullIfEmpty(act.Description),
		now, act.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update activity %s", act.ID)
	}
	if err := checkRowsAffected(res, "activity", act.ID); err != nil {
		return nil, err
	}

	act.UpdatedAt = now
	return &act, nil
}

func (s *SQLiteStore) FindByNameAndCity(ctx context.Context, name, city string) (*model.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE LOWER(name) = LOWER(?) AND LOWER(city) = LOWER(?)
		 LIMIT 1`,
		name, city,
	)
	return scanSQLiteActivity(row, "sqlite: find by name and city")
}

func (s *SQLiteStore) FindByNameAndBoundingBox(ctx context.Context, name string, lat, lon, tolerance float64) (*model.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE LOWER(name) = LOWER(?)
		   AND latitude BETWEEN ? AND ?
		   AND longitude BETWEEN ? AND ?
		 LIMIT 1`,
		name, lat-tolerance, lat+tolerance, lon-tolerance, lon+tolerance,
	)
	return scanSQLiteActivity(row, "sqlite: find by name and bounding box")
}

func (s *SQLiteStore) ListActivities(ctx context.Context, filter ActivityFilter) ([]model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.City != "" {
		query += ` AND LOWER(city) = LOWER(?)`
		args = append(args, filter.City)
	}
	query += ` ORDER BY name ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list activities")
	}
	defer rows.Close()

	return collectSQLiteActivities(rows, "sqlite: list activities")
}

func (s *SQLiteStore) ListWithCoordinates(ctx context.Context, category model.Category) ([]model.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
	          WHERE latitude IS NOT NULL AND longitude IS NOT NULL`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list with coordinates")
	}
	defer rows.Close()

	return collectSQLiteActivities(rows, "sqlite: list with coordinates")
}

func (s *SQLiteStore) StartScrapeRun(ctx context.Context, location string) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, location, status, started_at) VALUES (?, ?, ?, ?)`,
		id, location, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert scrape run for %s", location)
	}

	return &model.ScrapeRun{
		ID:        id,
		Location:  location,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteScrapeRun(ctx context.Context, runID string, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET status = ?, stats = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete scrape run %s", runID)
	}
	return checkRowsAffected(res, "scrape run", runID)
}

func (s *SQLiteStore) FailScrapeRun(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail scrape run %s", runID)
	}
	return checkRowsAffected(res, "scrape run", runID)
}

func (s *SQLiteStore) ListScrapeRuns(ctx context.Context, limit int) ([]model.ScrapeRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, location, status, stats, error, started_at, finished_at
		 FROM scrape_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scrape runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		var r model.ScrapeRun
		var statsJSON, errMsg *string

		if err := rows.Scan(&r.ID, &r.Location, &r.Status, &statsJSON, &errMsg, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scrape run")
		}
		if statsJSON != nil && *statsJSON != "" {
			r.Stats = &model.RunStats{}
			if err := json.Unmarshal([]byte(*statsJSON), r.Stats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
			}
		}
		r.Error = deref(errMsg)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list scrape runs iterate")
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteActivity(row rowScanner, op string) (*model.Activity, error) {
	var a model.Activity
	var subcategory, postalCode, phone, email, website, neighborhood, description *string

	err := row.Scan(&a.ID, &a.Name, &a.Category, &subcategory, &a.Address, &postalCode, &a.City,
		&phone, &email, &website, &a.Latitude, &a.Longitude, &neighborhood, &description,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func collectSQLiteActivities(rows *sql.Rows, op string) ([]model.Activity, error) {
	var activities []model.Activity
	for rows.Next() {
		a, err := scanSQLiteActivity(rows, op)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, eris.Wrap(rows.Err(), op+" iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
