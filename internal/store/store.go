package store

import (
	"context"

	"github.com/clubscout/clubscout-cli/internal/model"
)

// ActivityFilter specifies criteria for listing activities.
type ActivityFilter struct {
	Category model.Category `json:"category,omitempty"`
	City     string         `json:"city,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the activity directory.
// Lookup methods return (nil, nil) when no row matches; name matching is
// case-insensitive.
type Store interface {
	// Activities
	CreateActivity(ctx context.Context, cand model.Candidate) (*model.Activity, error)
	UpdateActivity(ctx context.Context, act model.Activity) (*model.Activity, error)
	FindByNameAndCity(ctx context.Context, name, city string) (*model.Activity, error)
	FindByNameAndBoundingBox(ctx context.Context, name string, lat, lon, tolerance float64) (*model.Activity, error)
	ListActivities(ctx context.Context, filter ActivityFilter) ([]model.Activity, error)
	ListWithCoordinates(ctx context.Context, category model.Category) ([]model.Activity, error)

	// Scrape runs
	StartScrapeRun(ctx context.Context, location string) (*model.ScrapeRun, error)
	CompleteScrapeRun(ctx context.Context, runID string, stats *model.RunStats) error
	FailScrapeRun(ctx context.Context, runID string, runErr error) error
	ListScrapeRuns(ctx context.Context, limit int) ([]model.ScrapeRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// nullIfEmpty maps empty optional text to NULL so that partially filled
// rows stay distinguishable from rows holding an explicit empty value.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
