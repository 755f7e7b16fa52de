package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/scraper"
	"github.com/clubscout/clubscout-cli/internal/store"
)

// memStore is an in-memory store.Store for pipeline tests.
type memStore struct {
	mu         sync.Mutex
	activities []model.Activity
	runs       []model.ScrapeRun
	nextID     int

	failCreateFor string // candidate name whose create always errors
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) CreateActivity(_ context.Context, cand model.Candidate) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateFor != "" && cand.Name == m.failCreateFor {
		return nil, fmt.Errorf("create refused for %s", cand.Name)
	}
	m.nextID++
	now := time.Now().UTC()
	act := model.Activity{
		ID:          fmt.Sprintf("act-%d", m.nextID),
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
	}
	m.activities = append(m.activities, act)
	return &act, nil
}

func (m *memStore) UpdateActivity(_ context.Context, act model.Activity) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.activities {
		if m.activities[i].ID == act.ID {
			act.UpdatedAt = time.Now().UTC()
			m.activities[i] = act
			return &act, nil
		}
	}
	return nil, fmt.Errorf("activity not found: %s", act.ID)
}

func (m *memStore) FindByNameAndCity(_ context.Context, name, city string) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.activities {
		a := m.activities[i]
		if strings.EqualFold(a.Name, name) && strings.EqualFold(a.City, city) {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByNameAndBoundingBox(_ context.Context, name string, lat, lon, tolerance float64) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.activities {
		a := m.activities[i]
		if !strings.EqualFold(a.Name, name) || !a.HasCoordinates() {
			continue
		}
		if *a.Latitude >= lat-tolerance && *a.Latitude <= lat+tolerance &&
			*a.Longitude >= lon-tolerance && *a.Longitude <= lon+tolerance {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListActivities(_ context.Context, filter store.ActivityFilter) ([]model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Activity
	for _, a := range m.activities {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.City != "" && !strings.EqualFold(a.City, filter.City) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) ListWithCoordinates(_ context.Context, category model.Category) ([]model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Activity
	for _, a := range m.activities {
		if !a.HasCoordinates() {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) StartScrapeRun(_ context.Context, location string) (*model.ScrapeRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run := model.ScrapeRun{
		ID:        fmt.Sprintf("run-%d", m.nextID),
		Location:  location,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	m.runs = append(m.runs, run)
	return &run, nil
}

func (m *memStore) CompleteScrapeRun(_ context.Context, runID string, stats *model.RunStats) error {
	return m.finishRun(runID, model.RunStatusComplete, stats, "")
}

func (m *memStore) FailScrapeRun(_ context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	return m.finishRun(runID, model.RunStatusFailed, nil, msg)
}

func (m *memStore) finishRun(runID string, status model.RunStatus, stats *model.RunStats, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == runID {
			now := time.Now().UTC()
			m.runs[i].Status = status
			m.runs[i].Stats = stats
			m.runs[i].Error = msg
			m.runs[i].FinishedAt = &now
			return nil
		}
	}
	return fmt.Errorf("scrape run not found: %s", runID)
}

func (m *memStore) ListScrapeRuns(_ context.Context, limit int) ([]model.ScrapeRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := append([]model.ScrapeRun(nil), m.runs...)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *memStore) Ping(context.Context) error    { return nil }
func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func allActivities() store.ActivityFilter { return store.ActivityFilter{} }

// fakeSource is a scraper.Source returning canned candidates.
type fakeSource struct {
	name       string
	candidates []model.Candidate
	err        error
	calls      int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context, scraper.Query) ([]model.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}
