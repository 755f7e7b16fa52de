package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubscout/clubscout-cli/internal/config"
	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/pipeline"
	"github.com/clubscout/clubscout-cli/internal/scraper"
	"github.com/clubscout/clubscout-cli/internal/store"
)

// fakeStore is an in-memory store.Store for handler tests.
type fakeStore struct {
	mu         sync.Mutex
	activities []model.Activity
	runs       []model.ScrapeRun
	nextID     int
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) CreateActivity(_ context.Context, cand model.Candidate) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	now := time.Now().UTC()
	act := model.Activity{
		ID: fmt.Sprintf("act-%d", f.nextID), Name: cand.Name, Category: cand.Category,
		Subcategory: cand.Subcategory, Address: cand.Address, PostalCode: cand.PostalCode,
		City: cand.City, Phone: cand.Phone, Email: cand.Email, Website: cand.Website,
		Latitude: cand.Latitude, Longitude: cand.Longitude, CreatedAt: now, UpdatedAt: now,
	}
	f.activities = append(f.activities, act)
	return &act, nil
}

func (f *fakeStore) UpdateActivity(_ context.Context, act model.Activity) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.activities {
		if f.activities[i].ID == act.ID {
			f.activities[i] = act
			return &act, nil
		}
	}
	return nil, fmt.Errorf("activity not found: %s", act.ID)
}

func (f *fakeStore) FindByNameAndCity(_ context.Context, name, city string) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.activities {
		a := f.activities[i]
		if strings.EqualFold(a.Name, name) && strings.EqualFold(a.City, city) {
			return &a, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindByNameAndBoundingBox(_ context.Context, name string, lat, lon, tol float64) (*model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.activities {
		a := f.activities[i]
		if strings.EqualFold(a.Name, name) && a.HasCoordinates() &&
			*a.Latitude >= lat-tol && *a.Latitude <= lat+tol &&
			*a.Longitude >= lon-tol && *a.Longitude <= lon+tol {
			return &a, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListActivities(_ context.Context, filter store.ActivityFilter) ([]model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Activity
	for _, a := range f.activities {
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

func (f *fakeStore) ListWithCoordinates(_ context.Context, category model.Category) ([]model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Activity
	for _, a := range f.activities {
		if a.HasCoordinates() && (category == "" || a.Category == category) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) StartScrapeRun(_ context.Context, location string) (*model.ScrapeRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	run := model.ScrapeRun{
		ID: fmt.Sprintf("run-%d", f.nextID), Location: location,
		Status: model.RunStatusRunning, StartedAt: time.Now().UTC(),
	}
	f.runs = append(f.runs, run)
	return &run, nil
}

func (f *fakeStore) CompleteScrapeRun(_ context.Context, runID string, stats *model.RunStats) error {
	return nil
}
func (f *fakeStore) FailScrapeRun(_ context.Context, runID string, runErr error) error { return nil }
func (f *fakeStore) ListScrapeRuns(_ context.Context, limit int) ([]model.ScrapeRun, error) {
	return f.runs, nil
}
func (f *fakeStore) Ping(context.Context) error    { return nil }
func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

type fakeSource struct {
	candidates []model.Candidate
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Fetch(context.Context, scraper.Query) ([]model.Candidate, error) {
	return f.candidates, nil
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Server.Port = 8080
	c.Cron.Secret = "testsecret"
	c.Cron.Quota = 2
	c.Scrape.RadiusCapKm = 50
	c.Scrape.DefaultRadiusKm = 10
	c.Pipeline.DedupPrecision = 4
	c.Pipeline.BBoxToleranceDeg = 0.001
	return c
}

func newTestServer(t *testing.T, st store.Store, candidates []model.Candidate) *httptest.Server {
	t.Helper()
	eng := pipeline.New(st, []scraper.Source{&fakeSource{candidates: candidates}})
	srv := httptest.NewServer(newRouter(st, eng, testConfig()))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestServeHealth(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	var body map[string]string
	status := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestServeScrapeLocation(t *testing.T) {
	st := &fakeStore{}
	srv := newTestServer(t, st, []model.Candidate{
		{Name: "Judo Club", Category: model.CategorySport, Address: "3 rue des Arts", City: "Toulouse"},
	})

	resp, err := http.Post(srv.URL+"/scrape-location", "application/json",
		strings.NewReader(`{"city":"Toulouse","radius_km":10}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success  bool            `json:"success"`
		Location string          `json:"location"`
		Stats    *model.RunStats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "Toulouse", body.Location)
	require.NotNil(t, body.Stats)
	assert.Equal(t, 1, body.Stats.Created)
}

func TestServeScrapeLocation_Validation(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	cases := []string{
		`{"radius_km":10}`,                    // no city, no coords
		`{"city":"Toulouse"}`,                 // no radius
		`{"city":"Toulouse","radius_km":0}`,   // zero radius
		`{"city":"Toulouse","radius_km":120}`, // over cap
		`not json`,
	}
	for _, payload := range cases {
		resp, err := http.Post(srv.URL+"/scrape-location", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
	}
}

func TestServeCron_RequiresSecret(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	resp, err := http.Get(srv.URL + "/cron/scrape-activities")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/cron/scrape-activities", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeCron_RunsRotation(t *testing.T) {
	st := &fakeStore{}
	srv := newTestServer(t, st, []model.Candidate{
		{Name: "Club A", Category: model.CategorySport, Address: "1 rue A"},
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/cron/scrape-activities", nil)
	req.Header.Set("Authorization", "Bearer testsecret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success            bool                       `json:"success"`
		LocationsProcessed int                        `json:"locations_processed"`
		Results            []pipeline.RotationResult  `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	// Daily quota from config.
	assert.Equal(t, 2, body.LocationsProcessed)
	require.Len(t, body.Results, 2)
	assert.NotEmpty(t, body.Results[0].Location)
}

func TestServeNearby(t *testing.T) {
	st := &fakeStore{}
	ctx := context.Background()
	_, err := st.CreateActivity(ctx, model.Candidate{
		Name: "Proche", Category: model.CategorySport, Address: "a", City: "Toulouse",
		Latitude: model.Float64(43.605), Longitude: model.Float64(1.445),
	})
	require.NoError(t, err)
	_, err = st.CreateActivity(ctx, model.Candidate{
		Name: "Loin", Category: model.CategorySport, Address: "b", City: "Paris",
		Latitude: model.Float64(48.8566), Longitude: model.Float64(2.3522),
	})
	require.NoError(t, err)

	srv := newTestServer(t, st, nil)

	var body struct {
		Count      int `json:"count"`
		Activities []struct {
			Name       string  `json:"name"`
			DistanceKm float64 `json:"distance_km"`
		} `json:"activities"`
	}
	status := getJSON(t, srv.URL+"/activities/nearby?lat=43.6047&lon=1.4442&radius_km=5", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Proche", body.Activities[0].Name)
	assert.Less(t, body.Activities[0].DistanceKm, 5.0)
}

func TestServeNearby_Validation(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	resp, err := http.Get(srv.URL + "/activities/nearby?lat=abc&lon=1.44")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeSearch(t *testing.T) {
	st := &fakeStore{}
	ctx := context.Background()
	for _, c := range []model.Candidate{
		{Name: "Club d'Échecs de Toulouse", Category: model.CategoryIntellectual, Address: "a", City: "Toulouse"},
		{Name: "Judo Club", Category: model.CategorySport, Address: "b", City: "Toulouse"},
	} {
		_, err := st.CreateActivity(ctx, c)
		require.NoError(t, err)
	}

	srv := newTestServer(t, st, nil)

	var body struct {
		Count      int `json:"count"`
		Activities []struct {
			Name         string `json:"name"`
			MatchedField string `json:"matched_field"`
		} `json:"activities"`
	}
	// Accent-insensitive fuzzy match.
	status := getJSON(t, srv.URL+"/activities/search?q=echecs", &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Club d'Échecs de Toulouse", body.Activities[0].Name)
	assert.Equal(t, "name", body.Activities[0].MatchedField)

	// Empty term returns nothing.
	status = getJSON(t, srv.URL+"/activities/search?q=", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, body.Count)
}

func TestServeCities(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, nil)

	var body struct {
		Cities []struct {
			Slug string `json:"slug"`
			Name string `json:"name"`
		} `json:"cities"`
	}
	status := getJSON(t, srv.URL+"/cities", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Cities, 20)

	status = getJSON(t, srv.URL+"/cities?q=toulo", &body)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body.Cities)
	assert.Contains(t, []string{"toulouse", "toulon"}, body.Cities[0].Slug)
}
