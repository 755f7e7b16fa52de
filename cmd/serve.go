package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clubscout/clubscout-cli/internal/config"
	"github.com/clubscout/clubscout-cli/internal/geodata"
	"github.com/clubscout/clubscout-cli/internal/geoutil"
	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/pipeline"
	"github.com/clubscout/clubscout-cli/internal/scraper"
	"github.com/clubscout/clubscout-cli/internal/search"
	"github.com/clubscout/clubscout-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.store, env.engine, cfg),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	store  store.Store
	engine *pipeline.Engine
	cfg    *config.Config
}

func newRouter(st store.Store, eng *pipeline.Engine, cfg *config.Config) http.Handler {
	s := &apiServer{store: st, engine: eng, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/scrape-location", s.handleScrapeLocation)
	r.Get("/cron/scrape-activities", s.handleCronScrape)
	r.Get("/activities/nearby", s.handleNearby)
	r.Get("/activities/search", s.handleSearch)
	r.Get("/cities", s.handleCities)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeLocationRequest struct {
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	RadiusKm  float64  `json:"radius_km"`
}

func (s *apiServer) handleScrapeLocation(w http.ResponseWriter, r *http.Request) {
	var req scrapeLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.City == "" && (req.Latitude == nil || req.Longitude == nil) {
		writeError(w, http.StatusBadRequest, "city or latitude/longitude is required")
		return
	}

	radius := req.RadiusKm
	if radius <= 0 {
		writeError(w, http.StatusBadRequest, "radius_km must be a positive number")
		return
	}
	if radius > s.cfg.Scrape.RadiusCapKm {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("radius_km must not exceed %.0f", s.cfg.Scrape.RadiusCapKm))
		return
	}

	q := scraper.Query{RadiusKm: radius, City: req.City}
	if req.Latitude != nil && req.Longitude != nil {
		q.Center = &scraper.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
	} else if city, err := geodata.ByName(req.City); err == nil && city != nil {
		q.Center = &scraper.Coordinates{Latitude: city.Latitude, Longitude: city.Longitude}
	}

	ctx := r.Context()
	if s.cfg.Scrape.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.Scrape.TimeoutSecs)*time.Second)
		defer cancel()
	}

	stats, err := s.engine.ScrapeLocation(ctx, q)
	if err != nil {
		zap.L().Error("scrape-location failed", zap.String("city", req.City), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scrape failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"location": q.CityOrDefault(),
		"stats":    stats,
	})
}

func (s *apiServer) handleCronScrape(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Cron.Secret == "" || r.Header.Get("Authorization") != "Bearer "+s.cfg.Cron.Secret {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	queries, err := cityQueries(s.cfg.Scrape.DefaultRadiusKm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "city dataset unavailable")
		return
	}

	day := time.Now().UTC().Day()
	start := time.Now()
	results, err := s.engine.RunRotation(r.Context(), queries, day, s.cfg.Cron.Quota)
	if err != nil {
		zap.L().Error("cron rotation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "rotation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"day":                 day,
		"locations_processed": len(results),
		"results":             results,
		"duration_ms":         time.Since(start).Milliseconds(),
	})
}

type nearbyActivity struct {
	model.Activity
	DistanceKm float64 `json:"distance_km"`
}

func (s *apiServer) handleNearby(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}

	radius := 5.0
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
		radius = parsed
	}
	category := model.Category(r.URL.Query().Get("category"))

	activities, err := s.store.ListWithCoordinates(r.Context(), category)
	if err != nil {
		zap.L().Error("nearby listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	nearby := make([]nearbyActivity, 0)
	for _, a := range activities {
		d := geoutil.DistanceKm(lat, lon, *a.Latitude, *a.Longitude)
		if d <= radius {
			nearby = append(nearby, nearbyActivity{Activity: a, DistanceKm: math.Round(d*10) / 10})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })

	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(nearby),
		"activities": nearby,
	})
}

type searchHit struct {
	model.Activity
	MatchedField string `json:"matched_field"`
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	activities, err := s.store.ListActivities(r.Context(), store.ActivityFilter{
		Category: model.Category(r.URL.Query().Get("category")),
		City:     r.URL.Query().Get("city"),
		Limit:    5000,
	})
	if err != nil {
		zap.L().Error("search listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	results := search.Search(activities, term, func(a model.Activity) []search.Field {
		return []search.Field{
			{Name: "name", Value: a.Name},
			{Name: "subcategory", Value: a.Subcategory},
			{Name: "city", Value: a.City},
			{Name: "address", Value: a.Address},
		}
	}, limit)

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{Activity: res.Item, MatchedField: res.MatchedField})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(hits),
		"activities": hits,
	})
}

func (s *apiServer) handleCities(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		cities, err := geodata.Cities()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "city dataset unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cities": cities})
		return
	}

	cities, err := geodata.SearchCities(term, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "city dataset unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cities": cities})
}
