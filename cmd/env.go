package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clubscout/clubscout-cli/internal/config"
	"github.com/clubscout/clubscout-cli/internal/geodata"
	"github.com/clubscout/clubscout-cli/internal/pipeline"
	"github.com/clubscout/clubscout-cli/internal/scraper"
	"github.com/clubscout/clubscout-cli/internal/store"
)

// env bundles the store and engine shared by the commands.
type env struct {
	store  store.Store
	engine *pipeline.Engine
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eng := pipeline.New(st, buildSources(cfg),
		pipeline.WithDedupePrecision(cfg.Pipeline.DedupPrecision),
		pipeline.WithBBoxTolerance(cfg.Pipeline.BBoxToleranceDeg),
		pipeline.WithRadiusCapKm(cfg.Scrape.RadiusCapKm),
		pipeline.WithReconcileConcurrency(cfg.Pipeline.ReconcileConcurrency),
	)

	return &env{store: st, engine: eng}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func buildSources(cfg *config.Config) []scraper.Source {
	client := &http.Client{Timeout: 30 * time.Second}

	sources := []scraper.Source{
		scraper.NewOverpass(
			scraper.WithOverpassBaseURL(cfg.Overpass.BaseURL),
			scraper.WithOverpassRadiusKm(cfg.Overpass.RadiusKm),
			scraper.WithOverpassHTTPClient(client),
		),
	}
	if cfg.Places.Key != "" {
		sources = append(sources, scraper.NewPlaces(cfg.Places.Key,
			scraper.WithPlacesBaseURL(cfg.Places.BaseURL),
			scraper.WithPlacesPacing(time.Duration(cfg.Places.PacingMs)*time.Millisecond),
			scraper.WithPlacesHTTPClient(client),
		))
	}
	if cfg.Serp.Key != "" {
		sources = append(sources, scraper.NewSerp(cfg.Serp.Key,
			scraper.WithSerpBaseURL(cfg.Serp.BaseURL),
			scraper.WithSerpPacing(time.Duration(cfg.Serp.PacingMs)*time.Millisecond),
			scraper.WithSerpHTTPClient(client),
		))
	}
	return sources
}

// cityQueries maps the built-in city dataset to scrape queries.
func cityQueries(radiusKm float64) ([]scraper.Query, error) {
	cities, err := geodata.Cities()
	if err != nil {
		return nil, err
	}
	queries := make([]scraper.Query, 0, len(cities))
	for _, c := range cities {
		queries = append(queries, scraper.Query{
			Center:   &scraper.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude},
			RadiusKm: radiusKm,
			City:     c.Name,
		})
	}
	return queries, nil
}
