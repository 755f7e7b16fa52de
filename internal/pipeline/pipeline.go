package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clubscout/clubscout-cli/internal/dedupe"
	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/scraper"
	"github.com/clubscout/clubscout-cli/internal/store"
)

// DefaultRadiusCapKm bounds the search radius accepted for a single
// location run. Larger radii blow up source payloads and cross city
// boundaries, which breaks name+city reconciliation.
const DefaultRadiusCapKm = 50.0

const defaultReconcileConcurrency = 4

// Engine runs the scrape pipeline for one location: fan out to sources,
// dedupe the combined candidates, reconcile each against the store, and
// record the run.
type Engine struct {
	store       store.Store
	sources     []scraper.Source
	precision   int
	tolerance   float64
	radiusCapKm float64
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDedupePrecision sets the coordinate rounding precision (decimal
// places) used when keying candidates for dedup.
func WithDedupePrecision(p int) Option {
	return func(e *Engine) {
		if p > 0 {
			e.precision = p
		}
	}
}

// WithBBoxTolerance sets the half-width in degrees of the bounding box
// used for coordinate-based reconciliation.
func WithBBoxTolerance(deg float64) Option {
	return func(e *Engine) {
		if deg > 0 {
			e.tolerance = deg
		}
	}
}

// WithRadiusCapKm sets the maximum accepted search radius.
func WithRadiusCapKm(km float64) Option {
	return func(e *Engine) {
		if km > 0 {
			e.radiusCapKm = km
		}
	}
}

// WithReconcileConcurrency bounds the number of concurrent store upserts.
func WithReconcileConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an Engine over the given store and sources.
func New(st store.Store, sources []scraper.Source, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		sources:     sources,
		precision:   dedupe.DefaultPrecision,
		tolerance:   DefaultBBoxTolerance,
		radiusCapKm: DefaultRadiusCapKm,
		concurrency: defaultReconcileConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScrapeLocation runs the full pipeline for one location and returns the
// run stats. A failing source degrades the run (zero candidates from
// that source) rather than aborting it; a failing upsert counts the
// candidate as skipped.
func (e *Engine) ScrapeLocation(ctx context.Context, q scraper.Query) (*model.RunStats, error) {
	if q.RadiusKm > e.radiusCapKm {
		return nil, eris.Errorf("pipeline: radius %.1f km exceeds cap %.1f km", q.RadiusKm, e.radiusCapKm)
	}

	location := q.CityOrDefault()
	log := zap.L().With(zap.String("location", location))
	start := time.Now()

	run, err := e.store.StartScrapeRun(ctx, location)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}

	log.Info("pipeline: scrape starting", zap.Int("sources", len(e.sources)))

	candidates, perSource := e.collect(ctx, q, log)
	deduped := dedupe.Deduplicate(candidates, e.precision)

	log.Info("pipeline: candidates collected",
		zap.Int("raw", len(candidates)),
		zap.Int("deduped", len(deduped)),
	)

	stats, err := e.reconcileAll(ctx, deduped, log)
	if err != nil {
		if failErr := e.store.FailScrapeRun(ctx, run.ID, err); failErr != nil {
			log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
		}
		return nil, err
	}

	stats.Total = len(deduped)
	stats.Sources = perSource
	stats.DurationMs = time.Since(start).Milliseconds()

	if err := e.store.CompleteScrapeRun(ctx, run.ID, stats); err != nil {
		log.Warn("pipeline: failed to record run completion", zap.Error(err))
	}

	log.Info("pipeline: scrape complete",
		zap.Int("total", stats.Total),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int64("duration_ms", stats.DurationMs),
	)
	return stats, nil
}

// collect fans out to all sources concurrently and returns the combined
// candidates in stable source order, plus a per-source count. A failed
// source contributes zero candidates.
func (e *Engine) collect(ctx context.Context, q scraper.Query, log *zap.Logger) ([]model.Candidate, map[string]int) {
	results := make([][]model.Candidate, len(e.sources))

	var wg sync.WaitGroup
	for i, src := range e.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found, err := src.Fetch(ctx, q)
			if err != nil {
				log.Warn("pipeline: source failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				return
			}
			results[i] = found
		}()
	}
	wg.Wait()

	perSource := make(map[string]int, len(e.sources))
	var combined []model.Candidate
	for i, src := range e.sources {
		perSource[src.Name()] = len(results[i])
		combined = append(combined, results[i]...)
	}
	return combined, perSource
}

// reconcileAll upserts candidates with bounded concurrency. The returned
// stats carry Created/Updated/Skipped; Total and Sources are filled by
// the caller.
func (e *Engine) reconcileAll(ctx context.Context, candidates []model.Candidate, log *zap.Logger) (*model.RunStats, error) {
	rec := NewReconciler(e.store, e.tolerance)

	var created, updated, skipped atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, cand := range candidates {
		g.Go(func() error {
			res, err := rec.Upsert(gCtx, cand)
			if err != nil {
				// Per-record failures degrade the run, unless the
				// context as a whole is gone.
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				log.Warn("pipeline: upsert failed",
					zap.String("name", cand.Name),
					zap.Error(err),
				)
				skipped.Add(1)
				return nil
			}
			switch res.Action {
			case ActionCreated:
				created.Add(1)
			case ActionUpdated:
				updated.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: reconcile")
	}

	return &model.RunStats{
		Created: int(created.Load()),
		Updated: int(updated.Load()),
		Skipped: int(skipped.Load()),
	}, nil
}

// RotationResult reports one location's outcome within a rotation run.
type RotationResult struct {
	Location string          `json:"location"`
	Stats    *model.RunStats `json:"stats,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// RunRotation scrapes the locations scheduled for dayOfMonth under the
// given quota, sequentially. A failing location is recorded and the
// rotation moves on; only context cancellation stops the run early.
func (e *Engine) RunRotation(ctx context.Context, queries []scraper.Query, dayOfMonth, quota int) ([]RotationResult, error) {
	selected := SelectRotation(dayOfMonth, queries, quota)
	log := zap.L().With(zap.Int("day", dayOfMonth), zap.Int("quota", quota))
	log.Info("pipeline: rotation starting",
		zap.Int("locations", len(queries)),
		zap.Int("selected", len(selected)),
	)

	results := make([]RotationResult, 0, len(selected))
	for _, q := range selected {
		if err := ctx.Err(); err != nil {
			return results, eris.Wrap(err, "pipeline: rotation interrupted")
		}

		res := RotationResult{Location: q.CityOrDefault()}
		stats, err := e.ScrapeLocation(ctx, q)
		if err != nil {
			res.Error = err.Error()
			log.Warn("pipeline: rotation location failed",
				zap.String("location", res.Location),
				zap.Error(err),
			)
		} else {
			res.Stats = stats
		}
		results = append(results, res)
	}
	return results, nil
}
