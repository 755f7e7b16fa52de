package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clubscout/clubscout-cli/internal/model"
	"github.com/clubscout/clubscout-cli/internal/store"
)

// Action describes what an upsert did to the store.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// DefaultBBoxTolerance is the half-width in degrees of the bounding box
// used to match candidates against stored activities by coordinates.
// 0.001 degrees is roughly 100 m at French latitudes.
const DefaultBBoxTolerance = 0.001

// ReconcileResult reports the outcome of a single candidate upsert.
type ReconcileResult struct {
	Action   Action
	Activity *model.Activity
}

// Reconciler matches scraped candidates against stored activities and
// creates or updates rows accordingly.
type Reconciler struct {
	store     store.Store
	tolerance float64
}

func NewReconciler(st store.Store, tolerance float64) *Reconciler {
	if tolerance <= 0 {
		tolerance = DefaultBBoxTolerance
	}
	return &Reconciler{store: st, tolerance: tolerance}
}

// Upsert finds the stored activity matching cand and updates it with the
// candidate's non-empty fields, or creates a new activity when nothing
// matches. Matching tries name+city first, then name+bounding-box when
// the candidate carries coordinates; both matches are case-insensitive
// on name.
func (r *Reconciler) Upsert(ctx context.Context, cand model.Candidate) (*ReconcileResult, error) {
	if cand.Name == "" {
		return nil, eris.New("reconcile: candidate has no name")
	}

	existing, err := r.lookup(ctx, cand)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		created, err := r.store.CreateActivity(ctx, cand)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: create %q", cand.Name)
		}
		return &ReconcileResult{Action: ActionCreated, Activity: created}, nil
	}

	merged := existing.ApplyCandidate(cand)
	updated, err := r.store.UpdateActivity(ctx, merged)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: update %q", cand.Name)
	}
	return &ReconcileResult{Action: ActionUpdated, Activity: updated}, nil
}

func (r *Reconciler) lookup(ctx context.Context, cand model.Candidate) (*model.Activity, error) {
	if cand.City != "" && cand.City != model.UnspecifiedCity {
		found, err := r.store.FindByNameAndCity(ctx, cand.Name, cand.City)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: lookup %q by city", cand.Name)
		}
		if found != nil {
			return found, nil
		}
	}

	if cand.HasCoordinates() {
		found, err := r.store.FindByNameAndBoundingBox(ctx, cand.Name, *cand.Latitude, *cand.Longitude, r.tolerance)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: lookup %q by bounding box", cand.Name)
		}
		if found != nil {
			return found, nil
		}
	}

	return nil, nil
}
