// Package batch drives one verification run per dealership: acquire a
// session, discover inventory, and push every vehicle through extraction,
// matching, and checkbox update, with retry, session recovery, and
// backpressure. A Run record is always produced, even on abort or
// cancellation.
package batch

import (
	"context"
	"time"

	"github.com/dealerops/featuresync/checkbox"
	"github.com/dealerops/featuresync/match"
	"github.com/dealerops/featuresync/sticker"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusCancelled = "cancelled"
)

// Vehicle outcome statuses.
const (
	OutcomeSucceeded = "succeeded"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped" // empty sticker, nothing to apply
)

// VehicleOutcome is one vehicle's terminal record within a run.
type VehicleOutcome struct {
	VehicleID string                 `json:"vehicle_id"`
	Status    string                 `json:"status"`
	Method    sticker.Method         `json:"extraction_method,omitempty"`
	Mapping   *match.FeatureMapping  `json:"mapping,omitempty"`
	Update    *checkbox.UpdateResult `json:"update,omitempty"`
	Attempts  int                    `json:"attempts"`
	Error     string                 `json:"error,omitempty"`
}

// Counts aggregates a run's outcomes.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Run is one dealership batch. Outcomes are appended in discovery order,
// regardless of per-vehicle retries.
type Run struct {
	DealershipID string           `json:"dealership_id"`
	StartedAt    time.Time        `json:"started_at"`
	EndedAt      time.Time        `json:"ended_at"`
	Status       string           `json:"status"`
	Outcomes     []VehicleOutcome `json:"outcomes"`
	// Deferred lists vehicles beyond the batch cap, left for the next run.
	Deferred []string `json:"deferred,omitempty"`
	Counts   Counts   `json:"counts"`
	Error    string   `json:"error,omitempty"`
}

func (r *Run) append(o VehicleOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case OutcomeSucceeded:
		r.Counts.Succeeded++
	case OutcomePartial:
		r.Counts.Partial++
	case OutcomeSkipped:
		r.Counts.Skipped++
	default:
		r.Counts.Failed++
	}
}

// Snapshot returns a copy safe to hand to observers while the run is
// still mutating.
func (r *Run) Snapshot() *Run {
	cp := *r
	cp.Outcomes = append([]VehicleOutcome(nil), r.Outcomes...)
	cp.Deferred = append([]string(nil), r.Deferred...)
	return &cp
}

// Sink receives completed (or aborted) runs. Formatting and delivery are
// the sink's business.
type Sink interface {
	Emit(ctx context.Context, run *Run) error
}
