// Package checkbox applies a vehicle's feature mapping to the attribute
// checkboxes in the target application and verifies the changes stuck.
// Unmatched features are never applied; a vehicle whose checkboxes cannot
// all be confirmed comes back unconfirmed, it never aborts the batch.
package checkbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/match"
	"github.com/dealerops/featuresync/session"
)

// Verification states of an update.
const (
	VerificationConfirmed   = "confirmed"
	VerificationUnconfirmed = "unconfirmed"
)

// UpdateResult is the terminal per-vehicle record consumed by reporting.
type UpdateResult struct {
	VehicleID    string            `json:"vehicle_id"`
	Attempted    []string          `json:"attempted"`
	Applied      []string          `json:"applied"`
	Failed       map[string]string `json:"failed,omitempty"` // id -> reason
	Verification string            `json:"verification"`
}

// UpdateError is a vehicle-scoped update failure.
type UpdateError struct {
	VehicleID string
	Err       error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("checkbox: %s: %v", e.VehicleID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// Config tunes the updater.
type Config struct {
	// Attempts bounds the full set-and-commit sequence. Default 3.
	Attempts int
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Updater applies checkbox changes through a session's driver.
type Updater struct {
	cfg Config
}

// NewUpdater creates an Updater.
func NewUpdater(cfg Config) *Updater {
	cfg.defaults()
	return &Updater{cfg: cfg}
}

// Apply sets every matched checkbox for the vehicle, commits once, and
// re-reads each one to confirm. On a commit or verification miss the whole
// set-and-commit sequence is retried up to the attempt budget. The result
// is always populated; the error is session.ErrExpired when the UI logged
// us out, so the orchestrator can re-acquire and resume idempotently.
func (u *Updater) Apply(ctx context.Context, sess *session.Session, vehicleID string, mapping match.FeatureMapping) (UpdateResult, error) {
	log := u.cfg.Logger
	ids := mapping.CheckboxIDs()

	res := UpdateResult{
		VehicleID:    vehicleID,
		Attempted:    ids,
		Failed:       map[string]string{},
		Verification: VerificationConfirmed,
	}
	if len(ids) == 0 {
		return res, nil
	}

	if sess.Expired(time.Now()) {
		return res, session.ErrExpired
	}
	drv := sess.Driver

	confirmed := map[string]bool{}
	var lastErr error

	for attempt := 1; attempt <= u.cfg.Attempts; attempt++ {
		if err := drv.Navigate(ctx, driver.PageAttributes, map[string]string{"vehicle_id": vehicleID}); err != nil {
			if expErr := u.checkExpired(ctx, sess, err); expErr != nil {
				return u.finish(res, confirmed, ids), expErr
			}
			lastErr = err
			continue
		}

		// Set every unconfirmed checkbox. Already-confirmed ones are safe
		// to skip: re-running the sequence is idempotent.
		for _, id := range ids {
			if confirmed[id] {
				continue
			}
			if err := drv.SetChecked(ctx, id, true); err != nil {
				res.Failed[id] = err.Error()
				lastErr = err
			}
		}

		// One commit for the whole vehicle, not one per checkbox.
		if err := drv.Commit(ctx); err != nil {
			if expErr := u.checkExpired(ctx, sess, err); expErr != nil {
				return u.finish(res, confirmed, ids), expErr
			}
			lastErr = err
			log.Warn("checkbox: commit failed", "vehicle", vehicleID, "attempt", attempt, "error", err)
			continue
		}
		sess.Touch()

		// Re-read to defend against silent UI failures.
		allConfirmed := true
		for _, id := range ids {
			if confirmed[id] {
				continue
			}
			checked, err := drv.IsChecked(ctx, id)
			if err != nil {
				res.Failed[id] = err.Error()
				allConfirmed = false
				continue
			}
			if checked {
				confirmed[id] = true
				delete(res.Failed, id)
			} else {
				res.Failed[id] = "did not hold after commit"
				allConfirmed = false
			}
		}
		if allConfirmed {
			return u.finish(res, confirmed, ids), nil
		}
	}

	out := u.finish(res, confirmed, ids)
	log.Warn("checkbox: unconfirmed after retries", "vehicle", vehicleID,
		"unconfirmed", len(out.Attempted)-len(out.Applied), "error", lastErr)
	return out, nil
}

// checkExpired classifies a UI error: a dead session surfaces as
// session.ErrExpired, anything else is left to the retry loop.
func (u *Updater) checkExpired(ctx context.Context, sess *session.Session, cause error) error {
	var ue *driver.UIError
	if !errors.As(cause, &ue) {
		return nil
	}
	alive, err := sess.Driver.Alive(ctx)
	if err == nil && !alive {
		sess.MarkExpired()
		return session.ErrExpired
	}
	return nil
}

func (u *Updater) finish(res UpdateResult, confirmed map[string]bool, ids []string) UpdateResult {
	res.Applied = res.Applied[:0]
	for _, id := range ids {
		if confirmed[id] {
			res.Applied = append(res.Applied, id)
		}
	}
	if len(res.Applied) < len(res.Attempted) {
		res.Verification = VerificationUnconfirmed
	}
	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	return res
}
