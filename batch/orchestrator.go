package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dealerops/featuresync/checkbox"
	"github.com/dealerops/featuresync/config"
	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/inventory"
	"github.com/dealerops/featuresync/match"
	"github.com/dealerops/featuresync/session"
	"github.com/dealerops/featuresync/sticker"
)

// Config tunes the orchestrator.
type Config struct {
	MaxAgeDays      int // inventory age filter, default 1
	VehicleAttempts int // per-vehicle retry budget, default 3
	// MaxConcurrentDealerships bounds RunAll's fan-out. Default 2. Each
	// dealership owns its session exclusively; concurrency never shares one.
	MaxConcurrentDealerships int
	// OnUpdate receives a run snapshot after every outcome, for the status
	// surface. Optional.
	OnUpdate func(*Run)
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 1
	}
	if c.VehicleAttempts <= 0 {
		c.VehicleAttempts = 3
	}
	if c.MaxConcurrentDealerships <= 0 {
		c.MaxConcurrentDealerships = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Orchestrator composes the pipeline components over a batch of vehicles.
type Orchestrator struct {
	sessions  *session.Manager
	discovery *inventory.Discovery
	extractor *sticker.Extractor
	updater   *checkbox.Updater
	dict      *match.Dictionary
	sink      Sink
	cfg       Config
}

// New creates an Orchestrator. The dictionary is read-only for the life of
// the orchestrator; a reloaded dictionary means a new orchestrator.
func New(sessions *session.Manager, discovery *inventory.Discovery, extractor *sticker.Extractor,
	updater *checkbox.Updater, dict *match.Dictionary, sink Sink, cfg Config) *Orchestrator {
	cfg.defaults()
	if sink == nil {
		sink = SlogSink{Logger: cfg.Logger}
	}
	return &Orchestrator{
		sessions:  sessions,
		discovery: discovery,
		extractor: extractor,
		updater:   updater,
		dict:      dict,
		sink:      sink,
		cfg:       cfg,
	}
}

// RunAll runs one batch per dealership, dealerships in parallel up to the
// configured limit. Individual runs never fail each other.
func (o *Orchestrator) RunAll(ctx context.Context, profiles []config.DealershipProfile) []*Run {
	runs := make([]*Run, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentDealerships)
	for i, p := range profiles {
		g.Go(func() error {
			runs[i] = o.Run(gctx, p)
			return nil
		})
	}
	g.Wait()
	return runs
}

// Run executes one dealership batch and always returns a Run, emitting it
// to the sink on every exit path.
func (o *Orchestrator) Run(ctx context.Context, profile config.DealershipProfile) *Run {
	log := o.cfg.Logger
	run := &Run{
		DealershipID: profile.ID,
		StartedAt:    time.Now(),
		Status:       StatusCompleted,
	}

	matcher := o.newMatcher(profile)

	var sess *session.Session
	defer func() {
		if sess != nil {
			sess.Close()
		}
		run.EndedAt = time.Now()
		o.notify(run)
		// Emission must survive ctx cancellation or the run is lost.
		if err := o.sink.Emit(context.WithoutCancel(ctx), run); err != nil {
			log.Error("batch: emit run", "dealership", profile.ID, "error", err)
		}
	}()

	sess, err := o.sessions.Acquire(ctx, profile)
	if err != nil {
		log.Error("batch: acquire session", "dealership", profile.ID, "error", err)
		run.Status = StatusAborted
		run.Error = err.Error()
		return run
	}

	vehicles, err := o.discovery.List(ctx, sess, o.cfg.MaxAgeDays)
	if err != nil {
		// List retries transient failures internally; an error here means
		// no listing, which aborts the batch.
		log.Error("batch: discovery failed", "dealership", profile.ID, "error", err)
		run.Status = StatusAborted
		run.Error = err.Error()
		return run
	}

	// Enforce the batch cap: excess vehicles are deferred to the next run,
	// never dropped.
	if limit := profile.MaxVehiclesPerBatch; limit > 0 && len(vehicles) > limit {
		for _, v := range vehicles[limit:] {
			run.Deferred = append(run.Deferred, v.ID)
		}
		vehicles = vehicles[:limit]
		log.Info("batch: capped", "dealership", profile.ID, "processing", limit, "deferred", len(run.Deferred))
	}

	for _, v := range vehicles {
		// Cancellation is honoured between vehicles only, so no vehicle is
		// left half-updated.
		if ctx.Err() != nil {
			run.Status = StatusCancelled
			run.Error = ctx.Err().Error()
			return run
		}

		outcome, fatal := o.processVehicle(ctx, &sess, profile, matcher, v)
		run.append(outcome)
		o.notify(run)

		if fatal != nil {
			run.Status = StatusAborted
			run.Error = fatal.Error()
			return run
		}
	}

	return run
}

func (o *Orchestrator) newMatcher(profile config.DealershipProfile) *match.Matcher {
	m := match.NewMatcher(o.dict, profile.ConfidenceThreshold)
	for _, ov := range profile.Overrides {
		m.Overrides = append(m.Overrides, match.Override{Pattern: ov.Pattern, Checkbox: ov.Checkbox})
	}
	return m
}

func (o *Orchestrator) notify(run *Run) {
	if o.cfg.OnUpdate != nil {
		o.cfg.OnUpdate(run.Snapshot())
	}
}

// processVehicle runs extract → match → apply for one vehicle, bounded by
// the vehicle retry budget. A dead session is re-acquired and the vehicle
// resumed; already-applied checkboxes re-verify as no-ops. The returned
// fatal error aborts the batch (re-authentication itself failed).
func (o *Orchestrator) processVehicle(ctx context.Context, sess **session.Session,
	profile config.DealershipProfile, matcher *match.Matcher, v inventory.VehicleRecord) (VehicleOutcome, error) {

	log := o.cfg.Logger
	outcome := VehicleOutcome{VehicleID: v.ID, Status: OutcomeFailed}
	var lastErr error

	for attempt := 1; attempt <= o.cfg.VehicleAttempts; attempt++ {
		outcome.Attempts = attempt

		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		// A session that idled out between vehicles is replaced up front.
		if (*sess).Expired(time.Now()) {
			if err := o.reacquire(ctx, sess, profile); err != nil {
				outcome.Error = err.Error()
				return outcome, err
			}
		}

		fs, err := o.extractor.Extract(ctx, (*sess).Driver, v)
		if err != nil {
			if o.sessionLost(ctx, *sess, err) {
				log.Info("batch: session expired during extraction, re-acquiring", "vehicle", v.ID)
				if err := o.reacquire(ctx, sess, profile); err != nil {
					outcome.Error = err.Error()
					return outcome, err
				}
				continue
			}
			lastErr = err
			log.Warn("batch: extraction failed", "vehicle", v.ID, "attempt", attempt, "error", err)
			continue
		}
		(*sess).Touch()
		outcome.Method = fs.Method

		if fs.Method == sticker.MethodNone {
			// Legitimate empty sticker: recorded, not failed.
			outcome.Status = OutcomeSkipped
			outcome.Error = ""
			return outcome, nil
		}

		mapping := matcher.Map(v.ID, fs.Features)
		outcome.Mapping = &mapping

		res, err := o.updater.Apply(ctx, *sess, v.ID, mapping)
		outcome.Update = &res
		if errors.Is(err, session.ErrExpired) {
			log.Info("batch: session expired mid-vehicle, re-acquiring", "vehicle", v.ID)
			if err := o.reacquire(ctx, sess, profile); err != nil {
				outcome.Error = err.Error()
				return outcome, err
			}
			// Retry the same vehicle: re-applying confirmed checkboxes is
			// idempotent.
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}

		if res.Verification == checkbox.VerificationConfirmed {
			outcome.Status = OutcomeSucceeded
		} else {
			outcome.Status = OutcomePartial
		}
		outcome.Error = ""
		return outcome, nil
	}

	if lastErr != nil {
		outcome.Error = lastErr.Error()
	} else {
		outcome.Error = fmt.Sprintf("exhausted %d attempts", o.cfg.VehicleAttempts)
	}
	log.Error("batch: vehicle failed", "vehicle", v.ID, "error", outcome.Error)
	return outcome, nil
}

// sessionLost classifies a UI failure the same way the updater does: a
// driver error on a page whose authenticated shell is gone means the
// application logged us out, not that the element flaked.
func (o *Orchestrator) sessionLost(ctx context.Context, sess *session.Session, cause error) bool {
	var ue *driver.UIError
	if !errors.As(cause, &ue) {
		return false
	}
	alive, err := sess.Driver.Alive(ctx)
	if err == nil && !alive {
		sess.MarkExpired()
		return true
	}
	return false
}

// reacquire replaces a dead session. Failure here is an AuthError and
// aborts the batch.
func (o *Orchestrator) reacquire(ctx context.Context, sess **session.Session, profile config.DealershipProfile) error {
	(*sess).Close()
	fresh, err := o.sessions.Acquire(ctx, profile)
	if err != nil {
		return err
	}
	*sess = fresh
	return nil
}
