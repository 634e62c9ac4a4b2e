package batch

import (
	"context"
	"log/slog"
)

// SlogSink logs a one-line summary per run. The default sink when no
// reporting collaborator is wired in.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(_ context.Context, run *Run) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("batch: run finished",
		"dealership", run.DealershipID,
		"status", run.Status,
		"vehicles", len(run.Outcomes),
		"succeeded", run.Counts.Succeeded,
		"partial", run.Counts.Partial,
		"failed", run.Counts.Failed,
		"skipped", run.Counts.Skipped,
		"deferred", len(run.Deferred),
		"duration", run.EndedAt.Sub(run.StartedAt),
	)
	return nil
}
