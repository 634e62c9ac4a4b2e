// Package status exposes a read-only HTTP surface over in-flight and
// recent batch runs.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dealerops/featuresync/batch"
)

// Server collects run snapshots and serves them as JSON.
type Server struct {
	mu     sync.RWMutex
	runs   map[string]*batch.Run // latest snapshot per dealership
	logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runs: map[string]*batch.Run{}, logger: logger}
}

// Record stores a run snapshot. Wire it as the orchestrator's OnUpdate.
func (s *Server) Record(run *batch.Run) {
	s.mu.Lock()
	s.runs[run.DealershipID] = run
	s.mu.Unlock()
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/runs", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.RLock()
		runs := make([]*batch.Run, 0, len(s.runs))
		for _, run := range s.runs {
			runs = append(runs, run)
		}
		s.mu.RUnlock()

		sort.Slice(runs, func(i, j int) bool {
			return runs[i].DealershipID < runs[j].DealershipID
		})

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(runs); err != nil {
			s.logger.Warn("status: encode runs", "error", err)
		}
	})

	return r
}
