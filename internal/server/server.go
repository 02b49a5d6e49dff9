package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwbudde/evotimetable/internal/config"
	"github.com/cwbudde/evotimetable/internal/fitness"
	"github.com/cwbudde/evotimetable/internal/store"
	"github.com/cwbudde/evotimetable/internal/timetable"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server
type Server struct {
	cfg        config.Config
	jobManager *JobManager
	store      store.Store
	metrics    *metrics
	server     *http.Server

	// jobs run under baseCtx so Shutdown can stop them.
	baseCtx    context.Context
	cancelJobs context.CancelFunc
}

// NewServer creates a new HTTP server. checkpointStore may be nil, in which
// case jobs run without checkpoints.
func NewServer(cfg config.Config, checkpointStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		jobManager: NewJobManager(),
		store:      checkpointStore,
		metrics:    newMetrics(),
		baseCtx:    ctx,
		cancelJobs: cancel,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Get("/", s.handleListJobs)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetJob)
			r.Delete("/", s.handleCancelJob)
			r.Get("/best", s.handleGetBest)
			r.Get("/stream", s.handleJobStream)
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.cfg.Server.Addr, "max_jobs", s.cfg.Server.MaxJobs)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cancels running jobs and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.cancelJobs()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	defaults := s.cfg.GA
	req := JobRequest{Config: &defaults}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	cfg := s.cfg.GA
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Problem.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxGenerations < 0 {
		writeError(w, http.StatusBadRequest, "max_generations must be >= 0")
		return
	}

	if s.jobManager.ActiveCount() >= s.cfg.Server.MaxJobs {
		writeError(w, http.StatusTooManyRequests, "too many active jobs")
		return
	}

	job := s.jobManager.CreateJob(req, cfg)
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.jobManager.setCancel(job.ID, cancel)

	evo := s.cfg.EngineOptions()
	go func() {
		defer cancel()
		_ = runJob(ctx, s.jobManager, s.store, s.metrics, evo, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// jobStatus is the GET /api/v1/jobs/{id} response.
type jobStatus struct {
	Job
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// handleGetJob handles GET /api/v1/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobManager.GetJob(chi.URLParam(r, "id"))
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	writeJSON(w, http.StatusOK, jobStatus{Job: job, ElapsedSeconds: elapsed.Seconds()})
}

// bestResponse is the GET /api/v1/jobs/{id}/best response.
type bestResponse struct {
	JobID      string             `json:"job_id"`
	State      JobState           `json:"state"`
	Generation int                `json:"generation"`
	Fitness    float64            `json:"fitness"`
	Days       []string           `json:"days"`
	TimeSlots  []string           `json:"time_slots"`
	Schedule   timetable.Schedule `json:"schedule"`
	Breakdown  fitness.Breakdown  `json:"breakdown"`
}

// handleGetBest handles GET /api/v1/jobs/{id}/best
func (s *Server) handleGetBest(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobManager.GetJob(chi.URLParam(r, "id"))
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if len(job.Best) == 0 {
		writeError(w, http.StatusNotFound, "no results yet")
		return
	}

	model, err := job.Problem.Model()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	best := timetable.FromSchedule(job.Problem.Days, job.Problem.TimeSlots, job.Best)
	breakdown := model.Breakdown(best)
	breakdown.Fitness = finite(breakdown.Fitness)

	writeJSON(w, http.StatusOK, bestResponse{
		JobID:      job.ID,
		State:      job.State,
		Generation: job.Generation,
		Fitness:    job.BestFitness,
		Days:       job.Problem.Days,
		TimeSlots:  job.Problem.TimeSlots,
		Schedule:   job.Best,
		Breakdown:  breakdown,
	})
}

// handleCancelJob handles DELETE /api/v1/jobs/{id}
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.jobManager.CancelJob(id); err != nil {
		switch {
		case errors.Is(err, ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, ErrJobFinished):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	job, _ := s.jobManager.GetJob(id)
	writeJSON(w, http.StatusAccepted, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
