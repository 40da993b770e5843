package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"vantage/internal/domain"
	"vantage/internal/events"
	"vantage/internal/httpapi/middleware"
	"vantage/internal/repo"
)

// CheckRunner runs one ad-hoc check cycle, used by the test-check endpoint.
type CheckRunner interface {
	Execute(ctx context.Context, monitor *domain.Monitor) error
}

type Server struct {
	Logger       *zap.Logger
	Monitors     repo.MonitorStore
	Measurements repo.MeasurementStore
	Alerts       repo.AlertStore
	Bus          *events.Bus
	Runner       CheckRunner

	RatePerMin int
	RateBurst  int
}

func NewServer(l *zap.Logger, ms repo.MonitorStore, meas repo.MeasurementStore, as repo.AlertStore, bus *events.Bus, runner CheckRunner) *Server {
	return &Server{
		Logger:       l,
		Monitors:     ms,
		Measurements: meas,
		Alerts:       as,
		Bus:          bus,
		Runner:       runner,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(s.RatePerMin, s.RateBurst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/monitors", s.handleListMonitors)
		r.Post("/monitors", s.handleCreateMonitor)
		r.Get("/monitors/{id}", s.handleGetMonitor)
		r.Put("/monitors/{id}", s.handleUpdateMonitor)
		r.Delete("/monitors/{id}", s.handleDeleteMonitor)
		r.Post("/monitors/{id}/pause", s.handlePauseMonitor)
		r.Get("/monitors/{id}/measurements", s.handleListMeasurements)
		r.Get("/alerts", s.handleListAlerts)
		r.Post("/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)
		r.Post("/test-check", s.handleTestCheck)
		r.Get("/events", s.handleEvents)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
