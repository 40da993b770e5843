package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vantage/internal/domain"
	"vantage/internal/globalping"
	"vantage/internal/repo"
)

type monitorPayload struct {
	Name       string          `json:"name"`
	URL        string          `json:"url"`
	Interval   int             `json:"interval"`
	Locations  json.RawMessage `json:"locations"`
	WebhookURL string          `json:"webhook_url"`
	Public     bool            `json:"public"`
}

// monitorSummary decorates a monitor with its latest derived state for list
// and detail responses.
type monitorSummary struct {
	domain.Monitor
	Status       string  `json:"status"`
	Uptime24h    float64 `json:"uptime24h"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

func (p *monitorPayload) validate() error {
	if len(p.Name) < 2 || len(p.Name) > 100 {
		return domain.Invalid("name", "must be 2-100 characters")
	}
	u, err := url.Parse(p.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return domain.Invalid("url", "must be an absolute URL")
	}
	if p.Interval < domain.MinIntervalSec || p.Interval > domain.MaxIntervalSec {
		return domain.Invalid("interval", "must be between 60 and 3600 seconds")
	}
	locs, err := globalping.NormalizeLocations(string(p.Locations))
	if err != nil || len(locs) == 0 {
		return domain.Invalid("locations", "need at least one valid location")
	}
	if p.WebhookURL != "" {
		wu, err := url.Parse(p.WebhookURL)
		if err != nil || !wu.IsAbs() {
			return domain.Invalid("webhook_url", "must be empty or an absolute URL")
		}
	}
	return nil
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	ms, err := s.Monitors.List(r.Context())
	if err != nil {
		s.Logger.Warn("monitor_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	out := make([]monitorSummary, 0, len(ms))
	for i := range ms {
		out = append(out, s.summarize(r, &ms[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var p monitorPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	m := &domain.Monitor{
		Name:        p.Name,
		URL:         p.URL,
		IntervalSec: p.Interval,
		Locations:   string(p.Locations),
		WebhookURL:  p.WebhookURL,
		Active:      true,
		Public:      p.Public,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Monitors.Create(r.Context(), m); err != nil {
		s.Logger.Warn("monitor_create_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create monitor")
		return
	}

	s.Logger.Info("monitor_created",
		zap.String("id", string(m.ID)),
		zap.String("url", m.URL),
		zap.Int("interval", m.IntervalSec),
	)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.summarize(r, m))
}

func (s *Server) handleUpdateMonitor(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}
	var p monitorPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m.Name = p.Name
	m.URL = p.URL
	m.IntervalSec = p.Interval
	m.Locations = string(p.Locations)
	m.WebhookURL = p.WebhookURL
	m.Public = p.Public
	m.UpdatedAt = time.Now().UTC()
	if err := s.Monitors.Update(r.Context(), m); err != nil {
		s.Logger.Warn("monitor_update_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update monitor")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id := domain.MonitorID(chi.URLParam(r, "id"))
	if err := s.Monitors.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return
		}
		s.Logger.Warn("monitor_delete_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete monitor")
		return
	}
	s.Logger.Info("monitor_deleted", zap.String("id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

// handlePauseMonitor toggles the active flag. Paused monitors keep their
// history but are skipped by the scheduler.
func (s *Server) handlePauseMonitor(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}
	next := !m.Active
	if err := s.Monitors.SetActive(r.Context(), m.ID, next); err != nil {
		s.Logger.Warn("monitor_pause_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update monitor")
		return
	}
	m.Active = next
	s.Logger.Info("monitor_paused", zap.String("id", string(m.ID)), zap.Bool("active", next))
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	m, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}
	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = t
	}
	rows, err := s.Measurements.Window(r.Context(), m.ID, since, r.URL.Query().Get("location"))
	if err != nil {
		s.Logger.Warn("measurement_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	id := domain.MonitorID(r.URL.Query().Get("monitor_id"))
	rows, err := s.Alerts.Alerts(r.Context(), id)
	if err != nil {
		s.Logger.Warn("alert_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Alerts.Acknowledge(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		s.Logger.Warn("alert_ack_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not acknowledge")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type testCheckPayload struct {
	MonitorID string `json:"monitor_id"`
}

// handleTestCheck runs one synchronous check cycle for immediate feedback.
func (s *Server) handleTestCheck(w http.ResponseWriter, r *http.Request) {
	var p testCheckPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.MonitorID == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	m, err := s.Monitors.GetByID(r.Context(), domain.MonitorID(p.MonitorID))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	if err := s.Runner.Execute(r.Context(), m); err != nil {
		s.Logger.Warn("test_check_failed", zap.String("id", p.MonitorID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "check failed: "+err.Error())
		return
	}
	// One row per requested vantage point, single row when the list is bad.
	limit := 1
	if locs, err := globalping.NormalizeLocations(m.Locations); err == nil && len(locs) > 0 {
		limit = len(locs)
	}
	rows, err := s.Measurements.Recent(r.Context(), m.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"monitor": m, "measurements": rows})
}

func (s *Server) lookupMonitor(w http.ResponseWriter, r *http.Request) (*domain.Monitor, bool) {
	id := domain.MonitorID(chi.URLParam(r, "id"))
	m, err := s.Monitors.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return nil, false
		}
		s.Logger.Warn("monitor_lookup_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return nil, false
	}
	return m, true
}

func (s *Server) summarize(r *http.Request, m *domain.Monitor) monitorSummary {
	out := monitorSummary{Monitor: *m, Status: domain.StatusUnknown, Uptime24h: 100}
	rows, err := s.Measurements.Window(r.Context(), m.ID, time.Now().UTC().Add(-24*time.Hour), "")
	if err != nil {
		s.Logger.Warn("summary_error", zap.String("id", string(m.ID)), zap.Error(err))
		return out
	}
	if len(rows) == 0 {
		return out
	}
	out.Status = rows[0].ImpliedStatus()
	out.Uptime24h = domain.UptimePercent(rows)
	var total float64
	var n int
	for i := range rows {
		if !rows[i].Failed() {
			total += rows[i].LatencyMS
			n++
		}
	}
	if n > 0 {
		out.AvgLatencyMS = total / float64(n)
	}
	return out
}
