package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vantage/internal/alerting"
	"vantage/internal/domain"
	"vantage/internal/events"
	"vantage/internal/globalping"
	"vantage/internal/repo"
	"vantage/internal/urlutil"
)

// Prober runs one distributed measurement job end to end.
type Prober interface {
	RunMeasurement(ctx context.Context, req *globalping.MeasurementRequest) (*globalping.MeasurementResponse, error)
}

// AlertEvaluator applies the alert rules to a freshly recorded measurement.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, monitor *domain.Monitor, m *domain.Measurement, recent []domain.Measurement, recentAlerts []domain.Alert) []domain.Alert
}

// Executor runs one full check cycle for one monitor. Safe to call
// concurrently for different monitors; the Scheduler guarantees it is never
// invoked twice at once for the same monitor.
type Executor struct {
	Logger       *zap.Logger
	Prober       Prober
	Measurements repo.MeasurementStore
	Alerts       repo.AlertStore
	Evaluator    AlertEvaluator
	Bus          *events.Bus
}

func NewExecutor(logger *zap.Logger, prober Prober, ms repo.MeasurementStore, as repo.AlertStore, eval AlertEvaluator, bus *events.Bus) *Executor {
	return &Executor{
		Logger:       logger,
		Prober:       prober,
		Measurements: ms,
		Alerts:       as,
		Evaluator:    eval,
		Bus:          bus,
	}
}

func (e *Executor) Execute(ctx context.Context, monitor *domain.Monitor) error {
	locations, err := globalping.NormalizeLocations(monitor.Locations)
	if err != nil {
		return fmt.Errorf("monitor %s: %w", monitor.ID, err)
	}
	target := urlutil.ParseTarget(monitor.URL)

	resp, err := e.Prober.RunMeasurement(ctx, &globalping.MeasurementRequest{
		Type:      "http",
		Target:    target.Host,
		Locations: locations,
		MeasurementOptions: &globalping.MeasurementOptions{
			Protocol: target.Protocol,
			Request:  &globalping.RequestTarget{Path: target.Path, Host: target.Host},
		},
	})
	if err != nil {
		return err
	}

	if resp.Status == globalping.StatusFailed {
		// The provider could not run the job at all. A cycle without
		// results is not an error; the next due tick retries naturally.
		e.Logger.Warn("check_job_failed",
			zap.String("monitor_id", string(monitor.ID)),
			zap.String("url", monitor.URL),
			zap.String("job_id", resp.ID),
		)
		return nil
	}

	batch := make([]domain.Measurement, 0, len(resp.Results))
	for _, r := range resp.Results {
		batch = append(batch, mapProbeResult(monitor.ID, r))
	}
	if len(batch) == 0 {
		e.Logger.Warn("check_no_results",
			zap.String("monitor_id", string(monitor.ID)),
			zap.String("job_id", resp.ID),
		)
		return nil
	}

	inserted, err := e.Measurements.InsertBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("persist measurements: %w", err)
	}

	for i := range inserted {
		e.evaluateAlerts(ctx, monitor, &inserted[i])
		e.Bus.Publish(events.MeasurementNew{
			MonitorID: string(monitor.ID),
			Location:  inserted[i].Location,
			Status:    inserted[i].Status,
			LatencyMS: inserted[i].LatencyMS,
			Timestamp: inserted[i].Timestamp,
		})
	}

	current := inserted[0].ImpliedStatus()
	e.publishSummary(ctx, monitor, current)
	e.detectTransition(ctx, monitor, current)

	e.Logger.Debug("check_completed",
		zap.String("monitor_id", string(monitor.ID)),
		zap.String("url", monitor.URL),
		zap.Int("measurements", len(inserted)),
		zap.String("status", current),
	)
	return nil
}

// evaluateAlerts re-reads history and the debounce window for every
// measurement of the batch, so an alert inserted for one probe suppresses
// duplicates for the rest of the cycle.
func (e *Executor) evaluateAlerts(ctx context.Context, monitor *domain.Monitor, m *domain.Measurement) {
	recent, err := e.Measurements.Recent(ctx, monitor.ID, alerting.HistoryDepth)
	if err != nil {
		e.Logger.Warn("check_history_error", zap.String("monitor_id", string(monitor.ID)), zap.Error(err))
		return
	}
	recentAlerts, err := e.Alerts.AlertsSince(ctx, monitor.ID, time.Now().UTC().Add(-alerting.DebounceWindow))
	if err != nil {
		e.Logger.Warn("check_alerts_error", zap.String("monitor_id", string(monitor.ID)), zap.Error(err))
		return
	}
	e.Evaluator.Evaluate(ctx, monitor, m, recent, recentAlerts)
}

func (e *Executor) publishSummary(ctx context.Context, monitor *domain.Monitor, current string) {
	window, err := e.Measurements.Window(ctx, monitor.ID, time.Now().UTC().Add(-24*time.Hour), "")
	if err != nil {
		e.Logger.Warn("check_uptime_error", zap.String("monitor_id", string(monitor.ID)), zap.Error(err))
		return
	}
	e.Bus.Publish(events.MonitorUpdate{
		ID:       string(monitor.ID),
		Name:     monitor.Name,
		URL:      monitor.URL,
		Status:   current,
		Uptime24: domain.UptimePercent(window),
	})
}

func (e *Executor) detectTransition(ctx context.Context, monitor *domain.Monitor, current string) {
	last, err := e.Measurements.Recent(ctx, monitor.ID, 10)
	if err != nil {
		e.Logger.Warn("check_history_error", zap.String("monitor_id", string(monitor.ID)), zap.Error(err))
		return
	}
	if len(last) < 2 {
		return
	}
	if prev := last[1].ImpliedStatus(); prev != current {
		e.Bus.Publish(events.StatusChange{MonitorID: string(monitor.ID), Status: current})
		e.Logger.Info("status_change",
			zap.String("monitor_id", string(monitor.ID)),
			zap.String("from", prev),
			zap.String("to", current),
		)
	}
}

func mapProbeResult(id domain.MonitorID, r globalping.ProbeResult) domain.Measurement {
	status := domain.MeasurementFailed
	if r.Result.Status == globalping.StatusFinished {
		status = domain.MeasurementSuccess
	}

	networkType := domain.NetworkDatacenter
	for _, tag := range r.Probe.Tags {
		if tag == domain.NetworkResidential {
			networkType = domain.NetworkResidential
			break
		}
	}

	var latency float64
	if r.Result.Timings != nil {
		latency = r.Result.Timings.Total
	}

	return domain.Measurement{
		MonitorID:    id,
		Location:     fmt.Sprintf("%s, %s", r.Probe.City, r.Probe.Country),
		Country:      r.Probe.Country,
		City:         r.Probe.City,
		NetworkType:  networkType,
		StatusCode:   r.Result.StatusCode,
		LatencyMS:    latency,
		Status:       status,
		ErrorMessage: r.Result.RawError,
	}
}
