package alerting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vantage/internal/domain"
	"vantage/internal/notify"
	"vantage/internal/repo"
)

const (
	// DebounceWindow suppresses same-type alerts for a monitor after one
	// has fired.
	DebounceWindow = 5 * time.Minute

	// ConsecutiveFailureThreshold is the failure streak that trips a down
	// alert. The recovery rule inspects the same number of prior
	// measurements.
	ConsecutiveFailureThreshold = 3

	// LatencyThresholdMS trips a latency_spike alert on a successful probe.
	LatencyThresholdMS = 1000

	// HistoryDepth is how many recent measurements Evaluate wants to see.
	HistoryDepth = 5
)

// Engine turns a monitor's measurement history into debounced alerts and
// dispatches them: persist first, then best-effort webhook delivery.
type Engine struct {
	alerts   repo.AlertStore
	notifier notify.Notifier
	log      *zap.Logger
}

func NewEngine(alerts repo.AlertStore, notifier notify.Notifier, log *zap.Logger) *Engine {
	return &Engine{alerts: alerts, notifier: notifier, log: log}
}

// Evaluate applies the alert rules to the newest measurement. recent is the
// monitor's latest measurements newest-first with the new one at index 0;
// recentAlerts is every alert inside the debounce window. The rules are
// independent: one successful measurement can emit both a recovery and a
// latency alert.
func (e *Engine) Evaluate(ctx context.Context, monitor *domain.Monitor, m *domain.Measurement, recent []domain.Measurement, recentAlerts []domain.Alert) []domain.Alert {
	var created []domain.Alert

	if m.Failed() {
		if a := e.evalDown(ctx, monitor, m, recent, recentAlerts); a != nil {
			created = append(created, *a)
		}
		return created
	}

	if a := e.evalRecovery(ctx, monitor, m, recent, recentAlerts); a != nil {
		created = append(created, *a)
	}
	if a := e.evalLatency(ctx, monitor, m, recentAlerts); a != nil {
		created = append(created, *a)
	}
	return created
}

func (e *Engine) evalDown(ctx context.Context, monitor *domain.Monitor, m *domain.Measurement, recent []domain.Measurement, recentAlerts []domain.Alert) *domain.Alert {
	streak := CountConsecutiveFailures(recent)
	if streak < ConsecutiveFailureThreshold || hasAlertType(recentAlerts, domain.AlertDown) {
		return nil
	}

	errText := "Unknown error"
	if m.ErrorMessage != nil && *m.ErrorMessage != "" {
		errText = *m.ErrorMessage
	}
	msg := fmt.Sprintf("Monitor %q is DOWN\nURL: %s\nLocation: %s\nError: %s\nConsecutive failures: %d",
		monitor.Name, monitor.URL, m.Location, errText, streak)
	return e.dispatch(ctx, monitor, domain.AlertDown, msg)
}

func (e *Engine) evalRecovery(ctx context.Context, monitor *domain.Monitor, m *domain.Measurement, recent []domain.Measurement, recentAlerts []domain.Alert) *domain.Alert {
	// The window is the measurements immediately preceding the new one.
	end := ConsecutiveFailureThreshold + 1
	if end > len(recent) {
		end = len(recent)
	}
	if end <= 1 {
		return nil
	}
	for _, prev := range recent[1:end] {
		if !prev.Failed() {
			return nil
		}
	}
	if hasAlertType(recentAlerts, domain.AlertUp) {
		return nil
	}

	msg := fmt.Sprintf("Monitor %q is BACK UP\nURL: %s\nLocation: %s\nLatency: %.0fms",
		monitor.Name, monitor.URL, m.Location, m.LatencyMS)
	return e.dispatch(ctx, monitor, domain.AlertUp, msg)
}

func (e *Engine) evalLatency(ctx context.Context, monitor *domain.Monitor, m *domain.Measurement, recentAlerts []domain.Alert) *domain.Alert {
	if m.LatencyMS <= LatencyThresholdMS || hasAlertType(recentAlerts, domain.AlertLatencySpike) {
		return nil
	}

	msg := fmt.Sprintf("High latency detected for %q\nURL: %s\nLocation: %s\nLatency: %.0fms (threshold: %dms)",
		monitor.Name, monitor.URL, m.Location, m.LatencyMS, LatencyThresholdMS)
	return e.dispatch(ctx, monitor, domain.AlertLatencySpike, msg)
}

// dispatch persists the alert, then tries the monitor's webhook. Delivery
// failures are logged and swallowed: they must never fail the check cycle.
func (e *Engine) dispatch(ctx context.Context, monitor *domain.Monitor, alertType, message string) *domain.Alert {
	created, err := e.alerts.InsertAlert(ctx, &domain.Alert{
		MonitorID: monitor.ID,
		Type:      alertType,
		Message:   message,
	})
	if err != nil {
		e.log.Warn("alert_insert_error",
			zap.String("monitor_id", string(monitor.ID)),
			zap.String("type", alertType),
			zap.Error(err),
		)
		return nil
	}

	e.log.Info("alert_created",
		zap.String("monitor_id", string(monitor.ID)),
		zap.String("monitor", monitor.Name),
		zap.String("type", alertType),
	)

	if monitor.WebhookURL != "" && e.notifier != nil {
		if err := e.notifier.Send(ctx, monitor.WebhookURL, created); err != nil {
			e.log.Warn("alert_webhook_failed",
				zap.String("monitor_id", string(monitor.ID)),
				zap.String("type", alertType),
				zap.Error(err),
			)
		}
	}
	return created
}

// CountConsecutiveFailures counts failed measurements from the newest end
// of a newest-first history, stopping at the first success.
func CountConsecutiveFailures(ms []domain.Measurement) int {
	n := 0
	for i := range ms {
		if !ms[i].Failed() {
			break
		}
		n++
	}
	return n
}

func hasAlertType(alerts []domain.Alert, alertType string) bool {
	for i := range alerts {
		if alerts[i].Type == alertType {
			return true
		}
	}
	return false
}
