package repo

import (
	"context"
	"errors"
	"time"

	"vantage/internal/domain"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Ports (interfaces) — swap in any DB adapter later.

type MonitorStore interface {
	Create(ctx context.Context, m *domain.Monitor) error
	Update(ctx context.Context, m *domain.Monitor) error
	Delete(ctx context.Context, id domain.MonitorID) error
	GetByID(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error)
	List(ctx context.Context) ([]domain.Monitor, error)
	ListActive(ctx context.Context) ([]domain.Monitor, error)
	SetLastChecked(ctx context.Context, id domain.MonitorID, at time.Time) error
	SetActive(ctx context.Context, id domain.MonitorID, active bool) error
}

type MeasurementStore interface {
	// InsertBatch writes one check cycle's measurements atomically and
	// returns the rows with generated ids and timestamps filled in.
	InsertBatch(ctx context.Context, batch []domain.Measurement) ([]domain.Measurement, error)
	// Recent returns up to limit measurements for a monitor, newest first.
	Recent(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Measurement, error)
	// Window returns measurements at or after the cutoff, newest first.
	// location narrows to one vantage point when non-empty.
	Window(ctx context.Context, id domain.MonitorID, since time.Time, location string) ([]domain.Measurement, error)
}

type AlertStore interface {
	InsertAlert(ctx context.Context, a *domain.Alert) (*domain.Alert, error)
	// AlertsSince returns alerts created at or after the cutoff, newest first.
	AlertsSince(ctx context.Context, id domain.MonitorID, since time.Time) ([]domain.Alert, error)
	// Alerts returns alerts newest first; empty id means all monitors.
	Alerts(ctx context.Context, id domain.MonitorID) ([]domain.Alert, error)
	Acknowledge(ctx context.Context, alertID string) error
}
