package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"vantage/internal/domain"
	"vantage/internal/repo"
)

var _ repo.MonitorStore = (*Store)(nil)
var _ repo.MeasurementStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Store implements the repo ports on a sqlite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS monitors (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	url             TEXT NOT NULL,
	interval        INTEGER NOT NULL DEFAULT 300,
	locations       TEXT NOT NULL,
	webhook_url     TEXT,
	active          INTEGER NOT NULL DEFAULT 1,
	public          INTEGER NOT NULL DEFAULT 0,
	last_checked_at TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitors_active_last_checked ON monitors (active, last_checked_at);

CREATE TABLE IF NOT EXISTS measurements (
	id            TEXT PRIMARY KEY,
	monitor_id    TEXT NOT NULL,
	location      TEXT NOT NULL,
	country       TEXT,
	city          TEXT,
	network_type  TEXT,
	status_code   INTEGER,
	latency       REAL NOT NULL,
	status        TEXT NOT NULL,
	error_message TEXT,
	timestamp     TEXT NOT NULL,
	FOREIGN KEY(monitor_id) REFERENCES monitors(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_measurements_monitor_timestamp ON measurements (monitor_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id           TEXT PRIMARY KEY,
	monitor_id   TEXT NOT NULL,
	type         TEXT NOT NULL,
	message      TEXT NOT NULL,
	acknowledged INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	FOREIGN KEY(monitor_id) REFERENCES monitors(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_alerts_monitor_created ON alerts (monitor_id, created_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Fixed-width fraction so stored timestamps order lexicographically, which
// the >= comparisons in Window and AlertsSince rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// ---- MonitorStore ----

func (s *Store) Create(ctx context.Context, m *domain.Monitor) error {
	if m.ID == "" {
		m.ID = domain.MonitorID(uuid.NewString())
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	var lastChecked any
	if m.LastCheckedAt != nil {
		lastChecked = fmtTime(*m.LastCheckedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitors (id, name, url, interval, locations, webhook_url, active, public, last_checked_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(m.ID), m.Name, m.URL, m.IntervalSec, m.Locations, nullStr(m.WebhookURL),
		m.Active, m.Public, lastChecked, fmtTime(m.CreatedAt), fmtTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert monitor: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, m *domain.Monitor) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET name = ?, url = ?, interval = ?, locations = ?, webhook_url = ?, active = ?, public = ?, updated_at = ?
		 WHERE id = ?`,
		m.Name, m.URL, m.IntervalSec, m.Locations, nullStr(m.WebhookURL),
		m.Active, m.Public, fmtTime(m.UpdatedAt), string(m.ID),
	)
	if err != nil {
		return fmt.Errorf("update monitor: %w", err)
	}
	return requireRow(res)
}

func (s *Store) Delete(ctx context.Context, id domain.MonitorID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	return requireRow(res)
}

func (s *Store) GetByID(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, interval, locations, webhook_url, active, public, last_checked_at, created_at, updated_at
		   FROM monitors WHERE id = ?`, string(id))
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	return m, err
}

func (s *Store) List(ctx context.Context) ([]domain.Monitor, error) {
	return s.listWhere(ctx, ``)
}

func (s *Store) ListActive(ctx context.Context) ([]domain.Monitor, error) {
	return s.listWhere(ctx, `WHERE active = 1`)
}

func (s *Store) listWhere(ctx context.Context, where string) ([]domain.Monitor, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, name, url, interval, locations, webhook_url, active, public, last_checked_at, created_at, updated_at
		   FROM monitors %s ORDER BY created_at, id`, where))
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	var out []domain.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) SetLastChecked(ctx context.Context, id domain.MonitorID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET last_checked_at = ? WHERE id = ?`, fmtTime(at), string(id))
	if err != nil {
		return fmt.Errorf("set last checked: %w", err)
	}
	return requireRow(res)
}

func (s *Store) SetActive(ctx context.Context, id domain.MonitorID, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET active = ?, updated_at = ? WHERE id = ?`,
		active, fmtTime(time.Now().UTC()), string(id))
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRow(res)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMonitor(row scannable) (*domain.Monitor, error) {
	var (
		m           domain.Monitor
		id          string
		webhook     sql.NullString
		lastChecked sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&id, &m.Name, &m.URL, &m.IntervalSec, &m.Locations, &webhook,
		&m.Active, &m.Public, &lastChecked, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.ID = domain.MonitorID(id)
	if webhook.Valid {
		m.WebhookURL = webhook.String
	}
	if lastChecked.Valid {
		t := parseTime(lastChecked.String)
		m.LastCheckedAt = &t
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

// ---- MeasurementStore ----

func (s *Store) InsertBatch(ctx context.Context, batch []domain.Measurement) ([]domain.Measurement, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	out := make([]domain.Measurement, 0, len(batch))
	for _, m := range batch {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		var statusCode any
		if m.StatusCode != nil {
			statusCode = *m.StatusCode
		}
		var errMsg any
		if m.ErrorMessage != nil {
			errMsg = *m.ErrorMessage
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO measurements (id, monitor_id, location, country, city, network_type, status_code, latency, status, error_message, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, string(m.MonitorID), m.Location, nullStr(m.Country), nullStr(m.City), nullStr(m.NetworkType),
			statusCode, m.LatencyMS, m.Status, errMsg, fmtTime(m.Timestamp),
		)
		if err != nil {
			return nil, fmt.Errorf("insert measurement: %w", err)
		}
		out = append(out, m)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *Store) Recent(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Measurement, error) {
	return s.queryMeasurements(ctx,
		`SELECT id, monitor_id, location, country, city, network_type, status_code, latency, status, error_message, timestamp
		   FROM measurements WHERE monitor_id = ? ORDER BY timestamp DESC LIMIT ?`,
		string(id), limit)
}

func (s *Store) Window(ctx context.Context, id domain.MonitorID, since time.Time, location string) ([]domain.Measurement, error) {
	if location != "" {
		return s.queryMeasurements(ctx,
			`SELECT id, monitor_id, location, country, city, network_type, status_code, latency, status, error_message, timestamp
			   FROM measurements WHERE monitor_id = ? AND timestamp >= ? AND location = ? ORDER BY timestamp DESC`,
			string(id), fmtTime(since), location)
	}
	return s.queryMeasurements(ctx,
		`SELECT id, monitor_id, location, country, city, network_type, status_code, latency, status, error_message, timestamp
		   FROM measurements WHERE monitor_id = ? AND timestamp >= ? ORDER BY timestamp DESC`,
		string(id), fmtTime(since))
}

func (s *Store) queryMeasurements(ctx context.Context, query string, args ...any) ([]domain.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var out []domain.Measurement
	for rows.Next() {
		var (
			m          domain.Measurement
			monitorID  string
			country    sql.NullString
			city       sql.NullString
			netType    sql.NullString
			statusCode sql.NullInt64
			errMsg     sql.NullString
			ts         string
		)
		if err := rows.Scan(&m.ID, &monitorID, &m.Location, &country, &city, &netType,
			&statusCode, &m.LatencyMS, &m.Status, &errMsg, &ts); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.MonitorID = domain.MonitorID(monitorID)
		m.Country = country.String
		m.City = city.String
		m.NetworkType = netType.String
		if statusCode.Valid {
			v := int(statusCode.Int64)
			m.StatusCode = &v
		}
		if errMsg.Valid {
			v := errMsg.String
			m.ErrorMessage = &v
		}
		m.Timestamp = parseTime(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- AlertStore ----

func (s *Store) InsertAlert(ctx context.Context, a *domain.Alert) (*domain.Alert, error) {
	cp := *a
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, monitor_id, type, message, acknowledged, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ID, string(cp.MonitorID), cp.Type, cp.Message, cp.Acknowledged, fmtTime(cp.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return &cp, nil
}

func (s *Store) AlertsSince(ctx context.Context, id domain.MonitorID, since time.Time) ([]domain.Alert, error) {
	return s.queryAlerts(ctx,
		`SELECT id, monitor_id, type, message, acknowledged, created_at
		   FROM alerts WHERE monitor_id = ? AND created_at >= ? ORDER BY created_at DESC`,
		string(id), fmtTime(since))
}

func (s *Store) Alerts(ctx context.Context, id domain.MonitorID) ([]domain.Alert, error) {
	if id == "" {
		return s.queryAlerts(ctx,
			`SELECT id, monitor_id, type, message, acknowledged, created_at
			   FROM alerts ORDER BY created_at DESC`)
	}
	return s.queryAlerts(ctx,
		`SELECT id, monitor_id, type, message, acknowledged, created_at
		   FROM alerts WHERE monitor_id = ? ORDER BY created_at DESC`,
		string(id))
}

func (s *Store) Acknowledge(ctx context.Context, alertID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = 1 WHERE id = ?`, alertID)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	return requireRow(res)
}

func (s *Store) queryAlerts(ctx context.Context, query string, args ...any) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a         domain.Alert
			monitorID string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &monitorID, &a.Type, &a.Message, &a.Acknowledged, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.MonitorID = domain.MonitorID(monitorID)
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}
