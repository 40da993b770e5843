package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"vantage/internal/domain"
	"vantage/internal/events"
	"vantage/internal/repo/memory"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs []domain.MonitorID
	err  error
	// onRun lets a test write measurements as a real run would.
	onRun func(ctx context.Context, m *domain.Monitor)
}

func (f *fakeRunner) Execute(ctx context.Context, m *domain.Monitor) error {
	f.mu.Lock()
	f.runs = append(f.runs, m.ID)
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(ctx, m)
	}
	return f.err
}

func newTestServer(t *testing.T) (*Server, *memory.Store, *fakeRunner) {
	t.Helper()
	store := memory.New()
	runner := &fakeRunner{}
	srv := NewServer(zap.NewNop(), store, store, store, events.NewBus(16), runner)
	return srv, store, runner
}

func seedMonitor(t *testing.T, store *memory.Store) *domain.Monitor {
	t.Helper()
	m := &domain.Monitor{
		Name:        "example",
		URL:         "https://example.com",
		IntervalSec: 60,
		Locations:   `[{"location":{"type":"country","name":"Germany","code":"DE"}}]`,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := store.Create(context.Background(), m); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return m
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreateMonitor_OKAndValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Router()

	valid := map[string]any{
		"name":      "my site",
		"url":       "https://example.com",
		"interval":  300,
		"locations": []map[string]any{{"location": map[string]string{"type": "country", "code": "DE"}}},
	}
	rr := doJSON(t, h, http.MethodPost, "/api/monitors", valid)
	if rr.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created domain.Monitor
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || !created.Active {
		t.Fatalf("expected id and active=true, got %+v", created)
	}

	bad := []map[string]any{
		{"name": "x", "url": "https://example.com", "interval": 300, "locations": valid["locations"]},
		{"name": "my site", "url": "not a url", "interval": 300, "locations": valid["locations"]},
		{"name": "my site", "url": "https://example.com", "interval": 10, "locations": valid["locations"]},
		{"name": "my site", "url": "https://example.com", "interval": 7200, "locations": valid["locations"]},
		{"name": "my site", "url": "https://example.com", "interval": 300, "locations": []any{}},
		{"name": "my site", "url": "https://example.com", "interval": 300, "locations": valid["locations"], "webhook_url": "::bad::"},
	}
	for i, p := range bad {
		rr := doJSON(t, h, http.MethodPost, "/api/monitors", p)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %d: want 400, got %d: %s", i, rr.Code, rr.Body.String())
		}
		var e map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&e); err != nil || e["error"] == "" {
			t.Fatalf("case %d: expected error body, got %s", i, rr.Body.String())
		}
	}
}

func TestListMonitors_Summaries(t *testing.T) {
	srv, store, _ := newTestServer(t)
	m := seedMonitor(t, store)

	now := time.Now().UTC()
	_, err := store.InsertBatch(context.Background(), []domain.Measurement{
		{MonitorID: m.ID, Location: "Berlin, DE", Status: domain.MeasurementFailed, Timestamp: now},
		{MonitorID: m.ID, Location: "Berlin, DE", Status: domain.MeasurementSuccess, LatencyMS: 120, Timestamp: now.Add(-time.Minute)},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rr := doJSON(t, srv.Router(), http.MethodGet, "/api/monitors", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
	var list []struct {
		ID        string  `json:"id"`
		Status    string  `json:"status"`
		Uptime24h float64 `json:"uptime24h"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("want 1 monitor, got %d", len(list))
	}
	if list[0].Status != domain.StatusDown {
		t.Fatalf("latest is failed, want status down, got %q", list[0].Status)
	}
	if list[0].Uptime24h != 50 {
		t.Fatalf("want uptime 50, got %v", list[0].Uptime24h)
	}
}

func TestListMonitors_NoDataIsUnknownAndFullUptime(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedMonitor(t, store)

	rr := doJSON(t, srv.Router(), http.MethodGet, "/api/monitors", nil)
	var list []struct {
		Status    string  `json:"status"`
		Uptime24h float64 `json:"uptime24h"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list[0].Status != domain.StatusUnknown || list[0].Uptime24h != 100 {
		t.Fatalf("want unknown/100 with no data, got %+v", list[0])
	}
}

func TestGetUpdateDeleteMonitor(t *testing.T) {
	srv, store, _ := newTestServer(t)
	m := seedMonitor(t, store)
	h := srv.Router()

	rr := doJSON(t, h, http.MethodGet, "/api/monitors/"+string(m.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: want 200, got %d", rr.Code)
	}

	upd := map[string]any{
		"name":      "renamed",
		"url":       "https://example.org",
		"interval":  120,
		"locations": []map[string]any{{"location": map[string]string{"type": "city", "name": "Berlin"}}},
	}
	rr = doJSON(t, h, http.MethodPut, "/api/monitors/"+string(m.ID), upd)
	if rr.Code != http.StatusOK {
		t.Fatalf("put: want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got, err := store.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if got.Name != "renamed" || got.IntervalSec != 120 {
		t.Fatalf("update not persisted: %+v", got)
	}

	rr = doJSON(t, h, http.MethodDelete, "/api/monitors/"+string(m.ID), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: want 204, got %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodGet, "/api/monitors/"+string(m.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: want 404, got %d", rr.Code)
	}
}

func TestPauseMonitor_Toggles(t *testing.T) {
	srv, store, _ := newTestServer(t)
	m := seedMonitor(t, store)
	h := srv.Router()

	rr := doJSON(t, h, http.MethodPost, "/api/monitors/"+string(m.ID)+"/pause", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pause: want 200, got %d", rr.Code)
	}
	got, _ := store.GetByID(context.Background(), m.ID)
	if got.Active {
		t.Fatal("expected paused")
	}

	rr = doJSON(t, h, http.MethodPost, "/api/monitors/"+string(m.ID)+"/pause", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("resume: want 200, got %d", rr.Code)
	}
	got, _ = store.GetByID(context.Background(), m.ID)
	if !got.Active {
		t.Fatal("expected resumed")
	}
}

func TestListMeasurements_SinceAndLocation(t *testing.T) {
	srv, store, _ := newTestServer(t)
	m := seedMonitor(t, store)
	now := time.Now().UTC()
	_, err := store.InsertBatch(context.Background(), []domain.Measurement{
		{MonitorID: m.ID, Location: "Berlin, DE", Status: domain.MeasurementSuccess, Timestamp: now},
		{MonitorID: m.ID, Location: "Tokyo, JP", Status: domain.MeasurementSuccess, Timestamp: now},
		{MonitorID: m.ID, Location: "Berlin, DE", Status: domain.MeasurementSuccess, Timestamp: now.Add(-48 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	h := srv.Router()

	rr := doJSON(t, h, http.MethodGet, "/api/monitors/"+string(m.ID)+"/measurements", nil)
	var rows []domain.Measurement
	if err := json.NewDecoder(rr.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("default 24h window: want 2 rows, got %d", len(rows))
	}

	rr = doJSON(t, h, http.MethodGet, "/api/monitors/"+string(m.ID)+"/measurements?location=Tokyo,%20JP", nil)
	rows = nil
	if err := json.NewDecoder(rr.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].Location != "Tokyo, JP" {
		t.Fatalf("location filter: got %+v", rows)
	}

	since := now.Add(-72 * time.Hour).Format(time.RFC3339)
	rr = doJSON(t, h, http.MethodGet, "/api/monitors/"+string(m.ID)+"/measurements?since="+since, nil)
	rows = nil
	if err := json.NewDecoder(rr.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("explicit since: want 3 rows, got %d", len(rows))
	}

	rr = doJSON(t, h, http.MethodGet, "/api/monitors/"+string(m.ID)+"/measurements?since=yesterday", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad since: want 400, got %d", rr.Code)
	}
}

func TestAlerts_ListAndAcknowledge(t *testing.T) {
	srv, store, _ := newTestServer(t)
	m := seedMonitor(t, store)
	a, err := store.InsertAlert(context.Background(), &domain.Alert{
		MonitorID: m.ID,
		Type:      domain.AlertDown,
		Message:   "example is down",
	})
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}
	h := srv.Router()

	rr := doJSON(t, h, http.MethodGet, "/api/alerts?monitor_id="+string(m.ID), nil)
	var alerts []domain.Alert
	if err := json.NewDecoder(rr.Body).Decode(&alerts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Acknowledged {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/alerts/"+a.ID+"/acknowledge", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("ack: want 204, got %d", rr.Code)
	}
	alerts, _ = store.Alerts(context.Background(), m.ID)
	if !alerts[0].Acknowledged {
		t.Fatal("expected acknowledged")
	}

	rr = doJSON(t, h, http.MethodPost, "/api/alerts/nope/acknowledge", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("ack missing: want 404, got %d", rr.Code)
	}
}

func TestTestCheck_RunsAndReturnsRows(t *testing.T) {
	srv, store, runner := newTestServer(t)
	m := seedMonitor(t, store)
	runner.onRun = func(ctx context.Context, mon *domain.Monitor) {
		_, _ = store.InsertBatch(ctx, []domain.Measurement{
			{MonitorID: mon.ID, Location: "Berlin, DE", Status: domain.MeasurementSuccess, LatencyMS: 42, Timestamp: time.Now().UTC()},
		})
	}
	h := srv.Router()

	rr := doJSON(t, h, http.MethodPost, "/api/test-check", map[string]string{"monitor_id": string(m.ID)})
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Measurements []domain.Measurement `json:"measurements"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Measurements) != 1 || out.Measurements[0].LatencyMS != 42 {
		t.Fatalf("unexpected measurements: %+v", out.Measurements)
	}
	if len(runner.runs) != 1 || runner.runs[0] != m.ID {
		t.Fatalf("runner not invoked: %+v", runner.runs)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/test-check", map[string]string{"monitor_id": "missing"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing monitor: want 404, got %d", rr.Code)
	}
}
