package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"vantage/internal/domain"
	"vantage/internal/repo"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "vantage_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMonitorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &domain.Monitor{
		Name:        "api",
		URL:         "https://example.com/health",
		IntervalSec: 300,
		Locations:   `[{"country":"DE"}]`,
		WebhookURL:  "https://hooks.example.com/x",
		Active:      true,
		Public:      true,
	}
	if err := s.Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != m.Name || got.URL != m.URL || got.IntervalSec != 300 ||
		got.WebhookURL != m.WebhookURL || !got.Active || !got.Public {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.LastCheckedAt != nil {
		t.Fatal("fresh monitor must have nil LastCheckedAt")
	}

	at := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.SetLastChecked(ctx, m.ID, at); err != nil {
		t.Fatalf("SetLastChecked: %v", err)
	}
	got, _ = s.GetByID(ctx, m.ID)
	if got.LastCheckedAt == nil || !got.LastCheckedAt.Equal(at) {
		t.Fatalf("LastCheckedAt = %v, want %v", got.LastCheckedAt, at)
	}

	got.Name = "renamed"
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.SetActive(ctx, m.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("paused monitor still listed active: %+v", active)
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &domain.Monitor{Name: "x", URL: "https://x.test", IntervalSec: 60, Locations: "[]", Active: true}
	if err := s.Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertBatch(ctx, []domain.Measurement{
		{MonitorID: m.ID, Location: "Berlin, DE", Status: domain.MeasurementSuccess, LatencyMS: 42},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertAlert(ctx, &domain.Alert{MonitorID: m.ID, Type: domain.AlertDown, Message: "down"}); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ms, err := s.Recent(ctx, m.ID, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(ms) != 0 {
		t.Fatalf("measurements survived cascade: %+v", ms)
	}
	as, err := s.Alerts(ctx, m.ID)
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(as) != 0 {
		t.Fatalf("alerts survived cascade: %+v", as)
	}

	if err := s.Delete(ctx, m.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete: %v, want ErrNotFound", err)
	}
}

func TestMeasurementOrderingAndWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &domain.Monitor{Name: "x", URL: "https://x.test", IntervalSec: 60, Locations: "[]", Active: true}
	if err := s.Create(ctx, m); err != nil {
		t.Fatal(err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	code := 200
	var batch []domain.Measurement
	for i := 0; i < 6; i++ {
		status := domain.MeasurementSuccess
		if i%2 == 0 {
			status = domain.MeasurementFailed
		}
		batch = append(batch, domain.Measurement{
			MonitorID:  m.ID,
			Location:   "Berlin, DE",
			StatusCode: &code,
			LatencyMS:  float64(100 + i),
			Status:     status,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	inserted, err := s.InsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if len(inserted) != 6 || inserted[0].ID == "" {
		t.Fatalf("inserted = %+v", inserted)
	}

	recent, err := s.Recent(ctx, m.ID, 4)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("len = %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Timestamp.After(recent[i-1].Timestamp) {
			t.Fatal("Recent must be newest first")
		}
	}
	if recent[0].StatusCode == nil || *recent[0].StatusCode != 200 {
		t.Fatalf("status code lost: %+v", recent[0])
	}

	win, err := s.Window(ctx, m.ID, base.Add(4*time.Minute), "Berlin, DE")
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(win) != 2 {
		t.Fatalf("window len = %d", len(win))
	}
}

func TestAlertsSinceBoundary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &domain.Monitor{Name: "x", URL: "https://x.test", IntervalSec: 60, Locations: "[]", Active: true}
	if err := s.Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := s.InsertAlert(ctx, &domain.Alert{MonitorID: m.ID, Type: domain.AlertDown, Message: "old", CreatedAt: now.Add(-10 * time.Minute)}); err != nil {
		t.Fatal(err)
	}
	created, err := s.InsertAlert(ctx, &domain.Alert{MonitorID: m.ID, Type: domain.AlertDown, Message: "fresh", CreatedAt: now})
	if err != nil {
		t.Fatal(err)
	}

	recent, err := s.AlertsSince(ctx, m.ID, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("AlertsSince: %v", err)
	}
	if len(recent) != 1 || recent[0].Message != "fresh" {
		t.Fatalf("recent = %+v", recent)
	}

	if err := s.Acknowledge(ctx, created.ID); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	all, _ := s.Alerts(ctx, m.ID)
	if len(all) != 2 || !all[0].Acknowledged {
		t.Fatalf("alerts = %+v", all)
	}
}
