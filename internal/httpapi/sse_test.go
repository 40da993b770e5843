package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vantage/internal/events"
)

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEvents_StreamsAndUnsubscribes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleEvents(rr, req)
		close(done)
	}()

	waitFor(t, func() bool { return srv.Bus.Subscribers() == 1 }, "subscription")

	srv.Bus.Publish(events.MeasurementNew{
		MonitorID: "m1",
		Location:  "Berlin, DE",
		Status:    "success",
		LatencyMS: 12.5,
		Timestamp: time.Now().UTC(),
	})
	srv.Bus.Publish(events.StatusChange{MonitorID: "m1", Status: "up"})

	// Give the handler a moment to drain the channel, then disconnect.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return on disconnect")
	}

	body := rr.Body.String()
	if !strings.Contains(body, "event: measurement-new\n") {
		t.Fatalf("missing measurement-new frame:\n%s", body)
	}
	if !strings.Contains(body, `"monitorId":"m1"`) {
		t.Fatalf("missing payload:\n%s", body)
	}
	if !strings.Contains(body, "event: status-change\n") {
		t.Fatalf("missing status-change frame:\n%s", body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("want text/event-stream, got %q", ct)
	}
	if srv.Bus.Subscribers() != 0 {
		t.Fatalf("subscription leaked: %d", srv.Bus.Subscribers())
	}
}
