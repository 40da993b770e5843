package domain

import (
	"math"
	"time"
)

type MonitorID string

// Monitor statuses as exposed on the live-update surface.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"
)

// Measurement outcomes.
const (
	MeasurementSuccess = "success"
	MeasurementFailed  = "failed"
)

// Alert types.
const (
	AlertDown         = "down"
	AlertUp           = "up"
	AlertLatencySpike = "latency_spike"
	AlertCertExpiring = "cert_expiring"
)

// Probe network types.
const (
	NetworkResidential = "residential"
	NetworkDatacenter  = "datacenter"
)

// Check interval bounds accepted by validation, in seconds.
const (
	MinIntervalSec = 60
	MaxIntervalSec = 3600
)

type Monitor struct {
	ID            MonitorID  `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	IntervalSec   int        `json:"interval"`
	Locations     string     `json:"locations"` // raw JSON, normalized by globalping.NormalizeLocations
	WebhookURL    string     `json:"webhook_url,omitempty"`
	Active        bool       `json:"active"`
	Public        bool       `json:"public"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.IntervalSec) * time.Second
}

// Measurement is one probe result for one monitor at one vantage point.
// Rows are append-only: once written they are never mutated.
type Measurement struct {
	ID           string    `json:"id"`
	MonitorID    MonitorID `json:"monitor_id"`
	Location     string    `json:"location"`
	Country      string    `json:"country,omitempty"`
	City         string    `json:"city,omitempty"`
	NetworkType  string    `json:"network_type,omitempty"`
	StatusCode   *int      `json:"status_code"`
	LatencyMS    float64   `json:"latency_ms"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
	Timestamp    time.Time `json:"timestamp"`
}

func (m *Measurement) Failed() bool { return m.Status == MeasurementFailed }

// ImpliedStatus maps a measurement outcome onto the monitor status shown to
// live subscribers.
func (m *Measurement) ImpliedStatus() string {
	if m.Status == MeasurementSuccess {
		return StatusUp
	}
	return StatusDown
}

type Alert struct {
	ID           string    `json:"id"`
	MonitorID    MonitorID `json:"monitor_id"`
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// UptimePercent is the share of successful measurements in the window,
// rounded to the nearest integer percent. An empty window reports 100: a
// monitor with no data has never been observed down.
func UptimePercent(ms []Measurement) float64 {
	if len(ms) == 0 {
		return 100
	}
	var ok int
	for i := range ms {
		if ms[i].Status == MeasurementSuccess {
			ok++
		}
	}
	return math.Round(float64(ok) / float64(len(ms)) * 100)
}
