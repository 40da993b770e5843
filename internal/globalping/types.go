package globalping

// Wire types for the measurement provider API.

// Job statuses reported by the provider.
const (
	StatusInProgress = "in-progress"
	StatusFinished   = "finished"
	StatusFailed     = "failed"
)

// LocationFilter is the canonical probe-selection filter sent to the
// provider. Exactly one of Continent/Country/City is normally set.
type LocationFilter struct {
	Continent string   `json:"continent,omitempty"`
	Country   string   `json:"country,omitempty"`
	City      string   `json:"city,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type RequestTarget struct {
	Path    string            `json:"path,omitempty"`
	Host    string            `json:"host,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type MeasurementOptions struct {
	Protocol string         `json:"protocol,omitempty"`
	Port     int            `json:"port,omitempty"`
	Request  *RequestTarget `json:"request,omitempty"`
}

type MeasurementRequest struct {
	Type               string              `json:"type"`
	Target             string              `json:"target"`
	Locations          []LocationFilter    `json:"locations"`
	MeasurementOptions *MeasurementOptions `json:"measurementOptions,omitempty"`
}

type ProbeInfo struct {
	Continent string   `json:"continent"`
	Country   string   `json:"country"`
	City      string   `json:"city"`
	Tags      []string `json:"tags"`
}

type ProbeTimings struct {
	Total     float64 `json:"total"`
	FirstByte float64 `json:"firstByte"`
	Download  float64 `json:"download"`
}

type ProbeOutcome struct {
	Status     string        `json:"status"` // finished | failed
	StatusCode *int          `json:"statusCode,omitempty"`
	Timings    *ProbeTimings `json:"timings,omitempty"`
	RawError   *string       `json:"rawError,omitempty"`
}

type ProbeResult struct {
	Probe  ProbeInfo    `json:"probe"`
	Result ProbeOutcome `json:"result"`
}

type MeasurementResponse struct {
	ID      string        `json:"id"`
	Status  string        `json:"status"`
	Type    string        `json:"type,omitempty"`
	Target  string        `json:"target,omitempty"`
	Results []ProbeResult `json:"results,omitempty"`
}
