package globalping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.globalping.io/v1"

const (
	createAttempts  = 3
	attemptTimeout  = 30 * time.Second
	pollFirstDelay  = 1000 * time.Millisecond
	pollMaxDelay    = 5000 * time.Millisecond
	pollBackoff     = 1.5
	pollMaxAttempts = 20
)

// Client talks to the measurement provider. It holds no state between
// invocations; every field is fixed at construction.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger

	// Retry/poll knobs. Zero values fall back to the production constants;
	// tests shrink them.
	CreateAttempts int
	PollAttempts   int
	PollFirstDelay time.Duration
	PollMaxDelay   time.Duration
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: attemptTimeout},
		Logger:  logger,
	}
}

func (c *Client) createBudget() int {
	if c.CreateAttempts > 0 {
		return c.CreateAttempts
	}
	return createAttempts
}

func (c *Client) pollBudget() (int, time.Duration, time.Duration) {
	attempts, first, max := pollMaxAttempts, pollFirstDelay, pollMaxDelay
	if c.PollAttempts > 0 {
		attempts = c.PollAttempts
	}
	if c.PollFirstDelay > 0 {
		first = c.PollFirstDelay
	}
	if c.PollMaxDelay > 0 {
		max = c.PollMaxDelay
	}
	return attempts, first, max
}

// CreateMeasurement submits a probe job and returns its id. Transport
// failures are retried up to the attempt budget; a non-success provider
// response fails immediately.
func (c *Client) CreateMeasurement(ctx context.Context, req *MeasurementRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < c.createBudget(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &TransportError{Err: err}
		}

		id, err := c.tryCreate(ctx, payload)
		if err == nil {
			c.Logger.Debug("globalping_created",
				zap.String("id", id),
				zap.String("target", req.Target),
				zap.Int("attempt", attempt+1),
			)
			return id, nil
		}
		var pe *ProviderError
		if errors.As(err, &pe) {
			return "", err
		}
		lastErr = err
	}
	return "", &TransportError{Err: lastErr}
}

func (c *Client) tryCreate(ctx context.Context, payload []byte) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.BaseURL+"/measurements", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out MeasurementResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// PollMeasurement fetches job status until it leaves in-progress, backing
// off between polls. Finished and failed are both terminal and returned
// as-is; the caller decides what a failed job means.
func (c *Client) PollMeasurement(ctx context.Context, id string) (*MeasurementResponse, error) {
	attempts, delay, maxDelay := c.pollBudget()

	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, &TransportError{Err: ctx.Err()}
		case <-time.After(delay):
		}

		out, err := c.getMeasurement(ctx, id)
		if err != nil {
			return nil, err
		}
		if out.Status != StatusInProgress {
			c.Logger.Debug("globalping_done",
				zap.String("id", id),
				zap.String("status", out.Status),
				zap.Int("polls", attempt+1),
			)
			return out, nil
		}

		delay = time.Duration(float64(delay) * pollBackoff)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return nil, &TimeoutError{ID: id, Attempts: attempts}
}

func (c *Client) getMeasurement(ctx context.Context, id string) (*MeasurementResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, c.BaseURL+"/measurements/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out MeasurementResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunMeasurement is the create + poll composition used by check cycles.
func (c *Client) RunMeasurement(ctx context.Context, req *MeasurementRequest) (*MeasurementResponse, error) {
	id, err := c.CreateMeasurement(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.PollMeasurement(ctx, id)
}
