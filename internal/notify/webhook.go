package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vantage/internal/domain"
)

// Webhook posts alert embeds to a configured webhook URL (Discord-style).
type Webhook struct {
	Client *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{Client: &http.Client{Timeout: 10 * time.Second}}
}

func alertEmoji(alertType string) string {
	switch alertType {
	case domain.AlertDown:
		return "🔴"
	case domain.AlertUp:
		return "🟢"
	case domain.AlertLatencySpike:
		return "⚠️"
	case domain.AlertCertExpiring:
		return "📜"
	default:
		return "🔔"
	}
}

func alertColor(alertType string) int {
	switch alertType {
	case domain.AlertDown:
		return 0xef4444
	case domain.AlertUp:
		return 0x10b981
	case domain.AlertLatencySpike:
		return 0xf59e0b
	default:
		return 0
	}
}

// Title renders the embed title for an alert type, e.g. "🔴 DOWN" or
// "⚠️ LATENCY SPIKE".
func Title(alertType string) string {
	return alertEmoji(alertType) + " " + strings.ReplaceAll(strings.ToUpper(alertType), "_", " ")
}

func (w *Webhook) Send(ctx context.Context, webhookURL string, alert *domain.Alert) error {
	if webhookURL == "" {
		return errors.New("webhook: no url configured")
	}

	body, err := json.Marshal(Payload{Embeds: []Embed{{
		Title:       Title(alert.Type),
		Description: alert.Message,
		Color:       alertColor(alert.Type),
		Timestamp:   alert.CreatedAt,
	}}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
