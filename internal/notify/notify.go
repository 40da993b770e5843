package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"vantage/internal/domain"
)

// Notifier delivers one alert to an outbound channel.
type Notifier interface {
	Send(ctx context.Context, webhookURL string, alert *domain.Alert) error
}

// Multi fans an alert out to several notifiers and aggregates their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, webhookURL string, alert *domain.Alert) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, webhookURL, alert))
	}
	return err
}

// Embed is the rich block inside a webhook payload.
type Embed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Timestamp   time.Time `json:"timestamp"`
}

type Payload struct {
	Embeds []Embed `json:"embeds"`
}
