package events

import (
	"sync"
	"time"
)

// Event names on the live-update surface.
const (
	NameMonitorUpdate  = "monitor-update"
	NameMeasurementNew = "measurement-new"
	NameStatusChange   = "status-change"
)

type Event interface {
	EventName() string
}

type MonitorUpdate struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	Status   string  `json:"status"`
	Uptime24 float64 `json:"uptime24h"`
}

func (MonitorUpdate) EventName() string { return NameMonitorUpdate }

type MeasurementNew struct {
	MonitorID string    `json:"monitorId"`
	Location  string    `json:"location"`
	Status    string    `json:"status"`
	LatencyMS float64   `json:"latency"`
	Timestamp time.Time `json:"timestamp"`
}

func (MeasurementNew) EventName() string { return NameMeasurementNew }

type StatusChange struct {
	MonitorID string `json:"monitorId"`
	Status    string `json:"status"`
}

func (StatusChange) EventName() string { return NameStatusChange }

// Bus broadcasts events to live subscribers. It is owned by the process and
// handed to both the scheduler (publisher) and the transport layer, which
// subscribes on connect and unsubscribes on disconnect. Sends never block:
// a subscriber that falls behind loses events rather than stalling checks.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	buffer int
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 16
	}
	return &Bus{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe registers a new listener and returns its id and channel. The
// channel is closed by Unsubscribe.
func (b *Bus) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	return id, ch
}

func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
