package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vantage/internal/domain"
	"vantage/internal/repo"
)

var _ repo.MonitorStore = (*Store)(nil)
var _ repo.MeasurementStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Store keeps everything in process memory. Used for development and tests.
type Store struct {
	mu           sync.RWMutex
	monitors     map[domain.MonitorID]*domain.Monitor
	order        []domain.MonitorID // stable iteration order (insertion)
	measurements map[domain.MonitorID][]domain.Measurement
	alerts       []domain.Alert
}

func New() *Store {
	return &Store{
		monitors:     make(map[domain.MonitorID]*domain.Monitor),
		measurements: make(map[domain.MonitorID][]domain.Measurement),
	}
}

// ---- MonitorStore ----

func (s *Store) Create(ctx context.Context, m *domain.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	cp := *m
	s.monitors[m.ID] = &cp
	s.order = append(s.order, m.ID)
	return nil
}

func (s *Store) Update(ctx context.Context, m *domain.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.monitors[m.ID]; !ok {
		return repo.ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	s.monitors[m.ID] = &cp
	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.MonitorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.monitors[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.monitors, id)
	for i, mid := range s.order {
		if mid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	// cascade, same as the FK rules in the sqlite adapter
	delete(s.measurements, id)
	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if a.MonitorID != id {
			kept = append(kept, a)
		}
	}
	s.alerts = kept
	return nil
}

func (s *Store) GetByID(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.monitors[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Monitor, 0, len(s.order))
	for _, id := range s.order {
		if m, ok := s.monitors[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) ListActive(ctx context.Context) ([]domain.Monitor, error) {
	all, _ := s.List(ctx)
	out := all[:0]
	for _, m := range all {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) SetLastChecked(ctx context.Context, id domain.MonitorID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok {
		return repo.ErrNotFound
	}
	t := at
	m.LastCheckedAt = &t
	return nil
}

func (s *Store) SetActive(ctx context.Context, id domain.MonitorID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok {
		return repo.ErrNotFound
	}
	m.Active = active
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- MeasurementStore ----

func (s *Store) InsertBatch(ctx context.Context, batch []domain.Measurement) ([]domain.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	out := make([]domain.Measurement, 0, len(batch))
	for _, m := range batch {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		s.measurements[m.MonitorID] = append(s.measurements[m.MonitorID], m)
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) Recent(ctx context.Context, id domain.MonitorID, limit int) ([]domain.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.measurements[id], limit, time.Time{}, ""), nil
}

func (s *Store) Window(ctx context.Context, id domain.MonitorID, since time.Time, location string) ([]domain.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.measurements[id], 0, since, location), nil
}

func newestFirst(ms []domain.Measurement, limit int, since time.Time, location string) []domain.Measurement {
	out := make([]domain.Measurement, 0, len(ms))
	for _, m := range ms {
		if !since.IsZero() && m.Timestamp.Before(since) {
			continue
		}
		if location != "" && m.Location != location {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ---- AlertStore ----

func (s *Store) InsertAlert(ctx context.Context, a *domain.Alert) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.alerts = append(s.alerts, cp)
	out := cp
	return &out, nil
}

func (s *Store) AlertsSince(ctx context.Context, id domain.MonitorID, since time.Time) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.MonitorID == id && !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Alerts(ctx context.Context, id domain.MonitorID) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if id == "" || a.MonitorID == id {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Acknowledge(ctx context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			s.alerts[i].Acknowledged = true
			return nil
		}
	}
	return repo.ErrNotFound
}
