package scheduler

import (
	"sync"

	"vantage/internal/domain"
)

// activeSet tracks the monitors with an in-flight check. One mutex guards
// membership and the count, the only state shared across check goroutines.
type activeSet struct {
	mu  sync.Mutex
	ids map[domain.MonitorID]struct{}
}

func newActiveSet() *activeSet {
	return &activeSet{ids: make(map[domain.MonitorID]struct{})}
}

// Add claims the monitor. It returns false if a check is already in flight.
func (a *activeSet) Add(id domain.MonitorID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.ids[id]; ok {
		return false
	}
	a.ids[id] = struct{}{}
	return true
}

func (a *activeSet) Remove(id domain.MonitorID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.ids, id)
}

func (a *activeSet) Contains(id domain.MonitorID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.ids[id]
	return ok
}

func (a *activeSet) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ids)
}
