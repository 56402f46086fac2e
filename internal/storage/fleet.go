package storage

import (
	"sort"
	"sync"

	"pump-console/internal/data"
)

// Rollups are derived aggregates recomputed from the pump map on every
// mutation. They are never patched incrementally, so they cannot drift
// from the snapshots they summarize.
type Rollups struct {
	TotalPumps    int
	RunningPumps  int
	AvgEfficiency float64 // over running pumps only
	ActiveAlerts  int
}

// FleetStore is the canonical client-side mapping of pump id to pump
// snapshot. The reconciliation engine is its only writer; every other
// component holds a read-only view. Snapshots are replaced, never
// mutated in place, so a pointer handed to a reader stays internally
// consistent for as long as the reader keeps it.
type FleetStore struct {
	mu          sync.RWMutex
	pumps       map[int]*data.Pump
	health      data.SystemHealth
	usersOnline int
	rollups     Rollups
}

func NewFleetStore() *FleetStore {
	return &FleetStore{
		pumps: make(map[int]*data.Pump),
	}
}

// ReplaceAll swaps in a full resync: pumps absent from the list are
// dropped. Rollups are recomputed before the lock is released.
func (s *FleetStore) ReplaceAll(pumps []*data.Pump) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pumps = make(map[int]*data.Pump, len(pumps))
	for _, pump := range pumps {
		s.pumps[pump.ID] = pump
	}
	s.recomputeRollups()
}

// Replace swaps exactly one pump's snapshot.
func (s *FleetStore) Replace(id int, pump *data.Pump) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pumps[id] = pump
	s.recomputeRollups()
}

// ReplaceBatch swaps every listed snapshot under a single lock, so a
// reader never observes a half-applied bulk operation.
func (s *FleetStore) ReplaceBatch(pumps []*data.Pump) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pump := range pumps {
		s.pumps[pump.ID] = pump
	}
	s.recomputeRollups()
}

// AppendAlert derives a new snapshot for the pump with the alert
// appended, and swaps it in. Returns false without touching the store
// when the pump is unknown to this session.
func (s *FleetStore) AppendAlert(id int, alert data.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pump, ok := s.pumps[id]
	if !ok {
		return false
	}
	updated := pump.Clone()
	updated.Alerts = append(updated.Alerts, alert)
	s.pumps[id] = updated
	s.recomputeRollups()
	return true
}

// SetHealth replaces the system health wholesale.
func (s *FleetStore) SetHealth(health data.SystemHealth) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = health
}

// SetUsersOnline records the authority's connected-operator count.
func (s *FleetStore) SetUsersOnline(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersOnline = n
}

// Clear empties the store. Called on logout; the next full snapshot
// after (re)connect repopulates it.
func (s *FleetStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pumps = make(map[int]*data.Pump)
	s.health = data.SystemHealth{}
	s.usersOnline = 0
	s.recomputeRollups()
}

// Get returns the current snapshot for a pump.
func (s *FleetStore) Get(id int) (*data.Pump, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pump, ok := s.pumps[id]
	return pump, ok
}

// List returns every snapshot ordered by pump id.
func (s *FleetStore) List() []*data.Pump {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pumps := make([]*data.Pump, 0, len(s.pumps))
	for _, pump := range s.pumps {
		pumps = append(pumps, pump)
	}
	sort.Slice(pumps, func(i, j int) bool { return pumps[i].ID < pumps[j].ID })
	return pumps
}

// Len returns the number of tracked pumps.
func (s *FleetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pumps)
}

// Health returns the last system health received.
func (s *FleetStore) Health() data.SystemHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// UsersOnline returns the last connected-operator count received.
func (s *FleetStore) UsersOnline() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersOnline
}

// Rollups returns the aggregates as of the last mutation.
func (s *FleetStore) Rollups() Rollups {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rollups
}

// recomputeRollups rebuilds the aggregates from scratch. Callers must
// hold the write lock.
func (s *FleetStore) recomputeRollups() {
	rollups := Rollups{TotalPumps: len(s.pumps)}
	var efficiencySum float64
	for _, pump := range s.pumps {
		if pump.Status == data.StatusRunning {
			rollups.RunningPumps++
			efficiencySum += pump.Metrics.Efficiency
		}
		rollups.ActiveAlerts += len(pump.Alerts)
	}
	if rollups.RunningPumps > 0 {
		rollups.AvgEfficiency = efficiencySum / float64(rollups.RunningPumps)
	}
	s.rollups = rollups
}
