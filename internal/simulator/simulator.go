package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"pump-console/internal/auth"
	"pump-console/internal/command"
	"pump-console/internal/config"
	"pump-console/internal/data"
)

// tickInterval is how often metrics drift and a data_update broadcast
// goes out.
const tickInterval = 5 * time.Second

// ErrPumpNotFound is returned for control requests against an unknown
// pump id.
var ErrPumpNotFound = errors.New("simulator: pump not found")

// Simulator is the central authority: it owns the real fleet state,
// authenticates operators, applies control actions, drifts metrics,
// derives alerts and system health, and pushes every change to all
// connected consoles.
type Simulator struct {
	auth   *auth.Manager
	hub    *Hub
	logger *slog.Logger

	mu         sync.Mutex
	pumps      map[int]*data.Pump
	thresholds map[string]config.Threshold
	health     data.SystemHealth
	activityID int
	messageID  int
	rng        *rand.Rand
}

func New(cfg *config.Simulator, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	thresholds := cfg.Thresholds
	if thresholds == nil {
		thresholds = config.DefaultThresholds()
	}
	s := &Simulator{
		auth:       auth.NewManager(cfg.Auth),
		hub:        NewHub(logger),
		logger:     logger,
		thresholds: thresholds,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.pumps = defaultFleet(s.rng)
	s.updateHealth()
	return s
}

// defaultFleet builds the stock six-pump fleet: four running, two
// stopped.
func defaultFleet(rng *rand.Rand) map[int]*data.Pump {
	types := []string{"Centrifugal", "Reciprocating", "Rotary", "Submersible", "Axial", "Gear"}
	locations := []string{"North Field", "South Field", "East Field", "West Field", "Central Station", "Coastal Station"}

	now := time.Now()
	pumps := make(map[int]*data.Pump, 6)
	for i := 1; i <= 6; i++ {
		status := data.StatusRunning
		if i > 4 {
			status = data.StatusStopped
		}
		pumps[i] = &data.Pump{
			ID:       i,
			Name:     fmt.Sprintf("Oil Pump %d", i),
			Type:     types[i-1],
			Location: locations[i-1],
			Status:   status,
			AutoMode: true,
			Metrics: data.Metrics{
				Pressure:    round1(45 + rng.Float64()*40),
				Temperature: round1(65 + rng.Float64()*30),
				FlowRate:    round1(150 + rng.Float64()*150),
				Vibration:   round2(0.5 + rng.Float64()*2),
				Power:       round1(75 + rng.Float64()*20),
				Efficiency:  round1(85 + rng.Float64()*13),
			},
			Alerts:          []data.Alert{},
			ProductionToday: round1(1000 + rng.Float64()*4000),
			TotalRuntime:    5000 + rng.Intn(10000),
			LastMaintenance: now.AddDate(0, 0, -(10 + rng.Intn(80))).Format(time.RFC3339),
			NextMaintenance: now.AddDate(0, 0, 30+rng.Intn(90)).Format(time.RFC3339),
			UpdatedAt:       now.Format(time.RFC3339),
		}
	}
	return pumps
}

// Run starts the hub and the monitoring loop, blocking until the
// context is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	go s.hub.Run(s.onClientGone)
	go s.consumeInbound(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick drifts every pump's metrics, rechecks alerts, rescores health,
// and broadcasts a full data_update.
func (s *Simulator) tick() {
	s.mu.Lock()
	var newAlerts []data.NewAlertEvent
	for _, pump := range s.pumps {
		s.driftMetrics(pump)
		newAlerts = append(newAlerts, s.refreshAlerts(pump)...)
	}
	s.updateHealth()
	update := s.snapshotLocked()
	s.mu.Unlock()

	for _, alert := range newAlerts {
		s.hub.Broadcast(data.EventNewAlert, alert)
	}
	s.hub.Broadcast(data.EventDataUpdate, update)
}

// snapshotLocked assembles a full data_update payload from cloned
// snapshots. Callers must hold s.mu.
func (s *Simulator) snapshotLocked() *data.DataUpdateEvent {
	pumps := s.clonedPumpsLocked()
	health := s.health
	online := s.hub.loggedIn()
	return &data.DataUpdateEvent{
		Pumps:        pumps,
		SystemHealth: &health,
		UsersOnline:  &online,
		Timestamp:    time.Now().Format(time.RFC3339),
	}
}

// Control applies one action to one pump and pushes the result to
// every console. The returned message echoes into the synchronous
// response; the state change itself travels only on the push channel.
func (s *Simulator) Control(pumpID int, action command.Action, userName string) (string, error) {
	s.mu.Lock()
	pump, ok := s.pumps[pumpID]
	if !ok {
		s.mu.Unlock()
		return "", ErrPumpNotFound
	}

	var message string
	switch action {
	case command.ActionStart:
		if pump.EmergencyStop {
			s.mu.Unlock()
			return "", fmt.Errorf("cannot start %s during emergency stop", pump.Name)
		}
		pump.Status = data.StatusRunning
		message = fmt.Sprintf("%s started", pump.Name)
	case command.ActionStop:
		pump.Status = data.StatusStopped
		message = fmt.Sprintf("%s stopped", pump.Name)
	case command.ActionEmergencyStop:
		pump.Status = data.StatusEmergencyStop
		pump.EmergencyStop = true
		message = fmt.Sprintf("Emergency stop engaged on %s", pump.Name)
	case command.ActionStandby:
		pump.Status = data.StatusStandby
		message = fmt.Sprintf("%s set to standby", pump.Name)
	case command.ActionAuto:
		pump.AutoMode = !pump.AutoMode
		mode := "manual"
		if pump.AutoMode {
			mode = "auto"
		}
		message = fmt.Sprintf("%s switched to %s mode", pump.Name, mode)
	case command.ActionResetEmergency:
		pump.EmergencyStop = false
		pump.Status = data.StatusStopped
		message = fmt.Sprintf("Emergency stop reset on %s", pump.Name)
	case command.ActionMaintenance:
		pump.Status = data.StatusMaintenance
		message = fmt.Sprintf("%s set to maintenance", pump.Name)
	default:
		s.mu.Unlock()
		return "", fmt.Errorf("invalid action %q", action)
	}

	pump.UpdatedAt = time.Now().Format(time.RFC3339)
	clone := pump.Clone()
	s.updateHealth()
	s.mu.Unlock()

	s.hub.Broadcast(data.EventPumpUpdated, data.PumpUpdatedEvent{
		PumpID:  pumpID,
		Pump:    clone,
		User:    userName,
		Message: message,
	})
	s.recordActivity(message, userName, "operation", pumpID)

	s.logger.Info("control applied", "pump_id", pumpID, "action", action, "user", userName)
	return message, nil
}

// EmergencyStopAll stops every running pump and pushes the whole
// fleet.
func (s *Simulator) EmergencyStopAll(userName string) string {
	s.mu.Lock()
	stopped := 0
	now := time.Now().Format(time.RFC3339)
	for _, pump := range s.pumps {
		if pump.Status == data.StatusRunning {
			pump.Status = data.StatusEmergencyStop
			pump.EmergencyStop = true
			pump.UpdatedAt = now
			stopped++
		}
	}
	message := fmt.Sprintf("Emergency stop engaged on all pumps (%d stopped)", stopped)
	s.updateHealth()
	pumps := s.clonedPumpsLocked()
	s.mu.Unlock()

	s.hub.Broadcast(data.EventEmergencyStopAll, data.BulkUpdateEvent{
		Pumps:   pumps,
		User:    userName,
		Message: message,
	})
	s.recordActivity(message, userName, "emergency", 0)

	s.logger.Warn("fleet emergency stop", "user", userName, "stopped", stopped)
	return message
}

// AutoModeAll enables auto mode on every pump not in emergency stop
// and pushes the whole fleet.
func (s *Simulator) AutoModeAll(userName string) string {
	s.mu.Lock()
	switched := 0
	now := time.Now().Format(time.RFC3339)
	for _, pump := range s.pumps {
		if !pump.EmergencyStop {
			pump.AutoMode = true
			pump.UpdatedAt = now
			switched++
		}
	}
	message := fmt.Sprintf("Auto mode enabled on all pumps (%d switched)", switched)
	pumps := s.clonedPumpsLocked()
	s.mu.Unlock()

	s.hub.Broadcast(data.EventAutoModeAll, data.BulkUpdateEvent{
		Pumps:   pumps,
		User:    userName,
		Message: message,
	})
	s.recordActivity(message, userName, "configuration", 0)
	return message
}

// clonedPumpsLocked returns cloned snapshots in id order. Callers must
// hold s.mu.
func (s *Simulator) clonedPumpsLocked() []*data.Pump {
	pumps := make([]*data.Pump, 0, len(s.pumps))
	for _, pump := range s.pumps {
		pumps = append(pumps, pump.Clone())
	}
	sort.Slice(pumps, func(i, j int) bool { return pumps[i].ID < pumps[j].ID })
	return pumps
}

// Pump returns a cloned snapshot of one pump.
func (s *Simulator) Pump(id int) (*data.Pump, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pump, ok := s.pumps[id]
	if !ok {
		return nil, false
	}
	return pump.Clone(), true
}

// Pumps returns cloned snapshots of the whole fleet in id order.
func (s *Simulator) Pumps() []*data.Pump {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clonedPumpsLocked()
}

// Health returns the current system health.
func (s *Simulator) Health() data.SystemHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// recordActivity broadcasts a new_activity entry.
func (s *Simulator) recordActivity(message, userName, kind string, pumpID int) {
	s.mu.Lock()
	s.activityID++
	activity := data.Activity{
		ID:        s.activityID,
		Message:   message,
		User:      userName,
		Type:      kind,
		PumpID:    pumpID,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	s.mu.Unlock()

	s.hub.Broadcast(data.EventNewActivity, activity)
}

// driftMetrics nudges a pump's readings according to its status and
// clamps them to their physical bounds. Callers must hold s.mu.
func (s *Simulator) driftMetrics(pump *data.Pump) {
	m := &pump.Metrics
	switch pump.Status {
	case data.StatusRunning:
		m.Pressure += s.rng.Float64()*4 - 2
		m.Temperature += s.rng.Float64()*4 - 1
		m.FlowRate += s.rng.Float64()*20 - 10
		m.Vibration += s.rng.Float64()*0.3 - 0.1
		m.Power += s.rng.Float64()*4 - 2
		m.Efficiency += s.rng.Float64()*2 - 1
		pump.ProductionToday += 1 + s.rng.Float64()*4
	case data.StatusStopped, data.StatusEmergencyStop:
		m.Pressure = max(0, m.Pressure-(5+s.rng.Float64()*5))
		m.Temperature = max(20, m.Temperature-(2+s.rng.Float64()*3))
		m.FlowRate = 0
		m.Vibration = 0
		m.Power = 0
		m.Efficiency = 0
	case data.StatusMaintenance:
		m.Pressure = 0
		m.Temperature = 20 + s.rng.Float64()*10
		m.FlowRate = 0
		m.Vibration = 0
		m.Power = 0
		m.Efficiency = 0
	}

	m.Pressure = round1(clamp(m.Pressure, 0, 100))
	m.Temperature = round1(clamp(m.Temperature, 20, 120))
	m.FlowRate = round1(clamp(m.FlowRate, 0, 500))
	m.Vibration = round2(clamp(m.Vibration, 0, 5))
	m.Power = round1(clamp(m.Power, 0, 100))
	m.Efficiency = round1(clamp(m.Efficiency, 0, 100))
	pump.UpdatedAt = time.Now().Format(time.RFC3339)
}

// updateHealth rescores system health from pump availability, running
// efficiency, alert load, and emergency count. Callers must hold s.mu.
func (s *Simulator) updateHealth() {
	total := len(s.pumps)
	if total == 0 {
		return
	}

	running := 0
	emergency := 0
	activeAlerts := 0
	criticalAlerts := 0
	var efficiencySum float64
	for _, pump := range s.pumps {
		switch pump.Status {
		case data.StatusRunning:
			running++
			efficiencySum += pump.Metrics.Efficiency
		case data.StatusEmergencyStop:
			emergency++
		}
		activeAlerts += len(pump.Alerts)
		for _, alert := range pump.Alerts {
			if alert.Severity == data.SeverityCritical {
				criticalAlerts++
			}
		}
	}

	availability := float64(running) / float64(total)
	score := availability * 30

	avgEfficiency := 0.0
	if running > 0 {
		avgEfficiency = efficiencySum / float64(running)
	}
	score += avgEfficiency / 100 * 25

	alertPenalty := min(float64(activeAlerts*2+criticalAlerts*5), 20)
	score += 20 - alertPenalty

	emergencyPenalty := min(float64(emergency*10), 25)
	score += 25 - emergencyPenalty

	status := "critical"
	switch {
	case score >= 90:
		status = "excellent"
	case score >= 80:
		status = "good"
	case score >= 70:
		status = "acceptable"
	case score >= 50:
		status = "poor"
	}

	s.health = data.SystemHealth{
		Score:  round1(score),
		Status: status,
		Factors: map[string]float64{
			"pump_availability": round1(availability * 100),
			"avg_efficiency":    round1(avgEfficiency),
			"active_alerts":     float64(activeAlerts),
			"critical_alerts":   float64(criticalAlerts),
			"emergency_pumps":   float64(emergency),
		},
		LastUpdate: time.Now().Format(time.RFC3339),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
