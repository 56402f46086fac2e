package alerting

import (
	"sort"

	"pump-console/internal/data"
	"pump-console/internal/storage"
)

// TopN is the size of the capped alert view shown in the sidebar.
const TopN = 5

// Aggregator is a pure read-side projection over the fleet store. It
// holds no state of its own, so it cannot drift from the store.
type Aggregator struct {
	store *storage.FleetStore
}

func NewAggregator(store *storage.FleetStore) *Aggregator {
	return &Aggregator{store: store}
}

// All flattens every pump's alert sequence, denormalizes the owning
// pump's id and name onto each entry, and orders the result by
// severity rank (critical, warning, info). The sort is stable: alerts
// of equal severity keep their original encounter order, which is pump
// id order then per-pump append order.
func (a *Aggregator) All() []data.Alert {
	var alerts []data.Alert
	for _, pump := range a.store.List() {
		for _, alert := range pump.Alerts {
			alert.PumpID = pump.ID
			alert.PumpName = pump.Name
			alerts = append(alerts, alert)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return data.SeverityRank(alerts[i].Severity) < data.SeverityRank(alerts[j].Severity)
	})
	return alerts
}

// Top returns the first TopN alerts of the full ordering plus the
// count of alerts beyond the cap.
func (a *Aggregator) Top() (alerts []data.Alert, overflow int) {
	all := a.All()
	if len(all) <= TopN {
		return all, 0
	}
	return all[:TopN], len(all) - TopN
}

// Diagnostics is a fleet-wide status summary, recomputed on demand
// like the alert projection.
type Diagnostics struct {
	RunningPumps     int
	StoppedPumps     int
	EmergencyPumps   int
	MaintenancePumps int
	StandbyPumps     int
	TotalAlerts      int
	CriticalAlerts   int
	AvgEfficiency    float64
	TotalProduction  float64
}

// Diagnose summarizes the current fleet state for the system
// diagnostics view.
func (a *Aggregator) Diagnose() Diagnostics {
	var diag Diagnostics
	pumps := a.store.List()

	var efficiencySum float64
	for _, pump := range pumps {
		switch pump.Status {
		case data.StatusRunning:
			diag.RunningPumps++
		case data.StatusStopped:
			diag.StoppedPumps++
		case data.StatusEmergencyStop:
			diag.EmergencyPumps++
		case data.StatusMaintenance:
			diag.MaintenancePumps++
		case data.StatusStandby:
			diag.StandbyPumps++
		}
		diag.TotalAlerts += len(pump.Alerts)
		for _, alert := range pump.Alerts {
			if alert.Severity == data.SeverityCritical {
				diag.CriticalAlerts++
			}
		}
		efficiencySum += pump.Metrics.Efficiency
		diag.TotalProduction += pump.ProductionToday
	}
	if len(pumps) > 0 {
		diag.AvgEfficiency = efficiencySum / float64(len(pumps))
	}
	return diag
}
