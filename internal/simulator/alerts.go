package simulator

import (
	"fmt"
	"time"

	"pump-console/internal/data"
)

// alertRule describes one threshold check. runningOnly rules are
// meaningless on a stopped pump and are skipped there.
type alertRule struct {
	alertType       string
	severity        string
	metric          func(*data.Metrics) float64
	breached        func(value, min, max float64) bool
	thresholdKey    string
	runningOnly     bool
	message         func(pumpName string, value float64) string
	description     string
	cause           string
	recommendations []string
}

var alertRules = []alertRule{
	{
		alertType:    "pressure_low",
		severity:     data.SeverityWarning,
		metric:       func(m *data.Metrics) float64 { return m.Pressure },
		breached:     func(v, min, _ float64) bool { return v < min },
		thresholdKey: "pressure",
		runningOnly:  true,
		message: func(name string, v float64) string {
			return fmt.Sprintf("Low pressure on %s (%.1f PSI)", name, v)
		},
		description: "Discharge pressure has fallen below the safe operating range.",
		cause:       "Possible suction blockage, worn impeller, or supply drop.",
		recommendations: []string{
			"Inspect suction line for blockage",
			"Check impeller wear",
			"Verify upstream supply pressure",
		},
	},
	{
		alertType:    "pressure_high",
		severity:     data.SeverityCritical,
		metric:       func(m *data.Metrics) float64 { return m.Pressure },
		breached:     func(v, _, max float64) bool { return v > max },
		thresholdKey: "pressure",
		message: func(name string, v float64) string {
			return fmt.Sprintf("High pressure on %s (%.1f PSI)", name, v)
		},
		description: "Discharge pressure has exceeded the safe operating range.",
		cause:       "Possible downstream valve closure or relief valve failure.",
		recommendations: []string{
			"Verify downstream valves are open",
			"Test the pressure relief valve",
			"Reduce pump speed if adjustable",
		},
	},
	{
		alertType:    "temperature_high",
		severity:     data.SeverityCritical,
		metric:       func(m *data.Metrics) float64 { return m.Temperature },
		breached:     func(v, _, max float64) bool { return v > max },
		thresholdKey: "temperature",
		message: func(name string, v float64) string {
			return fmt.Sprintf("High temperature on %s (%.1f C)", name, v)
		},
		description: "Casing temperature has exceeded the safe limit.",
		cause:       "Possible bearing failure, low lubrication, or dry running.",
		recommendations: []string{
			"Check lubrication levels",
			"Inspect bearings for wear",
			"Confirm the pump is not running dry",
		},
	},
	{
		alertType:    "flow_low",
		severity:     data.SeverityWarning,
		metric:       func(m *data.Metrics) float64 { return m.FlowRate },
		breached:     func(v, min, _ float64) bool { return v < min },
		thresholdKey: "flow_rate",
		runningOnly:  true,
		message: func(name string, v float64) string {
			return fmt.Sprintf("Low flow rate on %s (%.1f L/min)", name, v)
		},
		description: "Flow rate is below the expected minimum for a running pump.",
		cause:       "Possible partial blockage, cavitation, or closed valve.",
		recommendations: []string{
			"Check for line blockage",
			"Listen for cavitation noise",
			"Verify valve positions",
		},
	},
	{
		alertType:    "vibration_high",
		severity:     data.SeverityWarning,
		metric:       func(m *data.Metrics) float64 { return m.Vibration },
		breached:     func(v, _, max float64) bool { return v > max },
		thresholdKey: "vibration",
		message: func(name string, v float64) string {
			return fmt.Sprintf("High vibration on %s (%.2f mm/s)", name, v)
		},
		description: "Vibration exceeds the acceptable level.",
		cause:       "Possible misalignment, imbalance, or loose mounting.",
		recommendations: []string{
			"Check shaft alignment",
			"Inspect mounting bolts",
			"Schedule a balance check",
		},
	},
	{
		alertType:    "efficiency_low",
		severity:     data.SeverityInfo,
		metric:       func(m *data.Metrics) float64 { return m.Efficiency },
		breached:     func(v, min, _ float64) bool { return v < min },
		thresholdKey: "efficiency",
		runningOnly:  true,
		message: func(name string, v float64) string {
			return fmt.Sprintf("Reduced efficiency on %s (%.1f%%)", name, v)
		},
		description: "Pump efficiency has dropped below the expected range.",
		cause:       "Possible wear, fouling, or off-design operation.",
		recommendations: []string{
			"Review recent maintenance history",
			"Plan an inspection at the next window",
		},
	},
}

// refreshAlerts recomputes a pump's active alerts against the
// thresholds and returns push events for alerts that were not present
// before. Cleared conditions drop off the pump without an event.
// Callers must hold s.mu.
func (s *Simulator) refreshAlerts(pump *data.Pump) []data.NewAlertEvent {
	existing := make(map[string]data.Alert, len(pump.Alerts))
	for _, alert := range pump.Alerts {
		existing[alert.ID] = alert
	}

	var active []data.Alert
	var events []data.NewAlertEvent
	for _, rule := range alertRules {
		if rule.runningOnly && pump.Status != data.StatusRunning {
			continue
		}
		threshold, ok := s.thresholds[rule.thresholdKey]
		if !ok {
			continue
		}
		value := rule.metric(&pump.Metrics)
		if !rule.breached(value, threshold.Min, threshold.Max) {
			continue
		}

		id := fmt.Sprintf("%d-%s", pump.ID, rule.alertType)
		if prior, ok := existing[id]; ok {
			active = append(active, prior)
			continue
		}

		alert := data.Alert{
			ID:              id,
			Type:            rule.alertType,
			Severity:        rule.severity,
			Message:         rule.message(pump.Name, value),
			Description:     rule.description,
			Cause:           rule.cause,
			Recommendations: rule.recommendations,
			Timestamp:       time.Now().Format(time.RFC3339),
		}
		active = append(active, alert)
		events = append(events, data.NewAlertEvent{
			PumpID:   pump.ID,
			PumpName: pump.Name,
			Alert:    &alert,
		})
	}

	if active == nil {
		active = []data.Alert{}
	}
	pump.Alerts = active
	return events
}
