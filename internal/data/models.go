package data

// Pump status values as reported by the authority. The client never
// sets these directly; they change only through accepted push events.
const (
	StatusRunning       = "running"
	StatusStopped       = "stopped"
	StatusEmergencyStop = "emergency_stop"
	StatusMaintenance   = "maintenance"
	StatusStandby       = "standby"
	StatusUnknown       = "unknown"
)

// Alert severities, totally ordered critical < warning < info.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// SeverityRank maps a severity to its sort rank. Unrecognized
// severities sort after info.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	}
	return 3
}

// Metrics holds one pump's bounded sensor readings.
type Metrics struct {
	Pressure    float64 `json:"pressure"`
	Temperature float64 `json:"temperature"`
	FlowRate    float64 `json:"flow_rate"`
	Vibration   float64 `json:"vibration"`
	Power       float64 `json:"power"`
	Efficiency  float64 `json:"efficiency"`
}

// Pump is an immutable-until-replaced snapshot of one monitored pump.
// The store replaces whole snapshots; nothing mutates one in place.
type Pump struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Location        string  `json:"location"`
	Status          string  `json:"status"`
	AutoMode        bool    `json:"auto_mode"`
	EmergencyStop   bool    `json:"emergency_stop"`
	Metrics         Metrics `json:"metrics"`
	Alerts          []Alert `json:"alerts"`
	ProductionToday float64 `json:"production_today"`
	TotalRuntime    int     `json:"total_runtime"`
	LastMaintenance string  `json:"last_maintenance"`
	NextMaintenance string  `json:"next_maintenance"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// Clone returns a deep copy of the pump, including its alert slice.
// Used by writer primitives that derive a new snapshot from an old one.
func (p *Pump) Clone() *Pump {
	clone := *p
	if p.Alerts != nil {
		clone.Alerts = make([]Alert, len(p.Alerts))
		copy(clone.Alerts, p.Alerts)
	}
	return &clone
}

// Alert is one fault notification scoped to a pump. PumpID and
// PumpName are filled in at aggregation time, not stored on the
// canonical snapshot copy.
type Alert struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Message         string   `json:"message"`
	Description     string   `json:"description"`
	Cause           string   `json:"cause"`
	Image           string   `json:"image,omitempty"`
	Recommendations []string `json:"recommendations"`
	Timestamp       string   `json:"timestamp"`

	PumpID   int    `json:"pump_id,omitempty"`
	PumpName string `json:"pump_name,omitempty"`
}

// User is the authenticated operator identity.
type User struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position"`
	LoginTime  string `json:"login_time,omitempty"`
}

// SystemHealth is the authority's fleet-wide health score, replaced
// wholesale on every data_update that carries one.
type SystemHealth struct {
	Score      float64            `json:"score"`
	Status     string             `json:"status"`
	Factors    map[string]float64 `json:"factors,omitempty"`
	LastUpdate string             `json:"last_update,omitempty"`
}

// Activity is one entry in the side-channel operations log.
type Activity struct {
	ID        int    `json:"id"`
	Message   string `json:"message"`
	User      string `json:"user"`
	Type      string `json:"type"` // info, operation, emergency, configuration
	PumpID    int    `json:"pump_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ChatMessage is one operator chat message.
type ChatMessage struct {
	ID        int    `json:"id"`
	User      string `json:"user"`
	UserRole  string `json:"user_role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
