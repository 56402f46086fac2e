package data

import (
	"encoding/json"
	"fmt"
)

// Push-channel event names. The authority sends Event* frames; the
// client emits Emit* frames. Both directions share the Envelope shape.
const (
	EventLoginSuccess     = "login_success"
	EventLoginFailed      = "login_failed"
	EventDataUpdate       = "data_update"
	EventPumpUpdated      = "pump_updated"
	EventNewAlert         = "new_alert"
	EventNewActivity      = "new_activity"
	EventNewMessage       = "new_message"
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
	EventEmergencyStopAll = "emergency_stop_all"
	EventAutoModeAll      = "auto_mode_all"
	EventError            = "error"

	EmitUserLogin         = "user_login"
	EmitRequestDataUpdate = "request_data_update"
	EmitSendMessage       = "send_message"
)

// Envelope is the wire frame for every push-channel message in either
// direction: an event name plus its undecoded payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MalformedEventError reports a frame that could not be decoded or was
// missing required fields. The event is dropped; processing continues.
type MalformedEventError struct {
	Event  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("malformed event: %s", e.Reason)
	}
	return fmt.Sprintf("malformed %s event: %s", e.Event, e.Reason)
}

// ParseEnvelope decodes a raw frame into an Envelope. A frame without
// an event name is malformed.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &MalformedEventError{Reason: err.Error()}
	}
	if envelope.Event == "" {
		return nil, &MalformedEventError{Reason: "missing event name"}
	}
	return &envelope, nil
}

// NewEnvelope builds an outbound frame, encoding the payload.
func NewEnvelope(event string, payload any) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		raw = encoded
	}
	return &Envelope{Event: event, Data: raw}, nil
}

// LoginSuccessEvent confirms authentication. Token is the bearer
// credential for subsequent control requests.
type LoginSuccessEvent struct {
	User    *User  `json:"user"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoginFailedEvent reports a rejected login.
type LoginFailedEvent struct {
	Error string `json:"error"`
}

// DataUpdateEvent is a full resync: the pump list replaces the entire
// local mapping, system_health is replaced wholesale. Nil fields were
// absent from the payload and leave their target untouched, except
// Pumps: a present-but-empty list clears the fleet.
type DataUpdateEvent struct {
	Pumps        []*Pump       `json:"pumps"`
	SystemHealth *SystemHealth `json:"system_health"`
	UsersOnline  *int          `json:"users_online"`
	Timestamp    string        `json:"timestamp,omitempty"`
}

// PumpUpdatedEvent replaces a single pump snapshot. User and Message
// describe the operator action that caused the change.
type PumpUpdatedEvent struct {
	PumpID  int    `json:"pump_id"`
	Pump    *Pump  `json:"pump"`
	User    string `json:"user"`
	Message string `json:"message"`
}

// BulkUpdateEvent carries a fleet-wide operation result
// (emergency_stop_all, auto_mode_all): every listed snapshot replaces
// its key atomically with respect to readers.
type BulkUpdateEvent struct {
	Pumps   []*Pump `json:"pumps"`
	User    string  `json:"user"`
	Message string  `json:"message"`
}

// NewAlertEvent appends one alert to a known pump's sequence.
type NewAlertEvent struct {
	PumpID   int    `json:"pump_id"`
	PumpName string `json:"pump_name,omitempty"`
	Alert    *Alert `json:"alert"`
}

// PresenceEvent announces another operator joining or leaving.
type PresenceEvent struct {
	User        *User `json:"user"`
	UsersOnline int   `json:"users_online"`
}

// LoginRequest is the client's authentication frame.
type LoginRequest struct {
	EmployeeID string `json:"employee_id"`
	Password   string `json:"password"`
}

// SendMessageRequest is the client's outbound chat frame.
type SendMessageRequest struct {
	Message string `json:"message"`
}
