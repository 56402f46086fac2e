package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"pump-console/internal/data"
	"pump-console/internal/metrics"
	"pump-console/internal/notify"
	"pump-console/internal/storage"
)

// Engine applies inbound push events to the fleet store. It is the
// store's only writer. Events are applied one at a time in arrival
// order; two updates to the same pump land in the order received and
// the later one wins.
type Engine struct {
	store    *storage.FleetStore
	notifier notify.Notifier
	logger   *slog.Logger

	// localUser reports the current operator's display name, or ""
	// when logged out. Used to suppress the observational "changed by
	// someone else" notification for the operator's own actions.
	localUser func() string
}

func NewEngine(store *storage.FleetStore, notifier notify.Notifier, localUser func() string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if localUser == nil {
		localUser = func() string { return "" }
	}
	return &Engine{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		localUser: localUser,
	}
}

// Apply routes one decoded envelope to its merge rule. Malformed
// events return a *data.MalformedEventError and leave the store
// untouched; the caller drops the event and continues. Rollups are
// recomputed inside every store write, so control never returns to
// the caller with a stale aggregate.
func (e *Engine) Apply(envelope *data.Envelope) error {
	var err error
	switch envelope.Event {
	case data.EventDataUpdate:
		err = e.applyDataUpdate(envelope.Data)
	case data.EventPumpUpdated:
		err = e.applyPumpUpdated(envelope.Data)
	case data.EventEmergencyStopAll, data.EventAutoModeAll:
		err = e.applyBulkUpdate(envelope.Event, envelope.Data)
	case data.EventNewAlert:
		err = e.applyNewAlert(envelope.Data)
	default:
		return fmt.Errorf("reconcile: unroutable event %q", envelope.Event)
	}

	if err != nil {
		metrics.EventsDropped.WithLabelValues(envelope.Event).Inc()
		return err
	}
	metrics.EventsProcessed.WithLabelValues(envelope.Event).Inc()
	rollups := e.store.Rollups()
	metrics.PumpsTracked.Set(float64(rollups.TotalPumps))
	metrics.ActiveAlerts.Set(float64(rollups.ActiveAlerts))
	return nil
}

// applyDataUpdate handles a full resync. A pump list in the payload
// replaces the whole mapping key-by-key: pumps absent from the list
// are dropped. system_health and users_online are optional and only
// applied when present.
func (e *Engine) applyDataUpdate(raw json.RawMessage) error {
	var event data.DataUpdateEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return &data.MalformedEventError{Event: data.EventDataUpdate, Reason: err.Error()}
	}

	if event.Pumps != nil {
		e.store.ReplaceAll(event.Pumps)
	}
	if event.SystemHealth != nil {
		e.store.SetHealth(*event.SystemHealth)
	}
	if event.UsersOnline != nil {
		e.store.SetUsersOnline(*event.UsersOnline)
	}

	e.logger.Debug("applied data update",
		"pumps", len(event.Pumps),
		"has_health", event.SystemHealth != nil,
	)
	return nil
}

func (e *Engine) applyPumpUpdated(raw json.RawMessage) error {
	var event data.PumpUpdatedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return &data.MalformedEventError{Event: data.EventPumpUpdated, Reason: err.Error()}
	}
	if event.Pump == nil {
		return &data.MalformedEventError{Event: data.EventPumpUpdated, Reason: "missing pump snapshot"}
	}

	e.store.Replace(event.PumpID, event.Pump)

	// Another operator's action: surface it. Purely observational,
	// the store is already correct either way.
	if event.User != "" && event.User != e.localUser() {
		e.notifier.Notify(notify.LevelInfo, fmt.Sprintf("%s (%s)", event.Message, event.User))
	}
	return nil
}

func (e *Engine) applyBulkUpdate(name string, raw json.RawMessage) error {
	var event data.BulkUpdateEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return &data.MalformedEventError{Event: name, Reason: err.Error()}
	}
	if event.Pumps == nil {
		return &data.MalformedEventError{Event: name, Reason: "missing pump list"}
	}

	e.store.ReplaceBatch(event.Pumps)

	if event.User != "" && event.User != e.localUser() {
		level := notify.LevelInfo
		if name == data.EventEmergencyStopAll {
			level = notify.LevelWarning
		}
		e.notifier.Notify(level, fmt.Sprintf("%s (%s)", event.Message, event.User))
	}
	return nil
}

func (e *Engine) applyNewAlert(raw json.RawMessage) error {
	var event data.NewAlertEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return &data.MalformedEventError{Event: data.EventNewAlert, Reason: err.Error()}
	}
	if event.Alert == nil {
		return &data.MalformedEventError{Event: data.EventNewAlert, Reason: "missing alert"}
	}

	if !e.store.AppendAlert(event.PumpID, *event.Alert) {
		// The authority may alert on a pump this session has not seen
		// yet (e.g. mid-resync after a reconnect). Not fatal.
		e.logger.Warn("alert for unknown pump dropped",
			"pump_id", event.PumpID,
			"alert", event.Alert.Message,
		)
		return nil
	}

	e.notifier.Notify(notify.LevelWarning, fmt.Sprintf("New alert: %s", event.Alert.Message))
	return nil
}
