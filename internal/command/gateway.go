package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pump-console/internal/channel"
	"pump-console/internal/metrics"
	"pump-console/internal/notify"
	"pump-console/internal/session"
	"pump-console/internal/storage"
)

// Action is a pump control operation.
type Action string

const (
	ActionStart          Action = "start"
	ActionStop           Action = "stop"
	ActionEmergencyStop  Action = "emergency_stop"
	ActionAuto           Action = "auto"
	ActionStandby        Action = "standby"
	ActionMaintenance    Action = "maintenance"
	ActionResetEmergency Action = "reset_emergency"
)

// Valid reports whether the action is a known control operation.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionEmergencyStop, ActionAuto,
		ActionStandby, ActionMaintenance, ActionResetEmergency:
		return true
	}
	return false
}

// Confirmable reports whether the action requires operator
// confirmation before dispatch. Only the destructive emergency stop
// does.
func (a Action) Confirmable() bool {
	return a == ActionEmergencyStop
}

// Connectivity is the read-only view of the push channel the gateway
// needs for its fail-fast check.
type Connectivity interface {
	Connected() bool
}

// controlRequest is the synchronous command body sent to the authority.
type controlRequest struct {
	Action Action `json:"action,omitempty"`
	UserID string `json:"user_id"`
}

// controlResponse is the authority's synchronous reply. It never
// mutates the store: the authoritative state change arrives only via
// the push channel, so every operator, including the issuer, observes
// the same update path.
type controlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Gateway validates, optionally confirms, and dispatches control
// commands to the authority over HTTP.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Context
	store      *storage.FleetStore
	conn       Connectivity
	gate       *Gate
	notifier   notify.Notifier
	logger     *slog.Logger
}

func NewGateway(baseURL string, sess *session.Context, store *storage.FleetStore, conn Connectivity, notifier notify.Notifier, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		session:    sess,
		store:      store,
		conn:       conn,
		gate:       NewGate(),
		notifier:   notifier,
		logger:     logger,
	}
}

// Gate exposes the confirmation step so the operator surface can
// confirm or dismiss the armed action.
func (g *Gateway) Gate() *Gate {
	return g.gate
}

// Control issues a pump control command. Confirmable actions are armed
// on the gate instead of dispatched; pending reports that case. All
// precondition failures are returned without reaching the authority.
func (g *Gateway) Control(ctx context.Context, pumpID int, action Action) (pending bool, err error) {
	if !action.Valid() {
		return false, fmt.Errorf("command: invalid action %q", action)
	}
	if !g.session.Active() {
		return false, ErrNotAuthenticated
	}
	pump, ok := g.store.Get(pumpID)
	if !ok {
		return false, fmt.Errorf("%w: pump %d", ErrUnknownPump, pumpID)
	}
	if !g.conn.Connected() {
		return false, channel.ErrNotConnected
	}

	if action.Confirmable() {
		g.gate.Arm(
			fmt.Sprintf("Emergency stop %s", pump.Name),
			func(ctx context.Context) error {
				return g.dispatchControl(ctx, pumpID, action)
			},
		)
		return true, nil
	}
	return false, g.dispatchControl(ctx, pumpID, action)
}

// EmergencyStopAll arms the fleet-wide emergency stop for
// confirmation.
func (g *Gateway) EmergencyStopAll(ctx context.Context) error {
	if err := g.checkFleetPreconditions(); err != nil {
		return err
	}
	g.gate.Arm("Emergency stop all pumps", func(ctx context.Context) error {
		return g.dispatchFleet(ctx, "/api/emergency/all", "emergency_stop_all")
	})
	return nil
}

// AutoModeAll arms the fleet-wide auto mode switch for confirmation.
func (g *Gateway) AutoModeAll(ctx context.Context) error {
	if err := g.checkFleetPreconditions(); err != nil {
		return err
	}
	g.gate.Arm("Enable auto mode for all pumps", func(ctx context.Context) error {
		return g.dispatchFleet(ctx, "/api/auto/all", "auto_mode_all")
	})
	return nil
}

func (g *Gateway) checkFleetPreconditions() error {
	if !g.session.Active() {
		return ErrNotAuthenticated
	}
	if !g.conn.Connected() {
		return channel.ErrNotConnected
	}
	return nil
}

func (g *Gateway) dispatchControl(ctx context.Context, pumpID int, action Action) error {
	path := fmt.Sprintf("/api/pumps/%d/control", pumpID)
	err := g.post(ctx, path, controlRequest{Action: action, UserID: g.session.UserName()})
	g.recordOutcome(string(action), err)
	return err
}

func (g *Gateway) dispatchFleet(ctx context.Context, path, action string) error {
	err := g.post(ctx, path, controlRequest{UserID: g.session.UserName()})
	g.recordOutcome(action, err)
	return err
}

func (g *Gateway) recordOutcome(action string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		g.notifier.Notify(notify.LevelError, commandFailureMessage(err))
	}
	metrics.CommandsIssued.WithLabelValues(action, outcome).Inc()
}

func commandFailureMessage(err error) string {
	var authorityErr *AuthorityError
	if errors.As(err, &authorityErr) {
		return authorityErr.Message
	}
	return "Command failed: " + err.Error()
}

// post performs the single synchronous request/response exchange with
// the authority.
func (g *Gateway) post(ctx context.Context, path string, body controlRequest) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("command: encoding request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("command: building request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if token := g.session.Token(); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := g.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("command: request to %s failed: %w", path, err)
	}
	defer response.Body.Close()

	var result controlResponse
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return fmt.Errorf("command: unexpected %d response from %s: %w", response.StatusCode, path, err)
	}
	if !result.Success {
		return &AuthorityError{StatusCode: response.StatusCode, Message: result.Error}
	}

	if result.Message != "" {
		g.notifier.Notify(notify.LevelSuccess, result.Message)
	}
	g.logger.Info("command accepted", "path", path, "action", body.Action)
	return nil
}
