package console

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"pump-console/internal/alerting"
	"pump-console/internal/channel"
	"pump-console/internal/command"
	"pump-console/internal/data"
	"pump-console/internal/feeds"
	"pump-console/internal/notify"
	"pump-console/internal/reconcile"
	"pump-console/internal/session"
	"pump-console/internal/storage"
)

// Console is the per-session context object: it owns every component
// of one operator session and the single dispatch loop that routes
// push events through the reconciliation engine. Constructed once per
// session, disposed on logout or terminal disconnect; there is no
// module-level state.
type Console struct {
	sess       *session.Context
	store      *storage.FleetStore
	engine     *reconcile.Engine
	manager    *channel.Manager
	gateway    *command.Gateway
	aggregator *alerting.Aggregator
	activity   *feeds.ActivityFeed
	chat       *feeds.ChatFeed
	notifier   notify.Notifier
	logger     *slog.Logger

	mu    sync.Mutex
	creds *data.LoginRequest // retained for re-login after reconnect
}

func New(serverURL string, notifier notify.Notifier, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	sess := session.NewContext()
	store := storage.NewFleetStore()
	manager := channel.NewManager(pushURL(serverURL), notifier, logger)

	c := &Console{
		sess:       sess,
		store:      store,
		engine:     reconcile.NewEngine(store, notifier, sess.UserName, logger),
		manager:    manager,
		gateway:    command.NewGateway(serverURL, sess, store, manager, notifier, logger),
		aggregator: alerting.NewAggregator(store),
		activity:   feeds.NewActivityFeed(),
		chat:       feeds.NewChatFeed(),
		notifier:   notifier,
		logger:     logger,
	}

	// Session validity is tied 1:1 to the connection: after a
	// reconnect the authority no longer knows this operator, so the
	// stored credentials re-authenticate automatically.
	manager.OnConnect = c.onConnect
	manager.OnGiveUp = c.onGiveUp
	return c
}

// pushURL derives the websocket endpoint from the authority base URL.
func pushURL(serverURL string) string {
	url := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}

func (c *Console) Session() *session.Context      { return c.sess }
func (c *Console) Store() *storage.FleetStore     { return c.store }
func (c *Console) Gateway() *command.Gateway      { return c.gateway }
func (c *Console) Alerts() *alerting.Aggregator   { return c.aggregator }
func (c *Console) Activity() *feeds.ActivityFeed  { return c.activity }
func (c *Console) Chat() *feeds.ChatFeed          { return c.chat }
func (c *Console) ConnectionState() channel.State { return c.manager.State() }

// Run connects and processes events until the context is cancelled,
// the operator logs out, or the reconnect bound is exhausted. Events
// are handled one at a time in arrival order; no two applications
// interleave.
func (c *Console) Run(ctx context.Context) error {
	c.manager.Connect()

	for {
		select {
		case <-ctx.Done():
			c.manager.Close()
			return ctx.Err()
		case <-c.manager.Done():
			return nil
		case envelope := <-c.manager.Events():
			c.dispatch(envelope)
		}
	}
}

// Login submits credentials over the push channel. The outcome arrives
// asynchronously as login_success or login_failed.
func (c *Console) Login(employeeID, password string) error {
	if employeeID == "" || password == "" {
		return fmt.Errorf("console: employee id and password are required")
	}
	creds := &data.LoginRequest{EmployeeID: employeeID, Password: password}

	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()

	return c.manager.Emit(data.EmitUserLogin, creds)
}

// Logout destroys the session, clears the fleet state, and shuts the
// channel down. A fresh Console is required afterwards.
func (c *Console) Logout() {
	c.mu.Lock()
	c.creds = nil
	c.mu.Unlock()

	c.sess.Clear()
	c.store.Clear()
	c.manager.Close()
	c.notifier.Notify(notify.LevelInfo, "Logged out")
}

// SendChat emits a chat message. Requires an established session.
func (c *Console) SendChat(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	if !c.sess.Active() {
		return command.ErrNotAuthenticated
	}
	return c.manager.Emit(data.EmitSendMessage, data.SendMessageRequest{Message: message})
}

// Refresh requests a full resync from the authority.
func (c *Console) Refresh() error {
	if !c.manager.Connected() {
		c.notifier.Notify(notify.LevelError, "No connection to server")
		return channel.ErrNotConnected
	}
	return c.manager.Emit(data.EmitRequestDataUpdate, nil)
}

func (c *Console) onConnect() {
	c.mu.Lock()
	creds := c.creds
	c.mu.Unlock()

	if creds != nil {
		if err := c.manager.Emit(data.EmitUserLogin, creds); err != nil {
			c.logger.Error("re-login after reconnect failed", "error", err)
		}
	}
}

func (c *Console) onGiveUp() {
	// Terminal: the session does not survive the channel.
	c.sess.Clear()
	c.manager.Close()
}

// dispatch routes one inbound envelope. Every failure is recovered
// here: malformed events are dropped with a diagnostic and processing
// of subsequent events continues.
func (c *Console) dispatch(envelope *data.Envelope) {
	switch envelope.Event {
	case data.EventLoginSuccess:
		c.handleLoginSuccess(envelope.Data)
	case data.EventLoginFailed:
		c.handleLoginFailed(envelope.Data)

	case data.EventDataUpdate, data.EventPumpUpdated, data.EventNewAlert,
		data.EventEmergencyStopAll, data.EventAutoModeAll:
		if err := c.engine.Apply(envelope); err != nil {
			c.logger.Warn("event dropped", "event", envelope.Event, "error", err)
		}

	case data.EventNewActivity:
		var activity data.Activity
		if err := json.Unmarshal(envelope.Data, &activity); err != nil {
			c.logger.Warn("event dropped", "event", envelope.Event, "error", err)
			return
		}
		c.activity.Add(activity)

	case data.EventNewMessage:
		var message data.ChatMessage
		if err := json.Unmarshal(envelope.Data, &message); err != nil {
			c.logger.Warn("event dropped", "event", envelope.Event, "error", err)
			return
		}
		c.chat.Add(message)

	case data.EventUserConnected, data.EventUserDisconnected:
		c.handlePresence(envelope.Event, envelope.Data)

	case data.EventError:
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Data, &payload); err == nil && payload.Message != "" {
			c.notifier.Notify(notify.LevelError, payload.Message)
		}

	default:
		c.logger.Debug("ignoring unknown event", "event", envelope.Event)
	}
}

func (c *Console) handleLoginSuccess(raw json.RawMessage) {
	var event data.LoginSuccessEvent
	if err := json.Unmarshal(raw, &event); err != nil || event.User == nil {
		c.logger.Warn("malformed login_success dropped", "error", err)
		return
	}

	c.sess.Establish(event.User, event.Token)
	c.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Welcome %s", event.User.Name))
	c.logger.Info("logged in",
		"employee_id", event.User.EmployeeID,
		"role", event.User.Role,
	)

	// Immediately pull the first full snapshot for this session.
	if err := c.manager.Emit(data.EmitRequestDataUpdate, nil); err != nil {
		c.logger.Error("initial data request failed", "error", err)
	}
}

func (c *Console) handleLoginFailed(raw json.RawMessage) {
	var event data.LoginFailedEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		c.logger.Warn("malformed login_failed dropped", "error", err)
		return
	}

	// Stale credentials must not retry forever on every reconnect.
	c.mu.Lock()
	c.creds = nil
	c.mu.Unlock()

	c.notifier.Notify(notify.LevelError, event.Error)
}

func (c *Console) handlePresence(event string, raw json.RawMessage) {
	var presence data.PresenceEvent
	if err := json.Unmarshal(raw, &presence); err != nil {
		c.logger.Warn("event dropped", "event", event, "error", err)
		return
	}

	c.store.SetUsersOnline(presence.UsersOnline)
	if presence.User != nil {
		verb := "joined"
		if event == data.EventUserDisconnected {
			verb = "left"
		}
		c.notifier.Notify(notify.LevelInfo, fmt.Sprintf("%s %s the system", presence.User.Name, verb))
	}
}
