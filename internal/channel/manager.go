package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pump-console/internal/data"
	"pump-console/internal/metrics"
	"pump-console/internal/notify"
)

// ErrNotConnected is returned by Emit while the channel is down.
// Commands fail fast against it; nothing is queued for later delivery.
var ErrNotConnected = errors.New("channel: not connected")

// State of the push channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateGivenUp is terminal: the reconnect bound was exhausted and
	// the session must be restarted by the operator.
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGivenUp:
		return "given up"
	}
	return "invalid"
}

const (
	writeWait = 10 * time.Second // time allowed to write a frame to the peer

	// Reconnect protocol: attempt k retries after k × baseDelay
	// (linear, not exponential), up to maxReconnectAttempts. Past the
	// bound the manager gives up for good.
	maxReconnectAttempts = 5
	defaultBaseDelay     = 3 * time.Second
)

// Manager owns the push channel lifecycle: it dials the authority,
// pumps inbound frames onto Events, detects loss, and retries with
// linear backoff. All state transitions surface as notifications.
type Manager struct {
	url      string
	dialer   *websocket.Dialer
	notifier notify.Notifier
	logger   *slog.Logger

	// baseDelay is the backoff unit; tests shrink it.
	baseDelay time.Duration

	// OnConnect runs after every successful connect, including
	// reconnects. The console uses it to restart the login/resync
	// handshake.
	OnConnect func()
	// OnGiveUp runs once when the reconnect bound is exhausted.
	OnGiveUp func()

	events chan *data.Envelope
	done   chan struct{}

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempts int
	closed   bool
}

func NewManager(url string, notifier notify.Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		url:       url,
		dialer:    websocket.DefaultDialer,
		notifier:  notifier,
		logger:    logger,
		baseDelay: defaultBaseDelay,
		events:    make(chan *data.Envelope, 64),
		done:      make(chan struct{}),
	}
}

// Events delivers decoded inbound frames in arrival order.
func (m *Manager) Events() <-chan *data.Envelope {
	return m.events
}

// Done is closed when the manager shuts down for good.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// State returns the current connectivity state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the channel is up.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Attempts returns the reconnect counter, reset on every successful
// connect.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens the channel. On handshake failure it surfaces the
// error and still enters the reconnect protocol.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closed || m.state == StateGivenUp {
		m.mu.Unlock()
		return fmt.Errorf("channel: manager is shut down")
	}
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	conn, _, err := m.dialer.Dial(m.url, nil)
	if err != nil {
		m.logger.Error("channel dial failed", "url", m.url, "error", err)
		m.notifier.Notify(notify.LevelError, "Connection error")
		m.mu.Lock()
		m.setStateLocked(StateDisconnected)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.attempts = 0
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.logger.Info("channel connected", "url", m.url)
	m.notifier.Notify(notify.LevelSuccess, "Connected to server")

	go m.readLoop(conn)

	if m.OnConnect != nil {
		m.OnConnect()
	}
	return nil
}

// Emit sends one outbound frame. Fails fast with ErrNotConnected while
// the channel is down.
func (m *Manager) Emit(event string, payload any) error {
	envelope, err := data.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	m.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return m.conn.WriteJSON(envelope)
}

// Close shuts the manager down for good. Pending reconnect timers
// no-op once closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	close(m.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readLoop pumps frames from the connection onto the events channel
// until the connection drops.
func (m *Manager) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			stale := m.conn != conn // superseded by a newer connection or Close
			m.mu.Unlock()
			if !stale {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					m.logger.Warn("channel read failed", "error", err)
				}
				m.handleDisconnect()
			}
			return
		}

		envelope, err := data.ParseEnvelope(raw)
		if err != nil {
			// Drop the frame, keep the stream alive.
			m.logger.Warn("dropping malformed frame", "error", err)
			metrics.EventsDropped.WithLabelValues("unparsed").Inc()
			continue
		}
		select {
		case m.events <- envelope:
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handleDisconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.setStateLocked(StateDisconnected)
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.notifier.Notify(notify.LevelWarning, "Connection to server lost")
}

// scheduleReconnectLocked arms the next retry timer, or gives up when
// the bound is exhausted. Callers must hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.closed {
		return
	}
	if m.attempts >= maxReconnectAttempts {
		m.setStateLocked(StateGivenUp)
		m.logger.Error("reconnect attempts exhausted", "attempts", m.attempts)
		m.notifier.Notify(notify.LevelError, "Reconnection failed, restart the session")
		if m.OnGiveUp != nil {
			go m.OnGiveUp()
		}
		return
	}

	m.attempts++
	attempt := m.attempts
	delay := time.Duration(attempt) * m.baseDelay
	metrics.ReconnectAttempts.Inc()
	m.logger.Info("scheduling reconnect",
		"attempt", attempt,
		"max_attempts", maxReconnectAttempts,
		"delay", delay,
	)

	time.AfterFunc(delay, func() {
		// Skip, not cancel: if connectivity came back while the timer
		// was pending, the attempt is a no-op.
		m.mu.Lock()
		skip := m.closed || m.state == StateConnected || m.state == StateConnecting
		m.mu.Unlock()
		if skip {
			return
		}
		m.Connect()
	})
}

// setStateLocked updates the state and its gauge. Callers must hold m.mu.
func (m *Manager) setStateLocked(state State) {
	m.state = state
	metrics.ConnectionState.Set(float64(state))
}
