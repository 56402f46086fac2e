package simulator

import (
	"context"
	"encoding/json"
	"time"

	"pump-console/internal/data"
)

// consumeInbound routes client frames to their handlers until the
// context is cancelled.
func (s *Simulator) consumeInbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.hub.inbound:
			s.handleFrame(frame)
		}
	}
}

func (s *Simulator) handleFrame(frame inboundFrame) {
	switch frame.envelope.Event {
	case data.EmitUserLogin:
		s.handleLogin(frame.client, frame.envelope.Data)
	case data.EmitSendMessage:
		s.handleSendMessage(frame.client, frame.envelope.Data)
	case data.EmitRequestDataUpdate:
		s.handleDataRequest(frame.client)
	default:
		s.logger.Debug("ignoring client frame", "event", frame.envelope.Event)
	}
}

func (s *Simulator) handleLogin(c *client, raw json.RawMessage) {
	var req data.LoginRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.hub.sendTo(c, data.EventLoginFailed, data.LoginFailedEvent{Error: "malformed login request"})
		return
	}

	user, err := s.auth.Authenticate(req.EmployeeID, req.Password)
	if err != nil {
		s.logger.Info("login rejected", "employee_id", req.EmployeeID)
		s.hub.sendTo(c, data.EventLoginFailed, data.LoginFailedEvent{Error: "invalid employee ID or password"})
		return
	}
	user.LoginTime = time.Now().Format(time.RFC3339)

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		s.logger.Error("token generation failed", "employee_id", user.EmployeeID, "error", err)
		s.hub.sendTo(c, data.EventLoginFailed, data.LoginFailedEvent{Error: "internal error"})
		return
	}

	c.setUser(user)
	s.logger.Info("login accepted", "employee_id", user.EmployeeID, "name", user.Name)

	s.hub.sendTo(c, data.EventLoginSuccess, data.LoginSuccessEvent{
		User:    user,
		Token:   token,
		Message: "Welcome, " + user.Name,
	})
	s.hub.Broadcast(data.EventUserConnected, data.PresenceEvent{
		User:        user,
		UsersOnline: s.hub.loggedIn(),
	})
	s.recordActivity(user.Name+" logged in", user.Name, "info", 0)
}

func (s *Simulator) handleSendMessage(c *client, raw json.RawMessage) {
	user := c.currentUser()
	if user == nil {
		return
	}

	var req data.SendMessageRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Message == "" {
		return
	}

	s.mu.Lock()
	s.messageID++
	message := data.ChatMessage{
		ID:        s.messageID,
		User:      user.Name,
		UserRole:  user.Role,
		Message:   req.Message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	s.mu.Unlock()

	s.hub.Broadcast(data.EventNewMessage, message)
}

func (s *Simulator) handleDataRequest(c *client) {
	s.mu.Lock()
	update := s.snapshotLocked()
	s.mu.Unlock()
	s.hub.sendTo(c, data.EventDataUpdate, update)
}

// onClientGone announces a departure if the console had logged in.
func (s *Simulator) onClientGone(c *client) {
	user := c.currentUser()
	if user == nil {
		return
	}
	s.logger.Info("console disconnected", "employee_id", user.EmployeeID)
	s.hub.Broadcast(data.EventUserDisconnected, data.PresenceEvent{
		User:        user,
		UsersOnline: s.hub.loggedIn(),
	})
}
