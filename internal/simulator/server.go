package simulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pump-console/internal/auth"
	"pump-console/internal/command"
	"pump-console/internal/data"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type controlRequest struct {
	Action string `json:"action"`
	UserID string `json:"user_id,omitempty"`
}

type controlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router builds the HTTP surface: the push channel upgrade, the
// authenticated control endpoints, and read-only state views.
func (s *Simulator) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.serveWS)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/pumps", s.handleListPumps)
		r.Get("/pumps/{id}", s.handleGetPump)
		r.Get("/system/stats", s.handleSystemStats)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/pumps/{id}/control", s.handleControl)
			r.Post("/emergency/all", s.handleEmergencyAll)
			r.Post("/auto/all", s.handleAutoAll)
		})
	})
	return r
}

func (s *Simulator) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 32)}
	s.hub.register <- c
	go c.writePump()
	go c.readPump()
}

func (s *Simulator) handleControl(w http.ResponseWriter, r *http.Request) {
	pumpID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, controlResponse{Error: "invalid pump id"})
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, controlResponse{Error: "invalid request body"})
		return
	}

	message, err := s.Control(pumpID, command.Action(req.Action), operatorName(r))
	switch {
	case errors.Is(err, ErrPumpNotFound):
		writeJSON(w, http.StatusNotFound, controlResponse{Error: "pump not found"})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, controlResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, controlResponse{Success: true, Message: message})
	}
}

func (s *Simulator) handleEmergencyAll(w http.ResponseWriter, r *http.Request) {
	message := s.EmergencyStopAll(operatorName(r))
	writeJSON(w, http.StatusOK, controlResponse{Success: true, Message: message})
}

func (s *Simulator) handleAutoAll(w http.ResponseWriter, r *http.Request) {
	message := s.AutoModeAll(operatorName(r))
	writeJSON(w, http.StatusOK, controlResponse{Success: true, Message: message})
}

func (s *Simulator) handleListPumps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Pumps())
}

func (s *Simulator) handleGetPump(w http.ResponseWriter, r *http.Request) {
	pumpID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, controlResponse{Error: "invalid pump id"})
		return
	}
	pump, ok := s.Pump(pumpID)
	if !ok {
		writeJSON(w, http.StatusNotFound, controlResponse{Error: "pump not found"})
		return
	}
	writeJSON(w, http.StatusOK, pump)
}

func (s *Simulator) handleSystemStats(w http.ResponseWriter, _ *http.Request) {
	pumps := s.Pumps()
	running := 0
	alerts := 0
	var production float64
	for _, pump := range pumps {
		if pump.Status == data.StatusRunning {
			running++
		}
		alerts += len(pump.Alerts)
		production += pump.ProductionToday
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_pumps":      len(pumps),
		"running_pumps":    running,
		"active_alerts":    alerts,
		"production_today": production,
		"system_health":    s.Health(),
		"users_online":     s.hub.loggedIn(),
	})
}

// operatorName pulls the operator identity the auth middleware stored
// on the request context.
func operatorName(r *http.Request) string {
	claims, ok := r.Context().Value(auth.ClaimsKey).(*auth.Claims)
	if !ok || claims == nil {
		return "unknown"
	}
	return claims.Name
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
