package simulator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pump-console/internal/data"
)

func startTestServer(t *testing.T) (*Simulator, *httptest.Server, string) {
	t.Helper()
	s := newTestSimulator(t)
	server := httptest.NewServer(s.Router())
	t.Cleanup(server.Close)

	token, err := s.auth.GenerateToken(&data.User{EmployeeID: "EMP001", Name: "Sarah Mitchell", Role: "admin"})
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return s, server, token
}

func postControl(t *testing.T, url, token string, body any) (*http.Response, controlResponse) {
	t.Helper()
	encoded, _ := json.Marshal(body)
	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer response.Body.Close()

	var result controlResponse
	json.NewDecoder(response.Body).Decode(&result)
	return response, result
}

func TestControlEndpoint(t *testing.T) {
	t.Run("requires a bearer token", func(t *testing.T) {
		_, server, _ := startTestServer(t)

		response, _ := postControl(t, server.URL+"/api/pumps/1/control", "", controlRequest{Action: "stop"})
		if response.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", response.StatusCode)
		}
	})

	t.Run("applies the action", func(t *testing.T) {
		s, server, token := startTestServer(t)

		response, result := postControl(t, server.URL+"/api/pumps/1/control", token, controlRequest{Action: "stop"})
		if response.StatusCode != http.StatusOK || !result.Success {
			t.Fatalf("status = %d, success = %v, error = %q", response.StatusCode, result.Success, result.Error)
		}
		if pump, _ := s.Pump(1); pump.Status != data.StatusStopped {
			t.Errorf("status = %s, want stopped", pump.Status)
		}
	})

	t.Run("rejects with success=false", func(t *testing.T) {
		s, server, token := startTestServer(t)
		s.Control(1, "emergency_stop", "Sarah Mitchell")

		response, result := postControl(t, server.URL+"/api/pumps/1/control", token, controlRequest{Action: "start"})
		if response.StatusCode != http.StatusBadRequest || result.Success {
			t.Errorf("status = %d, success = %v", response.StatusCode, result.Success)
		}
		if result.Error == "" {
			t.Error("rejection carries no error message")
		}
	})

	t.Run("unknown pump is 404", func(t *testing.T) {
		_, server, token := startTestServer(t)

		response, _ := postControl(t, server.URL+"/api/pumps/42/control", token, controlRequest{Action: "stop"})
		if response.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", response.StatusCode)
		}
	})
}

func TestFleetEndpoints(t *testing.T) {
	s, server, token := startTestServer(t)

	response, result := postControl(t, server.URL+"/api/emergency/all", token, controlRequest{})
	if response.StatusCode != http.StatusOK || !result.Success {
		t.Fatalf("status = %d, success = %v", response.StatusCode, result.Success)
	}
	for _, pump := range s.Pumps() {
		if pump.Status == data.StatusRunning {
			t.Errorf("pump %d still running", pump.ID)
		}
	}

	response, result = postControl(t, server.URL+"/api/auto/all", token, controlRequest{})
	if response.StatusCode != http.StatusOK || !result.Success {
		t.Fatalf("auto/all status = %d, success = %v", response.StatusCode, result.Success)
	}
}

func TestReadEndpoints(t *testing.T) {
	_, server, _ := startTestServer(t)

	t.Run("list pumps", func(t *testing.T) {
		response, err := http.Get(server.URL + "/api/pumps")
		if err != nil {
			t.Fatalf("GET /api/pumps: %v", err)
		}
		defer response.Body.Close()

		var pumps []*data.Pump
		if err := json.NewDecoder(response.Body).Decode(&pumps); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if len(pumps) != 6 {
			t.Errorf("pumps = %d, want 6", len(pumps))
		}
	})

	t.Run("single pump", func(t *testing.T) {
		response, err := http.Get(server.URL + "/api/pumps/3")
		if err != nil {
			t.Fatalf("GET /api/pumps/3: %v", err)
		}
		defer response.Body.Close()

		var pump data.Pump
		if err := json.NewDecoder(response.Body).Decode(&pump); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if pump.ID != 3 {
			t.Errorf("id = %d, want 3", pump.ID)
		}
	})

	t.Run("system stats", func(t *testing.T) {
		response, err := http.Get(server.URL + "/api/system/stats")
		if err != nil {
			t.Fatalf("GET /api/system/stats: %v", err)
		}
		defer response.Body.Close()

		var stats map[string]any
		if err := json.NewDecoder(response.Body).Decode(&stats); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if stats["total_pumps"].(float64) != 6 {
			t.Errorf("total_pumps = %v, want 6", stats["total_pumps"])
		}
	})
}

func TestWebSocketLoginFlow(t *testing.T) {
	s := newLoginSimulator(t)
	server := httptest.NewServer(s.Router())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	login, _ := data.NewEnvelope(data.EmitUserLogin, data.LoginRequest{EmployeeID: "EMP001", Password: "admin123"})
	if err := conn.WriteJSON(login); err != nil {
		t.Fatalf("sending login: %v", err)
	}

	envelope := readEvent(t, conn, data.EventLoginSuccess)
	var success data.LoginSuccessEvent
	if err := json.Unmarshal(envelope.Data, &success); err != nil {
		t.Fatalf("decoding login_success: %v", err)
	}
	if success.User == nil || success.User.Name != "Sarah Mitchell" {
		t.Fatalf("user = %+v", success.User)
	}
	if success.Token == "" {
		t.Error("login_success carries no token")
	}

	resync, _ := data.NewEnvelope(data.EmitRequestDataUpdate, nil)
	if err := conn.WriteJSON(resync); err != nil {
		t.Fatalf("sending resync: %v", err)
	}

	envelope = readEvent(t, conn, data.EventDataUpdate)
	var update data.DataUpdateEvent
	if err := json.Unmarshal(envelope.Data, &update); err != nil {
		t.Fatalf("decoding data_update: %v", err)
	}
	if len(update.Pumps) != 6 {
		t.Errorf("pumps = %d, want 6", len(update.Pumps))
	}
	if update.SystemHealth == nil {
		t.Error("data_update carries no system health")
	}
}

func TestWebSocketRejectsBadCredentials(t *testing.T) {
	s := newLoginSimulator(t)
	server := httptest.NewServer(s.Router())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	login, _ := data.NewEnvelope(data.EmitUserLogin, data.LoginRequest{EmployeeID: "EMP999", Password: "nope"})
	if err := conn.WriteJSON(login); err != nil {
		t.Fatalf("sending login: %v", err)
	}

	envelope := readEvent(t, conn, data.EventLoginFailed)
	var failed data.LoginFailedEvent
	if err := json.Unmarshal(envelope.Data, &failed); err != nil {
		t.Fatalf("decoding login_failed: %v", err)
	}
	if failed.Error == "" {
		t.Error("login_failed carries no error")
	}
}

// readEvent skips broadcasts until the wanted event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, want string) *data.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var envelope data.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if envelope.Event == want {
			return &envelope
		}
	}
}
