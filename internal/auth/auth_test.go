package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pump-console/internal/data"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := HashPassword("admin123")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	return NewManager(Config{
		JWTSecret:     "test-secret",
		JWTExpiration: 60,
		Users: []User{{
			EmployeeID:   "EMP001",
			Name:         "Sarah Mitchell",
			Role:         "admin",
			PasswordHash: hash,
		}},
	})
}

func TestAuthenticate(t *testing.T) {
	m := testManager(t)

	t.Run("valid credentials", func(t *testing.T) {
		user, err := m.Authenticate("EMP001", "admin123")
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if user.Name != "Sarah Mitchell" || user.Role != "admin" {
			t.Errorf("user = %+v", user)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := m.Authenticate("EMP001", "nope"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown employee", func(t *testing.T) {
		if _, err := m.Authenticate("EMP999", "admin123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Authenticate = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestTokenRoundTrip(t *testing.T) {
	m := testManager(t)

	token, err := m.GenerateToken(&data.User{EmployeeID: "EMP001", Name: "Sarah Mitchell", Role: "admin"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.EmployeeID != "EMP001" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := m.ValidateToken("not.a.token"); err == nil {
		t.Error("ValidateToken accepted garbage")
	}

	other := NewManager(Config{JWTSecret: "different-secret", JWTExpiration: 60})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token validated under a different secret")
	}
}

func TestMiddleware(t *testing.T) {
	m := testManager(t)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(ClaimsKey).(*Claims)
		if !ok || claims.EmployeeID != "EMP001" {
			t.Errorf("claims missing from request context: %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no header", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/", nil))
		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", recorder.Code)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/", nil)
		request.Header.Set("Authorization", "Bearer junk")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", recorder.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := m.GenerateToken(&data.User{EmployeeID: "EMP001", Name: "Sarah Mitchell", Role: "admin"})
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		request := httptest.NewRequest(http.MethodPost, "/", nil)
		request.Header.Set("Authorization", "Bearer "+token)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", recorder.Code)
		}
	})
}
