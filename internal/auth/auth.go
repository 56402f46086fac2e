package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"pump-console/internal/data"
)

// Config holds the authority's credential store and token settings.
type Config struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	JWTExpiration int    `mapstructure:"jwt_expiration"` // minutes
	Users         []User `mapstructure:"users"`
}

// User is one configured operator account.
type User struct {
	EmployeeID   string `mapstructure:"employee_id"`
	Name         string `mapstructure:"name"`
	Role         string `mapstructure:"role"`
	Department   string `mapstructure:"department"`
	Position     string `mapstructure:"position"`
	PasswordHash string `mapstructure:"password_hash"`
}

// ErrInvalidCredentials is returned for a bad employee id or password.
// Callers surface it without distinguishing the two cases.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Claims are the JWT claims issued on login.
type Claims struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	jwt.StandardClaims
}

// Manager authenticates operators and issues session tokens.
type Manager struct {
	config Config
}

func NewManager(config Config) *Manager {
	if config.JWTExpiration <= 0 {
		config.JWTExpiration = 480
	}
	return &Manager{config: config}
}

// Authenticate validates credentials and returns the operator
// identity.
func (m *Manager) Authenticate(employeeID, password string) (*data.User, error) {
	for _, user := range m.config.Users {
		if user.EmployeeID != employeeID {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		return &data.User{
			EmployeeID: user.EmployeeID,
			Name:       user.Name,
			Role:       user.Role,
			Department: user.Department,
			Position:   user.Position,
			LoginTime:  time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
	return nil, ErrInvalidCredentials
}

// GenerateToken issues a signed session JWT for the operator.
func (m *Manager) GenerateToken(user *data.User) (string, error) {
	expiration := time.Now().Add(time.Duration(m.config.JWTExpiration) * time.Minute)
	claims := &Claims{
		EmployeeID: user.EmployeeID,
		Name:       user.Name,
		Role:       user.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expiration.Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    "pump-console",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.JWTSecret))
}

// ValidateToken parses and verifies a session JWT.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return claims, nil
}

type contextKey string

// ClaimsKey carries the validated claims through the request context.
const ClaimsKey contextKey = "claims"

// Middleware rejects control requests without a valid bearer token.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		claims, err := m.ValidateToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClaimsKey, claims)))
	})
}

// HashPassword creates a bcrypt hash for use in the users config.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
