package session

import (
	"sync"

	"pump-console/internal/data"
)

// Context holds the authenticated identity for the current connection.
// It is created on login_success, required by every state-changing
// command, and destroyed on logout or terminal disconnect.
type Context struct {
	mu    sync.RWMutex
	user  *data.User
	token string
}

func NewContext() *Context {
	return &Context{}
}

// Establish stores the identity and bearer token from a successful
// login.
func (c *Context) Establish(user *data.User, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	c.token = token
}

// Clear destroys the session.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	c.token = ""
}

// User returns the authenticated identity, or nil when logged out.
func (c *Context) User() *data.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Token returns the bearer credential for control requests.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// UserName returns the operator display name, or "" when logged out.
func (c *Context) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return ""
	}
	return c.user.Name
}

// Active reports whether an identity is established.
func (c *Context) Active() bool {
	return c.User() != nil
}
