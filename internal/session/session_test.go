package session

import (
	"testing"

	"pump-console/internal/data"
)

func TestContext(t *testing.T) {
	c := NewContext()
	if c.Active() {
		t.Fatal("fresh context is active")
	}
	if c.UserName() != "" {
		t.Errorf("UserName() = %q, want empty", c.UserName())
	}

	c.Establish(&data.User{EmployeeID: "EMP001", Name: "Sarah Mitchell"}, "tok")
	if !c.Active() {
		t.Fatal("context not active after Establish")
	}
	if c.UserName() != "Sarah Mitchell" {
		t.Errorf("UserName() = %q", c.UserName())
	}
	if c.Token() != "tok" {
		t.Errorf("Token() = %q", c.Token())
	}

	c.Clear()
	if c.Active() || c.Token() != "" || c.User() != nil {
		t.Error("Clear left identity behind")
	}
}
