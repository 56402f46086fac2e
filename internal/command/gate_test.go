package command

import (
	"context"
	"errors"
	"testing"
)

func TestGate(t *testing.T) {
	t.Run("confirm runs the armed action", func(t *testing.T) {
		gate := NewGate()
		ran := false
		gate.Arm("stop pump 1", func(context.Context) error {
			ran = true
			return nil
		})

		if label, armed := gate.Pending(); !armed || label != "stop pump 1" {
			t.Fatalf("Pending() = %q, %v; want armed", label, armed)
		}
		if err := gate.Confirm(context.Background()); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if !ran {
			t.Error("armed action never ran")
		}
		if _, armed := gate.Pending(); armed {
			t.Error("gate still armed after confirm")
		}
	})

	t.Run("arming again replaces the pending action", func(t *testing.T) {
		gate := NewGate()
		var ran []string
		gate.Arm("first", func(context.Context) error {
			ran = append(ran, "first")
			return nil
		})
		gate.Arm("second", func(context.Context) error {
			ran = append(ran, "second")
			return nil
		})

		if label, _ := gate.Pending(); label != "second" {
			t.Fatalf("Pending() = %q, want second", label)
		}
		if err := gate.Confirm(context.Background()); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if len(ran) != 1 || ran[0] != "second" {
			t.Errorf("ran = %v, want only the replacement", ran)
		}
	})

	t.Run("dismiss discards without running", func(t *testing.T) {
		gate := NewGate()
		gate.Arm("x", func(context.Context) error {
			t.Error("dismissed action ran")
			return nil
		})

		if !gate.Dismiss() {
			t.Error("Dismiss() = false with an armed action")
		}
		if err := gate.Confirm(context.Background()); !errors.Is(err, ErrNothingPending) {
			t.Errorf("Confirm after dismiss = %v, want ErrNothingPending", err)
		}
	})

	t.Run("confirm while idle", func(t *testing.T) {
		gate := NewGate()
		if err := gate.Confirm(context.Background()); !errors.Is(err, ErrNothingPending) {
			t.Errorf("Confirm = %v, want ErrNothingPending", err)
		}
		if gate.Dismiss() {
			t.Error("Dismiss() = true while idle")
		}
	})
}
