package command

import (
	"context"
	"sync"
)

// Gate is the two-state (armed/idle) confirmation step in front of
// destructive commands. It holds at most one pending action: arming a
// second confirmable command replaces the first, whose callback is
// then never invoked. There is no queue.
type Gate struct {
	mu     sync.Mutex
	label  string
	action func(context.Context) error
}

func NewGate() *Gate {
	return &Gate{}
}

// Arm stages an action awaiting operator confirmation, replacing any
// previously armed one.
func (g *Gate) Arm(label string, action func(context.Context) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.label = label
	g.action = action
}

// Pending returns the armed action's label, if any.
func (g *Gate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.label, g.action != nil
}

// Confirm executes and clears the armed action. The gate returns to
// idle before the action runs, so the action may arm a new one.
func (g *Gate) Confirm(ctx context.Context) error {
	g.mu.Lock()
	action := g.action
	g.label = ""
	g.action = nil
	g.mu.Unlock()

	if action == nil {
		return ErrNothingPending
	}
	return action(ctx)
}

// Dismiss discards the armed action without invoking it.
func (g *Gate) Dismiss() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	armed := g.action != nil
	g.label = ""
	g.action = nil
	return armed
}
