package app

import (
	"context"
	"sync"
)

// Approval is a one-shot Confirmer for hosts that ask the participant themselves
// (a browser dialog, a terminal prompt) before invoking the controller. Arm it right
// before the action; the next Confirm consumes the answer.
type Approval struct {
	mu      sync.Mutex
	granted bool
}

func NewApproval() *Approval {
	return &Approval{}
}

// Arm records the participant's answer for the next confirmation.
func (a *Approval) Arm(granted bool) {
	a.mu.Lock()
	a.granted = granted
	a.mu.Unlock()
}

func (a *Approval) Confirm(_ context.Context, _ string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	granted := a.granted
	a.granted = false
	return granted
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }
