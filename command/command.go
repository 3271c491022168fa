// Package command provides the command registry, per-caller cooldown tracking,
// and the dispatcher that turns fresh chat messages into handler invocations.
package command

import (
	"context"
	"time"
)

// Invocation carries everything a handler receives.
type Invocation struct {
	Caller string
	Admin  bool
	Args   []string
}

// HandlerFunc executes a command's effect. Handlers run synchronously on the
// chat worker; anything touching host-owned state must hand off itself.
type HandlerFunc func(ctx context.Context, inv Invocation) error

// Cooldown limits a command to MaxUses invocations per caller within Window.
// A zero Cooldown means unlimited.
type Cooldown struct {
	MaxUses int
	Window  time.Duration
}

// Enabled reports whether this cooldown restricts anything.
func (c Cooldown) Enabled() bool { return c.MaxUses > 0 && c.Window > 0 }

// Command binds a canonical name to a handler with its declared parameter shape
// and preconditions. Commands are immutable after registry construction.
type Command struct {
	Name     string
	Params   []string // positional parameter names, for the help listing
	Summary  string
	Cooldown Cooldown
	Handler  HandlerFunc
}
