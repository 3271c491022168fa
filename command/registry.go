package command

import (
	"fmt"
)

// Registry is the frozen table of canonical command name to binding. It is
// built once at startup from explicit registrations and never mutated after.
type Registry struct {
	byName map[string]*Command
	names  []string // registration order
}

// NewRegistry builds a registry from the given commands. Registering the same
// canonical name twice, an empty name, or a nil handler is a construction error.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Command, len(cmds))}
	for i := range cmds {
		c := cmds[i]
		if c.Name == "" {
			return nil, fmt.Errorf("command %d has empty name", i)
		}
		if c.Handler == nil {
			return nil, fmt.Errorf("command %q has nil handler", c.Name)
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("command %q registered twice", c.Name)
		}
		r.byName[c.Name] = &c
		r.names = append(r.names, c.Name)
	}
	return r, nil
}

// Resolve looks up a command by canonical name, case-sensitive exact match.
func (r *Registry) Resolve(name string) (*Command, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns the canonical command names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Commands returns the commands in registration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byName[n])
	}
	return out
}

// DeclaredCooldownSeconds returns each command's declared cooldown window in
// whole seconds, omitting commands with no cooldown. This is
// what gets persisted when no external cooldown configuration exists yet.
func (r *Registry) DeclaredCooldownSeconds() map[string]int {
	out := make(map[string]int)
	for name, c := range r.byName {
		if c.Cooldown.Enabled() {
			out[name] = int(c.Cooldown.Window.Seconds())
		}
	}
	return out
}
