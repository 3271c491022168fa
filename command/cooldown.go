package command

import (
	"sync"
	"time"
)

// Tracker enforces per-(command, caller) sliding-window use limits.
//
// For each pair it keeps the timestamps of accepted uses inside the current
// window, pruning stale entries on every TryConsume. Memory stays bounded to
// O(maxUses) per active pair. Entries for distinct pairs never interact.
//
// Tracker is safe for concurrent use, though the single-worker pipeline only
// ever calls it from the dispatch path.
type Tracker struct {
	mu     sync.Mutex
	limits map[string]Cooldown // command name -> limit
	uses   map[pairKey][]time.Time
}

type pairKey struct {
	command string
	caller  string
}

// NewTracker returns a tracker with per-command limits taken from the registry.
func NewTracker(reg *Registry) *Tracker {
	t := &Tracker{
		limits: make(map[string]Cooldown),
		uses:   make(map[pairKey][]time.Time),
	}
	for _, c := range reg.Commands() {
		if c.Cooldown.Enabled() {
			t.limits[c.Name] = c.Cooldown
		}
	}
	return t
}

// SetLimit overrides the limit for a command. A zero cooldown removes the limit.
func (t *Tracker) SetLimit(command string, cd Cooldown) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !cd.Enabled() {
		delete(t.limits, command)
		return
	}
	t.limits[command] = cd
}

// TryConsume reports whether the caller may invoke the command at now, and
// records the use when allowed. Denied attempts are not recorded.
func (t *Tracker) TryConsume(command, caller string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cd, limited := t.limits[command]
	if !limited {
		return true
	}

	key := pairKey{command: command, caller: caller}
	cutoff := now.Add(-cd.Window)

	existing := t.uses[key]
	valid := existing[:0] // reuse backing array
	for _, ts := range existing {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= cd.MaxUses {
		t.uses[key] = valid
		return false
	}

	valid = append(valid, now)
	// Bound history to the last MaxUses entries.
	if len(valid) > cd.MaxUses {
		valid = valid[len(valid)-cd.MaxUses:]
	}
	t.uses[key] = valid
	return true
}
