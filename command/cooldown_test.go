package command

import (
	"testing"
	"time"
)

func trackerWith(t *testing.T, cmds ...Command) *Tracker {
	t.Helper()
	reg, err := NewRegistry(cmds...)
	if err != nil {
		t.Fatal(err)
	}
	return NewTracker(reg)
}

func TestTracker_SlidingWindow(t *testing.T) {
	tr := trackerWith(t, Command{
		Name:     "jump",
		Handler:  noop,
		Cooldown: Cooldown{MaxUses: 2, Window: 10 * time.Second},
	})

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	// Three consecutive uses within 5 seconds: allow, allow, deny.
	results := []bool{
		tr.TryConsume("jump", "ann", base),
		tr.TryConsume("jump", "ann", base.Add(2*time.Second)),
		tr.TryConsume("jump", "ann", base.Add(5*time.Second)),
	}
	want := []bool{true, true, false}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("TryConsume #%d = %v, want %v", i+1, results[i], want[i])
		}
	}

	// 11 seconds after the first use, the window has slid past it.
	if !tr.TryConsume("jump", "ann", base.Add(11*time.Second)) {
		t.Error("TryConsume after window slid = false, want true")
	}
}

func TestTracker_DeniedAttemptsNotRecorded(t *testing.T) {
	tr := trackerWith(t, Command{
		Name:     "jump",
		Handler:  noop,
		Cooldown: Cooldown{MaxUses: 1, Window: 10 * time.Second},
	})
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	if !tr.TryConsume("jump", "ann", base) {
		t.Fatal("first use denied")
	}
	// Hammering while denied must not extend the cooldown.
	for i := 1; i <= 5; i++ {
		if tr.TryConsume("jump", "ann", base.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("use at +%ds allowed, want denied", i)
		}
	}
	if !tr.TryConsume("jump", "ann", base.Add(11*time.Second)) {
		t.Error("use after window = false; denied attempts must not be recorded")
	}
}

func TestTracker_PairsAreIndependent(t *testing.T) {
	tr := trackerWith(t,
		Command{Name: "jump", Handler: noop, Cooldown: Cooldown{MaxUses: 1, Window: time.Minute}},
		Command{Name: "heal", Handler: noop, Cooldown: Cooldown{MaxUses: 1, Window: time.Minute}},
	)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	if !tr.TryConsume("jump", "ann", now) {
		t.Fatal("ann/jump denied")
	}
	// Same command, different caller.
	if !tr.TryConsume("jump", "bob", now) {
		t.Error("bob/jump denied; pairs must not interact")
	}
	// Same caller, different command.
	if !tr.TryConsume("heal", "ann", now) {
		t.Error("ann/heal denied; pairs must not interact")
	}
	// The original pair is still limited.
	if tr.TryConsume("jump", "ann", now.Add(time.Second)) {
		t.Error("ann/jump allowed twice within window")
	}
}

func TestTracker_UnlimitedCommandAlwaysAllowed(t *testing.T) {
	tr := trackerWith(t, Command{Name: "chat", Handler: noop})
	now := time.Now()
	for i := 0; i < 100; i++ {
		if !tr.TryConsume("chat", "ann", now) {
			t.Fatal("command without cooldown denied")
		}
	}
}

func TestTracker_SetLimitOverrides(t *testing.T) {
	tr := trackerWith(t, Command{
		Name:     "jump",
		Handler:  noop,
		Cooldown: Cooldown{MaxUses: 5, Window: time.Second},
	})
	tr.SetLimit("jump", Cooldown{MaxUses: 1, Window: time.Minute})

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !tr.TryConsume("jump", "ann", now) {
		t.Fatal("first use denied")
	}
	if tr.TryConsume("jump", "ann", now.Add(30*time.Second)) {
		t.Error("override not applied; second use within new window allowed")
	}

	// Removing the limit permits unlimited use.
	tr.SetLimit("jump", Cooldown{})
	if !tr.TryConsume("jump", "ann", now.Add(31*time.Second)) {
		t.Error("use denied after limit removed")
	}
}
