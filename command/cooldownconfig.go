package command

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadCooldownSeconds reads the cooldown override file, a YAML mapping of
// command name to window seconds. A missing file yields an empty map.
func LoadCooldownSeconds(path string) (map[string]int, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cooldown config: %w", err)
	}
	out := map[string]int{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse cooldown config: %w", err)
	}
	return out, nil
}

// SaveCooldownSeconds persists the mapping so operators can hand-edit it.
func SaveCooldownSeconds(path string, seconds map[string]int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cooldown config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(seconds)
	if err != nil {
		return fmt.Errorf("encode cooldown config: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// ConfigureCooldowns reconciles the registry's declared cooldowns with the
// override file at path and applies the result to the tracker.
//
// When the file is empty or absent, each command's declared default is
// persisted so future loads have something to edit. When non-empty, configured
// windows override the declared defaults per command name; names that match no
// registered command are ignored silently.
func ConfigureCooldowns(reg *Registry, tracker *Tracker, path string) error {
	configured, err := LoadCooldownSeconds(path)
	if err != nil {
		return err
	}
	if len(configured) == 0 {
		declared := reg.DeclaredCooldownSeconds()
		if len(declared) == 0 {
			return nil
		}
		return SaveCooldownSeconds(path, declared)
	}
	for name, secs := range configured {
		cmd, ok := reg.Resolve(name)
		if !ok {
			continue
		}
		maxUses := cmd.Cooldown.MaxUses
		if maxUses <= 0 {
			maxUses = 1
		}
		tracker.SetLimit(name, Cooldown{MaxUses: maxUses, Window: time.Duration(secs) * time.Second})
	}
	return nil
}
