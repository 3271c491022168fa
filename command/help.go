package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteHelpFile renders a human-readable listing of every registered command
// (usage, cooldown, summary) to path. Regenerated at startup so the file always
// matches the running binary.
func WriteHelpFile(path, prefix string, reg *Registry) error {
	var sb strings.Builder
	sb.WriteString("Chat Command List.\n\n")

	for _, c := range reg.Commands() {
		fmt.Fprintf(&sb, "Command: %s\n", c.Name)
		usage := prefix + c.Name
		for _, p := range c.Params {
			usage += fmt.Sprintf(" [%s]", p)
		}
		fmt.Fprintf(&sb, "Usage: %s\n", usage)
		if c.Cooldown.Enabled() {
			fmt.Fprintf(&sb, "Cooldown: %d use(s) per %s.\n", c.Cooldown.MaxUses, c.Cooldown.Window)
		} else {
			sb.WriteString("Cooldown: This command has no cooldown\n")
		}
		summary := c.Summary
		if summary == "" {
			summary = "No summary provided."
		}
		fmt.Fprintf(&sb, "Summary:\n%s\n\n", summary)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create help dir: %w", err)
		}
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
