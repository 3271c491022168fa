// Package alias loads the user-editable command translation table.
//
// The table maps alternate-language or alternate-spelling tokens onto canonical
// command names. Operators edit the file by hand; each line is `alias:canonical`
// in UTF-8. When the file does not exist it is seeded with an identity entry per
// registered command so there is something to edit. The table is immutable for
// the process lifetime; a restart picks up edits.
package alias

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Table maps alias token to canonical command name.
type Table map[string]string

// Identity returns a table mapping every command name to itself.
func Identity(commands []string) Table {
	t := make(Table, len(commands))
	for _, c := range commands {
		t[c] = c
	}
	return t
}

// Load reads the alias file at path. If the file is absent it is created with
// identity entries for commands and the identity table is returned. Lines
// without a separator and duplicate alias keys are skipped; they never abort
// the load.
func Load(path string, commands []string) (Table, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		t := Identity(commands)
		if werr := writeIdentity(path, commands); werr != nil {
			return t, fmt.Errorf("seed alias file: %w", werr)
		}
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open alias file: %w", err)
	}
	defer f.Close()

	t := make(Table)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		a, canonical, ok := strings.Cut(line, ":")
		if !ok || a == "" {
			continue
		}
		if _, dup := t[a]; dup {
			continue
		}
		t[a] = canonical
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	return t, nil
}

func writeIdentity(path string, commands []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var sb strings.Builder
	for _, c := range commands {
		fmt.Fprintf(&sb, "%s:%s\n", c, c)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
