package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidwall/sjson"
)

// Fixture is a temporary directory holding command definitions for a shell
// under test
type Fixture struct {
	t           testing.TB
	TempDir     string
	CommandsDir string
	defined     []string
}

// Definition describes a command the shell loads from the fixture
type Definition struct {
	Description string
	Help        string
	Output      []string
	Error       string
}

// NewFixture creates a fixture under t.TempDir()
func NewFixture(t testing.TB) (*Fixture, error) {
	t.Helper()

	tmpDir := t.TempDir()
	f := &Fixture{
		t:           t,
		TempDir:     tmpDir,
		CommandsDir: filepath.Join(tmpDir, "commands"),
	}

	if err := os.MkdirAll(f.CommandsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create commands dir: %w", err)
	}
	return f, nil
}

// DefineCommand writes <name>.json into CommandsDir
func (f *Fixture) DefineCommand(name string, def Definition) error {
	f.t.Helper()

	doc, err := encodeDefinition(name, def)
	if err != nil {
		return fmt.Errorf("failed to encode command %s: %w", name, err)
	}

	path := filepath.Join(f.CommandsDir, name+".json")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return fmt.Errorf("failed to write command %s: %w", name, err)
	}
	f.defined = append(f.defined, name)
	return nil
}

// Commands returns the names defined so far
func (f *Fixture) Commands() []string {
	return append([]string(nil), f.defined...)
}

// HasCommands reports whether any command was defined
func (f *Fixture) HasCommands() bool {
	return len(f.defined) > 0
}

func encodeDefinition(name string, def Definition) (string, error) {
	fields := []struct {
		path  string
		value any
		set   bool
	}{
		{"name", name, true},
		{"description", def.Description, def.Description != ""},
		{"help", def.Help, def.Help != ""},
		{"output", def.Output, len(def.Output) > 0},
		{"error", def.Error, def.Error != ""},
	}

	doc := "{}"
	for _, field := range fields {
		if !field.set {
			continue
		}
		var err error
		doc, err = sjson.Set(doc, field.path, field.value)
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}
