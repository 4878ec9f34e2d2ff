package shell

import (
	"fmt"
	"sort"
)

// Command is a single shell command.
type Command struct {
	Name        string
	Description string
	Help        string
	Run         func(s *Session, args []string) error
}

// Registry holds the commands known to a session, keyed by name.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command. Names must be unique.
func (r *Registry) Register(cmd *Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command has no name")
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}
	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("command %q already registered", cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// Lookup returns the command registered under name
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns all registered command names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
