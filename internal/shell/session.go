package shell

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// AnyContext lists commands available regardless of the current context.
	AnyContext = "*"
	// DefaultContext is the context a session starts in.
	DefaultContext = "default"
)

// Config configures a new Session.
type Config struct {
	Env      Env
	Commands []*Command
	Disabled []string
	Contexts map[string][]string
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *logrus.Logger
}

// Session is one interactive shell session: its environment, registered
// commands and current context.
type Session struct {
	Stdout io.Writer
	Stderr io.Writer

	env      Env
	registry *Registry
	contexts map[string][]string
	disabled map[string]bool
	current  string
	done     bool
	log      *logrus.Entry
}

// NewSession registers the builtins plus cfg.Commands. A defined command may
// not reuse a builtin name.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Env == nil {
		cfg.Env = Env{"ps1": DefaultPrompt, "ps2": DefaultPrompt}
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}

	s := &Session{
		Stdout:   cfg.Stdout,
		Stderr:   cfg.Stderr,
		env:      cfg.Env,
		registry: NewRegistry(),
		contexts: cfg.Contexts,
		disabled: make(map[string]bool, len(cfg.Disabled)),
		current:  DefaultContext,
		log:      cfg.Logger.WithField("component", "session"),
	}
	for _, name := range cfg.Disabled {
		s.disabled[name] = true
	}

	for _, cmd := range append(builtins(), cfg.Commands...) {
		if err := s.registry.Register(cmd); err != nil {
			return nil, fmt.Errorf("failed to register command: %w", err)
		}
	}
	return s, nil
}

// Env returns the value of an environment key.
func (s *Session) Env(key string) string {
	return s.env[key]
}

// Context returns the name of the current context.
func (s *Session) Context() string {
	return s.current
}

// SetContext switches to a configured context.
func (s *Session) SetContext(name string) error {
	if name != DefaultContext {
		if _, ok := s.contexts[name]; !ok || name == AnyContext {
			return fmt.Errorf("unknown context: %s", name)
		}
	}
	s.log.WithFields(logrus.Fields{"from": s.current, "to": name}).Debug("switching context")
	s.current = name
	return nil
}

// Available reports whether name can be invoked in the current context.
func (s *Session) Available(name string) bool {
	if s.disabled[name] {
		return false
	}
	if _, ok := s.registry.Lookup(name); !ok {
		return false
	}
	if len(s.contexts) == 0 || alwaysAvailable[name] {
		return true
	}
	return slices.Contains(s.contexts[AnyContext], name) ||
		slices.Contains(s.contexts[s.current], name)
}

// AvailableCommands returns the commands invocable right now, sorted by name.
func (s *Session) AvailableCommands() []*Command {
	var cmds []*Command
	for _, name := range s.registry.Names() {
		if s.Available(name) {
			cmd, _ := s.registry.Lookup(name)
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Complete returns the available command names starting with line.
func (s *Session) Complete(line string) []string {
	var matches []string
	for _, cmd := range s.AvailableCommands() {
		if strings.HasPrefix(cmd.Name, line) {
			matches = append(matches, cmd.Name)
		}
	}
	return matches
}

// Exec runs one input line. Failures are reported on Stderr, never returned.
func (s *Session) Exec(line string) {
	args, err := splitLine(line)
	if err != nil {
		fmt.Fprintf(s.Stderr, "Error: %v\n", err)
		return
	}
	if len(args) == 0 {
		return
	}

	name := args[0]
	if !s.Available(name) {
		s.log.WithFields(logrus.Fields{"command": name, "context": s.current}).Debug("rejected command")
		fmt.Fprintf(s.Stderr, "Invalid command: %s\n", name)
		return
	}

	cmd, _ := s.registry.Lookup(name)
	s.log.WithField("command", name).Debug("running command")
	if err := cmd.Run(s, args[1:]); err != nil {
		fmt.Fprintf(s.Stderr, "Error: %v\n", err)
	}
}

// Quit ends the session after the current command.
func (s *Session) Quit() {
	s.done = true
}

// Run prompts for and executes lines until input ends or the session quits.
// A line ending in a backslash continues on the next line, prompted with ps2.
func (s *Session) Run(in LineReader) error {
	for !s.done {
		line, err := in.Prompt(s.env["ps1"])
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		for strings.HasSuffix(line, `\`) {
			line = strings.TrimSuffix(line, `\`)
			more, err := in.Prompt(s.env["ps2"])
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			line += " " + more
		}

		s.Exec(line)
	}
	return nil
}

// splitLine breaks a line into words, honouring single quotes, double quotes
// and backslash escapes.
func splitLine(line string) ([]string, error) {
	var (
		words   []string
		word    strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			word.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if escaped {
		word.WriteRune('\\')
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}
