package shell

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// alwaysAvailable builtins bypass context filtering. They can still be disabled.
var alwaysAvailable = map[string]bool{
	"context": true,
	"exit":    true,
	"help":    true,
	"quit":    true,
}

func builtins() []*Command {
	return []*Command{
		{
			Name:        "help",
			Description: "Show the available commands",
			Help:        "Usage: help [command]\n\nWithout arguments, list every available command. With a command name, show its help.",
			Run:         runHelp,
		},
		{
			Name:        "clear",
			Description: "Clear the screen",
			Run: func(s *Session, args []string) error {
				fmt.Fprint(s.Stdout, "\033[H\033[2J")
				return nil
			},
		},
		{
			Name:        "quit",
			Description: "Exit the shell",
			Run:         runQuit,
		},
		{
			Name:        "exit",
			Description: "Exit the shell",
			Run:         runQuit,
		},
		{
			Name:        "echo",
			Description: "Print the arguments",
			Run: func(s *Session, args []string) error {
				fmt.Fprintln(s.Stdout, strings.Join(args, " "))
				return nil
			},
		},
		{
			Name:        "env",
			Description: "Show or set session environment variables",
			Help:        "Usage: env [key [value]]\n\nWithout arguments, print every variable. With a key, print its value. With a key and value, set it.",
			Run:         runEnv,
		},
		{
			Name:        "context",
			Description: "Show or switch the current context",
			Help:        "Usage: context [name]",
			Run: func(s *Session, args []string) error {
				switch len(args) {
				case 0:
					fmt.Fprintln(s.Stdout, s.Context())
					return nil
				case 1:
					return s.SetContext(args[0])
				default:
					return fmt.Errorf("usage: context [name]")
				}
			},
		},
	}
}

func runHelp(s *Session, args []string) error {
	if len(args) > 0 {
		name := args[0]
		if !s.Available(name) {
			return fmt.Errorf("no such command: %s", name)
		}
		cmd, _ := s.registry.Lookup(name)
		fmt.Fprintf(s.Stdout, "%s: %s\n", cmd.Name, cmd.Description)
		if cmd.Help != "" {
			fmt.Fprintf(s.Stdout, "\n%s\n", cmd.Help)
		}
		return nil
	}

	fmt.Fprintln(s.Stdout, "List of available commands:")
	fmt.Fprintln(s.Stdout)
	w := tabwriter.NewWriter(s.Stdout, 0, 0, 2, ' ', 0)
	for _, cmd := range s.AvailableCommands() {
		fmt.Fprintf(w, "  %s\t%s\n", cmd.Name, cmd.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(s.Stdout)
	fmt.Fprintln(s.Stdout, `Use "help <command>" to get more information about a command.`)
	return nil
}

func runQuit(s *Session, args []string) error {
	s.Quit()
	return nil
}

func runEnv(s *Session, args []string) error {
	switch len(args) {
	case 0:
		for _, key := range s.env.Keys() {
			fmt.Fprintf(s.Stdout, "%s=%q\n", key, s.env[key])
		}
	case 1:
		fmt.Fprintln(s.Stdout, s.env[args[0]])
	case 2:
		s.env[args[0]] = args[1]
	default:
		return fmt.Errorf("usage: env [key [value]]")
	}
	return nil
}
