package shell

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is reported by --version
var Version = "dev"

const contextFlagPrefix = "--contexts."

// Main runs the shell with the given arguments and returns the exit code.
func Main(args []string) int {
	contexts, rest, err := ExtractContextFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	cmd := NewRootCommand(contexts)
	cmd.SetArgs(rest)
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// NewRootCommand builds the corporal command. contexts holds the values of
// any --contexts.<name> flags, which pflag cannot declare ahead of time.
func NewRootCommand(contexts map[string][]string) *cobra.Command {
	var (
		envJSON  string
		commands string
		disabled []string
	)

	cmd := &cobra.Command{
		Use:   "corporal",
		Short: "Interactive command shell",
		Long: `Interactive command shell.

Prompts with the ps1 environment value and runs one command per line.
A line ending in a backslash continues on the next line, prompted with ps2.

Commands can be restricted per context:
  --contexts.<name> a,b,c   commands available in context <name>
  --contexts.* a,b           commands available in every context`,
		Args:         cobra.NoArgs,
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr())

			env, err := ParseEnv(envJSON)
			if err != nil {
				return err
			}

			var defs []*Command
			if commands != "" {
				defs, err = LoadDefinitions(commands)
				if err != nil {
					return err
				}
				logger.WithFields(logrus.Fields{"path": commands, "count": len(defs)}).Debug("loaded command definitions")
			}

			session, err := NewSession(Config{
				Env:      env,
				Commands: defs,
				Disabled: disabled,
				Contexts: contexts,
				Stdout:   cmd.OutOrStdout(),
				Stderr:   cmd.ErrOrStderr(),
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			in := NewLineReader(cmd.InOrStdin(), cmd.OutOrStdout(), session.Complete)
			defer in.Close()
			return session.Run(in)
		},
	}

	cmd.Flags().StringVar(&envJSON, "env", "", "session environment as a JSON object (ps1, ps2, ...)")
	cmd.Flags().StringVar(&commands, "commands", "", "directory or JSON file of command definitions")
	cmd.Flags().StringSliceVar(&disabled, "disabled", nil, "comma-separated list of commands to disable")
	return cmd
}

// ExtractContextFlags removes --contexts.<name> flags from args, accepting
// both "--contexts.name a,b" and "--contexts.name=a,b". Arguments after "--"
// are left alone.
func ExtractContextFlags(args []string) (map[string][]string, []string, error) {
	contexts := make(map[string][]string)
	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, contextFlagPrefix) {
			rest = append(rest, arg)
			continue
		}

		name := strings.TrimPrefix(arg, contextFlagPrefix)
		var value string
		if n, v, ok := strings.Cut(name, "="); ok {
			name, value = n, v
		} else {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("flag needs an argument: %s", arg)
			}
			i++
			value = args[i]
		}
		if name == "" {
			return nil, nil, fmt.Errorf("missing context name in %q", arg)
		}
		contexts[name] = append(contexts[name], splitList(value)...)
	}

	return contexts, rest, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func newLogger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if raw := os.Getenv("CORPORAL_LOG_LEVEL"); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			logger.Warnf("invalid log level %s, defaulting to warning", raw)
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}
