package harness

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

const (
	// DefaultPrompt is used for ps1 and ps2 when Env leaves them unset
	DefaultPrompt = "> "
	// DefaultPromptTimeout bounds every wait for a prompt
	DefaultPromptTimeout = 10 * time.Second
	// DefaultSettleDelay is how long stderr is given to catch up once a prompt is seen
	DefaultSettleDelay = 20 * time.Millisecond
	// DefaultMaxBuffer caps the output buffered while waiting for a prompt
	DefaultMaxBuffer = 1 << 20
)

// Options configures a Runner.
type Options struct {
	// Env is passed to the shell as --env. ps1 is also the prompt the
	// Runner waits for.
	Env map[string]string
	// Commands is passed as --commands when set.
	Commands string
	// Disabled is passed as --disabled when non-empty.
	Disabled []string
	// Contexts maps context names to commands, one --contexts.<name> each.
	Contexts map[string][]string

	// Program is the shell executable. Defaults to $CORPORAL_BINARY, then
	// corporal on PATH.
	Program string
	// Args are placed before the generated flags.
	Args []string
	// Environ is the child's environment; nil inherits ours.
	Environ []string

	// PromptTimeout bounds each wait for a prompt on top of any context
	// deadline.
	PromptTimeout time.Duration
	// SettleDelay is waited after a prompt before stderr is collected,
	// since the two streams are read independently. Negative disables it.
	SettleDelay time.Duration
	// MaxBuffer caps stdout or stderr buffered between prompts.
	MaxBuffer int
	Logger    *logrus.Logger
}

// withDefaults returns a copy with every unset field filled in. Env is
// copied so later changes by the caller do not leak into the runner.
func (o Options) withDefaults() Options {
	env := make(map[string]string, len(o.Env)+2)
	for k, v := range o.Env {
		env[k] = v
	}
	for _, key := range []string{"ps1", "ps2"} {
		if env[key] == "" {
			env[key] = DefaultPrompt
		}
	}
	o.Env = env

	if o.PromptTimeout == 0 {
		o.PromptTimeout = DefaultPromptTimeout
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.MaxBuffer <= 0 {
		o.MaxBuffer = DefaultMaxBuffer
	}
	if o.Logger == nil {
		o.Logger = defaultLogger()
	}
	return o
}

// prompt is the ps1 value the shell prints when ready for input
func (o Options) prompt() string {
	return o.Env["ps1"]
}

// program resolves the shell executable
func (o Options) program() (string, error) {
	if o.Program != "" {
		return o.Program, nil
	}
	if binary := os.Getenv("CORPORAL_BINARY"); binary != "" {
		if _, err := os.Stat(binary); err != nil {
			return "", fmt.Errorf("CORPORAL_BINARY set but not usable: %w", err)
		}
		return filepath.Abs(binary)
	}
	binary, err := exec.LookPath("corporal")
	if err != nil {
		return "", fmt.Errorf("corporal binary not found, set CORPORAL_BINARY or Options.Program: %w", err)
	}
	return binary, nil
}

// arguments builds the shell's command line:
//
//	--env <json> [--commands <path>] [--disabled a,b] [--contexts.<name> a,b]...
//
// Contexts are emitted in name order so the command line is deterministic.
func (o Options) arguments() ([]string, error) {
	env, err := encodeEnv(o.Env)
	if err != nil {
		return nil, err
	}

	args := append([]string{}, o.Args...)
	args = append(args, "--env", env)

	if o.Commands != "" {
		args = append(args, "--commands", o.Commands)
	}
	if len(o.Disabled) > 0 {
		args = append(args, "--disabled", strings.Join(o.Disabled, ","))
	}

	names := make([]string, 0, len(o.Contexts))
	for name := range o.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--contexts."+name, strings.Join(o.Contexts[name], ","))
	}

	return args, nil
}

// pathEscaper escapes every path metacharacter so each key is set verbatim
// as a top-level member
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"#", `\#`,
	"|", `\|`,
	"@", `\@`,
	":", `\:`,
)

// encodeEnv renders env as a flat JSON object with keys in sorted order.
func encodeEnv(env map[string]string) (string, error) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := "{}"
	for _, k := range keys {
		if k == "" {
			return "", fmt.Errorf("env keys must not be empty")
		}
		var err error
		doc, err = sjson.Set(doc, pathEscaper.Replace(k), env[k])
		if err != nil {
			return "", fmt.Errorf("failed to encode env key %q: %w", k, err)
		}
	}
	return doc, nil
}

func defaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if os.Getenv("CORPORAL_TEST_VERBOSE") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}
