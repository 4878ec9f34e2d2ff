package shell

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func newTestSession(t *testing.T, cfg Config) (*Session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cfg.Stdout = &stdout
	cfg.Stderr = &stderr
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, &stdout, &stderr
}

func TestSessionRun(t *testing.T) {
	tests := []struct {
		name       string
		env        Env
		input      string
		wantStdout string
		wantStderr string
	}{
		{
			name:       "echo then quit",
			input:      "echo hello\nquit\n",
			wantStdout: "> hello\n> ",
		},
		{
			name:       "end of input",
			input:      "echo one\n",
			wantStdout: "> one\n> ",
		},
		{
			name:       "last line without newline",
			input:      "echo tail",
			wantStdout: "> tail\n> ",
		},
		{
			name:       "custom prompts and continuation",
			env:        Env{"ps1": "$ ", "ps2": "... "},
			input:      "echo a \\\nb\nexit\n",
			wantStdout: "$ ... a b\n$ ",
		},
		{
			name:       "invalid command",
			input:      "nope\n",
			wantStdout: "> > ",
			wantStderr: "Invalid command: nope\n",
		},
		{
			name:       "blank line",
			input:      "\n   \n",
			wantStdout: "> > > ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tt.env
			if env == nil {
				env = Env{"ps1": DefaultPrompt, "ps2": DefaultPrompt}
			}
			s, stdout, stderr := newTestSession(t, Config{Env: env})

			if err := s.Run(NewBufferedReader(strings.NewReader(tt.input), stdout)); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if stdout.String() != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantStdout)
			}
			if stderr.String() != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestSessionDisabled(t *testing.T) {
	s, stdout, stderr := newTestSession(t, Config{Disabled: []string{"echo"}})

	s.Exec("echo hi")
	if stdout.Len() != 0 {
		t.Errorf("disabled command wrote stdout: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Invalid command: echo") {
		t.Errorf("stderr = %q, want invalid command", stderr.String())
	}

	stdout.Reset()
	s.Exec("help")
	if strings.Contains(stdout.String(), "echo") {
		t.Errorf("help lists disabled command:\n%s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "clear") {
		t.Errorf("help does not list clear:\n%s", stdout.String())
	}
}

func TestSessionContexts(t *testing.T) {
	s, stdout, stderr := newTestSession(t, Config{
		Contexts: map[string][]string{
			AnyContext: {"echo"},
			"admin":    {"env"},
		},
	})

	if !s.Available("echo") {
		t.Error("echo should be available in every context")
	}
	if s.Available("env") {
		t.Error("env should not be available in the default context")
	}
	if s.Available("clear") {
		t.Error("clear is not listed in any context")
	}

	s.Exec("context admin")
	if stderr.Len() != 0 {
		t.Fatalf("context switch failed: %q", stderr.String())
	}
	if s.Context() != "admin" {
		t.Errorf("Context() = %q, want admin", s.Context())
	}
	if !s.Available("env") {
		t.Error("env should be available in the admin context")
	}

	s.Exec("context")
	if got := strings.TrimSpace(stdout.String()); got != "admin" {
		t.Errorf("context output = %q, want admin", got)
	}

	s.Exec("context missing")
	if !strings.Contains(stderr.String(), "Error: unknown context: missing") {
		t.Errorf("stderr = %q, want unknown context error", stderr.String())
	}
	if s.Context() != "admin" {
		t.Errorf("failed switch changed context to %q", s.Context())
	}

	if err := s.SetContext(DefaultContext); err != nil {
		t.Errorf("switching back to default failed: %v", err)
	}
}

func TestSessionEnv(t *testing.T) {
	s, stdout, _ := newTestSession(t, Config{Env: Env{"ps1": "> ", "ps2": "> ", "name": "corporal"}})

	s.Exec("env name")
	if got := stdout.String(); got != "corporal\n" {
		t.Errorf("env name = %q, want %q", got, "corporal\n")
	}

	stdout.Reset()
	s.Exec(`env greeting "hello there"`)
	s.Exec("env greeting")
	if got := stdout.String(); got != "hello there\n" {
		t.Errorf("env greeting = %q, want %q", got, "hello there\n")
	}
	if s.Env("greeting") != "hello there" {
		t.Errorf("Env(greeting) = %q", s.Env("greeting"))
	}

	stdout.Reset()
	s.Exec("env")
	want := "greeting=\"hello there\"\nname=\"corporal\"\nps1=\"> \"\nps2=\"> \"\n"
	if stdout.String() != want {
		t.Errorf("env listing = %q, want %q", stdout.String(), want)
	}
}

func TestSessionComplete(t *testing.T) {
	s, _, _ := newTestSession(t, Config{Disabled: []string{"exit"}})

	got := s.Complete("e")
	want := []string{"echo", "env"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Complete(e) = %v, want %v", got, want)
	}
}

func TestNewSessionRejectsBuiltinOverride(t *testing.T) {
	_, err := NewSession(Config{Commands: []*Command{{
		Name: "help",
		Run:  func(*Session, []string) error { return nil },
	}}})
	if err == nil {
		t.Fatal("expected error when redefining a builtin")
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "plain words", input: "echo  a b", want: []string{"echo", "a", "b"}},
		{name: "double quotes", input: `echo "a b" c`, want: []string{"echo", "a b", "c"}},
		{name: "single quotes keep backslash", input: `echo 'a\b'`, want: []string{"echo", `a\b`}},
		{name: "escaped space", input: `echo a\ b`, want: []string{"echo", "a b"}},
		{name: "empty quoted word", input: `echo ""`, want: []string{"echo", ""}},
		{name: "unterminated quote", input: `echo "a`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitLine(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitLine() = %q, want %q", got, tt.want)
			}
		})
	}
}
