package harness

import (
	"reflect"
	"testing"
)

func TestAssertions(t *testing.T) {
	out := Output{Stdout: "operation success completed\n", Stderr: "warning: slow\n"}

	tests := []struct {
		name      string
		assertion Assertion
		output    Output
		wantErr   bool
	}{
		{"stdout equals", AssertStdoutEquals("operation success completed\n"), out, false},
		{"stdout differs", AssertStdoutEquals("operation success"), out, true},
		{"stdout contains", AssertStdoutContains("success"), out, false},
		{"stdout missing", AssertStdoutContains("failed"), out, true},
		{"stdout not contains", AssertStdoutNotContains("failed"), out, false},
		{"stdout unexpectedly contains", AssertStdoutNotContains("success"), out, true},
		{"stderr contains", AssertStderrContains("slow"), out, false},
		{"stderr missing", AssertStderrContains("fatal"), out, true},
		{"stderr empty", AssertStderrEmpty(), Output{Stdout: "x"}, false},
		{"stderr not empty", AssertStderrEmpty(), out, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.assertion(tt.output)
			if (err != nil) != tt.wantErr {
				t.Errorf("assertion error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeOptions(t *testing.T) {
	base := Options{
		Program:  "/bin/corporal",
		Env:      map[string]string{"ps1": "$ "},
		Disabled: []string{"clear"},
	}
	overlay := Options{
		Env:      map[string]string{"ps1": "# "},
		Contexts: map[string][]string{"*": {"echo"}},
	}

	got := mergeOptions(base, overlay)
	if got.Program != "/bin/corporal" {
		t.Errorf("Program = %q", got.Program)
	}
	if got.Env["ps1"] != "# " {
		t.Errorf("Env not overridden: %v", got.Env)
	}
	if !reflect.DeepEqual(got.Disabled, []string{"clear"}) {
		t.Errorf("Disabled = %v, want base value", got.Disabled)
	}
	if !reflect.DeepEqual(got.Contexts, overlay.Contexts) {
		t.Errorf("Contexts = %v", got.Contexts)
	}
}

func TestPlay(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping scenario test in short mode")
	}

	scenario := Scenario{
		Name:        "defined command with disabled builtin",
		Description: "Commands from the fixture load and disabled builtins are rejected",
		Options: Options{
			Disabled: []string{"echo"},
		},
		Setup: func(f *Fixture) error {
			return f.DefineCommand("status", Definition{
				Description: "Show status",
				Output:      []string{"all systems go"},
			})
		},
		Steps: []Step{
			{Input: "status", Verify: []Assertion{
				AssertStdoutEquals("all systems go\n"),
				AssertStderrEmpty(),
			}},
			{Input: "echo hi", Verify: []Assertion{
				AssertStderrContains("Invalid command: echo"),
			}},
			{Input: "help"},
		},
		Verify: []Assertion{
			AssertStdoutContains("status"),
			AssertStdoutContains("Show status"),
			AssertStdoutNotContains("echo"),
		},
	}

	if err := Play(t, childOptions("shell"), scenario); err != nil {
		t.Fatalf("Scenario failed: %v", err)
	}
}
