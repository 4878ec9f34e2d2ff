package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// Scenario represents a complete E2E test scenario
type Scenario struct {
	Name        string
	Description string
	// Options layered over the base options given to Play. Env, Commands,
	// Disabled and Contexts are taken from here when set.
	Options Options
	Setup   func(*Fixture) error
	Steps   []Step
	// Verify runs against the output of the last step
	Verify []Assertion
}

// Step is one line of input and the checks on its output
type Step struct {
	Input  string
	Verify []Assertion
}

// Assertion is a function that validates command output
type Assertion func(Output) error

// Common assertion builders

// AssertStdoutEquals verifies stdout matches exactly
func AssertStdoutEquals(expected string) Assertion {
	return func(o Output) error {
		if o.Stdout != expected {
			return fmt.Errorf("stdout: expected %q, got %q", expected, o.Stdout)
		}
		return nil
	}
}

// AssertStdoutContains verifies stdout contains the expected string
func AssertStdoutContains(expected string) Assertion {
	return func(o Output) error {
		if !strings.Contains(o.Stdout, expected) {
			return fmt.Errorf("stdout does not contain %q\nGot: %s", expected, o.Stdout)
		}
		return nil
	}
}

// AssertStdoutNotContains verifies stdout does not contain the string
func AssertStdoutNotContains(unexpected string) Assertion {
	return func(o Output) error {
		if strings.Contains(o.Stdout, unexpected) {
			return fmt.Errorf("stdout unexpectedly contains %q\nGot: %s", unexpected, o.Stdout)
		}
		return nil
	}
}

// AssertStderrContains verifies stderr contains the expected string
func AssertStderrContains(expected string) Assertion {
	return func(o Output) error {
		if !strings.Contains(o.Stderr, expected) {
			return fmt.Errorf("stderr does not contain %q\nGot: %s", expected, o.Stderr)
		}
		return nil
	}
}

// AssertStderrEmpty verifies nothing was written to stderr
func AssertStderrEmpty() Assertion {
	return func(o Output) error {
		if o.Stderr != "" {
			return fmt.Errorf("stderr: expected empty, got %q", o.Stderr)
		}
		return nil
	}
}

// Play runs a scenario against a fresh shell and reports progress through
// t. base supplies the program and process settings.
func Play(t testing.TB, base Options, scenario Scenario) error {
	t.Helper()

	t.Logf("Running scenario: %s", scenario.Name)
	if scenario.Description != "" {
		t.Logf("  Description: %s", scenario.Description)
	}

	fixture, err := NewFixture(t)
	if err != nil {
		return fmt.Errorf("failed to create fixture: %w", err)
	}

	if scenario.Setup != nil {
		t.Logf("  Running setup...")
		if err := scenario.Setup(fixture); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
	}

	opts := mergeOptions(base, scenario.Options)
	if opts.Commands == "" && fixture.HasCommands() {
		opts.Commands = fixture.CommandsDir
	}

	runner := New(opts)
	defer runner.Close()

	ctx := context.Background()
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}

	var last Output
	for i, step := range scenario.Steps {
		t.Logf("  Step %d: %s", i+1, step.Input)

		out, err := runner.Exec(ctx, step.Input)
		if err != nil {
			return fmt.Errorf("step %d failed: %w", i+1, err)
		}
		if out.Stdout != "" {
			t.Logf("    Stdout: %s", out.Stdout)
		}
		if out.Stderr != "" {
			t.Logf("    Stderr: %s", out.Stderr)
		}

		for j, assertion := range step.Verify {
			if err := assertion(out); err != nil {
				return fmt.Errorf("step %d assertion %d failed: %w", i+1, j+1, err)
			}
		}
		last = out
	}

	if len(scenario.Verify) > 0 {
		t.Logf("  Running %d assertions...", len(scenario.Verify))
		for i, assertion := range scenario.Verify {
			if err := assertion(last); err != nil {
				return fmt.Errorf("assertion %d failed: %w", i+1, err)
			}
			t.Logf("    Assertion %d: ✓", i+1)
		}
	}

	t.Logf("  ✓ Scenario passed: %s", scenario.Name)
	return nil
}

func mergeOptions(base, overlay Options) Options {
	merged := base
	if overlay.Env != nil {
		merged.Env = overlay.Env
	}
	if overlay.Commands != "" {
		merged.Commands = overlay.Commands
	}
	if overlay.Disabled != nil {
		merged.Disabled = overlay.Disabled
	}
	if overlay.Contexts != nil {
		merged.Contexts = overlay.Contexts
	}
	return merged
}
