package scenarios

import (
	"os"
	"testing"
	"time"

	"github.com/corporal-cli/corporal/e2e/harness"
	"github.com/corporal-cli/corporal/internal/shell"
)

// childEnv makes the test binary act as the shell instead of running tests
const childEnv = "CORPORAL_SCENARIO_CHILD"

// runChildShell turns the process into the shell when started by baseOptions.
// It returns only when the process is a normal test run.
func runChildShell() {
	if os.Getenv(childEnv) == "1" {
		os.Exit(shell.Main(os.Args[1:]))
	}
}

// baseOptions returns the options every scenario starts from.
// CORPORAL_BINARY selects a prebuilt shell; otherwise this test binary
// re-executes itself as the shell.
func baseOptions(t *testing.T) harness.Options {
	t.Helper()

	opts := harness.Options{PromptTimeout: promptTimeout()}
	if binary := os.Getenv("CORPORAL_BINARY"); binary != "" {
		t.Logf("CORPORAL_BINARY=%s", binary)
		return opts
	}

	opts.Program = os.Args[0]
	opts.Environ = append(os.Environ(), childEnv+"=1")
	return opts
}

// promptTimeout is longer in CI due to race detector and slower environments
func promptTimeout() time.Duration {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return 20 * time.Second
	}
	return 10 * time.Second
}

func play(t *testing.T, scenario harness.Scenario) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}
	if err := harness.Play(t, baseOptions(t), scenario); err != nil {
		t.Fatalf("Scenario failed: %v", err)
	}
}
