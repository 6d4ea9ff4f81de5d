//go:build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var (
	cliBinary     string
	cliBinaryOnce sync.Once
	cliBuildErr   error
)

// ensureCLIBinary builds the CLI binary once for all tests.
func ensureCLIBinary(t *testing.T) string {
	t.Helper()
	cliBinaryOnce.Do(func() {
		projectRoot := filepath.Join("..", "..")

		existingBinary := filepath.Join(projectRoot, "bin", "aicore")
		if _, err := os.Stat(existingBinary); err == nil {
			cliBinary = existingBinary
			return
		}

		tmpDir, err := os.MkdirTemp("", "aicore-cli-test")
		if err != nil {
			cliBuildErr = err
			return
		}

		cliBinary = filepath.Join(tmpDir, "aicore")
		cmd := exec.Command("go", "build", "-o", cliBinary, filepath.Join(projectRoot, "cli"))
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			cliBuildErr = err
			return
		}
	})

	if cliBuildErr != nil {
		t.Fatalf("failed to build CLI: %v", cliBuildErr)
	}
	return cliBinary
}

// runCLI executes the CLI with the given arguments.
func runCLI(t *testing.T, env []string, args ...string) (string, string, error) {
	t.Helper()
	ensureCLIBinary(t)

	cmd := exec.Command(cliBinary, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestCLIVersion(t *testing.T) {
	stdout, _, err := runCLI(t, nil, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(stdout, "aicore version") {
		t.Errorf("unexpected version output: %q", stdout)
	}
}

func TestCLIRedact(t *testing.T) {
	stdout, _, err := runCLI(t, nil, "redact", "mail reader@example.com about the hold")
	if err != nil {
		t.Fatalf("redact failed: %v", err)
	}
	if strings.Contains(stdout, "reader@example.com") {
		t.Errorf("email survived redaction: %q", stdout)
	}
	if !strings.Contains(stdout, "[REDACTED_EMAIL]") {
		t.Errorf("expected redaction marker, got %q", stdout)
	}
}

func TestCLIProviders(t *testing.T) {
	stdout, _, err := runCLI(t, []string{"ANTHROPIC_API_KEY=test", "OPENAI_API_KEY="}, "providers")
	if err != nil {
		t.Fatalf("providers failed: %v", err)
	}
	if !strings.Contains(stdout, "anthropic") || !strings.Contains(stdout, "openai") {
		t.Errorf("expected both providers listed: %q", stdout)
	}
}

func TestCLIGenerateDisabledByDefault(t *testing.T) {
	// With no tenant config and no env enable, the pipeline refuses
	// before any provider call.
	_, stderr, err := runCLI(t, []string{"STACKSOS_AI_ENABLED="}, "generate", "--user", "hello")
	if err == nil {
		t.Fatal("expected generate to fail while the feature is disabled")
	}
	if !strings.Contains(stderr, "disabled") {
		t.Errorf("expected a disabled error, got %q", stderr)
	}
}
