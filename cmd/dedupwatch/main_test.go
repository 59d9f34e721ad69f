package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ning0612/dedupwatch/internal/config"
	"github.com/Ning0612/dedupwatch/internal/logger"
	"github.com/Ning0612/dedupwatch/internal/testutil"
)

type cliTestEnv struct {
	configPath string
	watchDir   string
	stateDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("ENV_123_PASSPORT", "")
	t.Setenv("ENV_123_PASSWORD", "")

	base := t.TempDir()
	env := &cliTestEnv{
		configPath: filepath.Join(base, "config.yaml"),
		watchDir:   filepath.Join(base, "upload"),
		stateDir:   filepath.Join(base, "state"),
	}

	content := fmt.Sprintf(`watch_dir: %q
settings:
  state_dir: %q
scan:
  stability_interval: 0s
  stability_attempts: 1
  file_delay: 0s
  round_delay: 50ms
logging:
  level: error
`, env.watchDir, env.stateDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, ctx context.Context, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	cmd.SetContext(ctx)
	err := cmd.ExecuteContext(ctx)
	_ = logger.Shutdown()
	return stdout.String(), stderr.String(), err
}

func TestHashCommand(t *testing.T) {
	dir := t.TempDir()
	path := testutil.CreateTestFile(t, dir, "hello.txt", []byte("hello world"))

	stdout, _, err := runCLI(t, context.Background(), []string{"hash", path}, "")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(stdout, "5eb63bbbe01eeed093cb22bb8f5acdc3  ") {
		t.Errorf("hash output = %q", stdout)
	}
}

func TestHashCommand_SHA256(t *testing.T) {
	path := testutil.CreateTestFile(t, t.TempDir(), "hello.txt", []byte("hello world"))

	stdout, _, err := runCLI(t, context.Background(), []string{"hash", "--algo", "sha256", path}, "")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(stdout, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9  ") {
		t.Errorf("hash output = %q", stdout)
	}
}

func TestHashCommand_MissingFile(t *testing.T) {
	dir := t.TempDir()
	good := testutil.CreateTestFile(t, dir, "a.txt", []byte("a"))

	stdout, stderr, err := runCLI(t, context.Background(), []string{"hash", good, filepath.Join(dir, "missing")}, "")
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
	if !strings.Contains(stdout, "a.txt") {
		t.Errorf("good file not printed: %q", stdout)
	}
	if !strings.Contains(stderr, "missing") {
		t.Errorf("missing file not reported: %q", stderr)
	}
}

func TestOnceAndStatusCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	path := testutil.CreateTestFile(t, env.watchDir, "clip.mp4", []byte("bytes"))

	stdout, _, err := runCLI(t, context.Background(), []string{"once"}, env.configPath)
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	if !strings.Contains(stdout, "1 file(s)") || !strings.Contains(stdout, "1 failed") {
		t.Errorf("once output = %q", stdout)
	}
	if !testutil.FileExists(path) {
		t.Error("file removed with uploads disabled")
	}

	stdout, _, err = runCLI(t, context.Background(), []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"not running", "disabled (no credentials)", "1 round(s)", "partial"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("status output missing %q:\n%s", want, stdout)
		}
	}
}

func TestStopCommand_NotRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, context.Background(), []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(stdout, "not running") {
		t.Errorf("stop output = %q", stdout)
	}
}

func TestRunCommand_ExitsCleanlyOnCancel(t *testing.T) {
	env := setupCLITestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLI(t, ctx, []string{"run"}, env.configPath)
		done <- err
	}()

	pidPath := filepath.Join(env.stateDir, "dedupwatch.pid")
	testutil.AssertEventually(t, 2*time.Second, func() bool { return testutil.FileExists(pidPath) }, "pid file")
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v, want nil on cancellation", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not exit after cancellation")
	}

	if testutil.FileExists(pidPath) {
		t.Error("pid file left behind")
	}
}

func TestUploadState(t *testing.T) {
	if got := uploadState(false, 5); got != "disabled (no credentials)" {
		t.Errorf("uploadState(false) = %q", got)
	}
	if got := uploadState(true, 5); got != "enabled, folder 5" {
		t.Errorf("uploadState(true) = %q", got)
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.Passport = "13812345678"
	cfg.Remote.Password = "pan-password"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	cfg.Logging.File.Enabled = true
	cfg.Logging.File.Path = "/var/log/dedupwatch.log"

	lc := loggerConfig(cfg)
	if lc.Level != logger.LevelDebug || lc.Format != logger.FormatJSON {
		t.Errorf("level/format = %v/%v", lc.Level, lc.Format)
	}
	if len(lc.Outputs) != 2 || lc.Outputs[1].Type != logger.OutputFile {
		t.Errorf("outputs = %+v, want stderr and file", lc.Outputs)
	}
	if len(lc.Secrets) != 2 || lc.Secrets[0] != "13812345678" || lc.Secrets[1] != "pan-password" {
		t.Errorf("secrets = %v", lc.Secrets)
	}
}
