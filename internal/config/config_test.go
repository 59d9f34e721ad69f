package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ning0612/dedupwatch/internal/domain"
)

// clearEnv unsets every variable that could override the loaded file
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvPassport, EnvPassword, EnvTargetID,
		"DEDUPWATCH_REMOTE_PASSPORT", "DEDUPWATCH_REMOTE_PASSWORD", "DEDUPWATCH_REMOTE_TARGET_ID",
		"DEDUPWATCH_WATCH_DIR", "DEDUPWATCH_SCAN_ROUND_DELAY",
	} {
		if _, ok := os.LookupEnv(name); ok {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.UploadEnabled() {
		t.Error("default config must not enable upload")
	}
	if cfg.Remote.TargetID != 0 {
		t.Errorf("TargetID = %d, want 0", cfg.Remote.TargetID)
	}
	if cfg.Scan.StabilityInterval != 30*time.Second || cfg.Scan.StabilityAttempts != 1000 {
		t.Errorf("unexpected stability defaults: %+v", cfg.Scan)
	}
	if cfg.Scan.FileDelay != 10*time.Second || cfg.Scan.RoundDelay != 60*time.Second {
		t.Errorf("unexpected pacing defaults: %+v", cfg.Scan)
	}
	if !cfg.Remote.Overwrite {
		t.Error("overwrite should default to true")
	}
}

func TestLoadFromString(t *testing.T) {
	clearEnv(t)

	yaml := `
watch_dir: /srv/incoming
remote:
  passport: "13800000000"
  password: secret
  target_id: 4242
  timeout: 5s
  overwrite: false
scan:
  stability_interval: 2s
  stability_attempts: 3
  file_delay: 0s
  round_delay: 15s
`
	cfg, err := LoadFromString(yaml)
	if err != nil {
		t.Fatalf("LoadFromString failed: %v", err)
	}

	if cfg.WatchDir != "/srv/incoming" {
		t.Errorf("WatchDir = %q", cfg.WatchDir)
	}
	if !cfg.UploadEnabled() {
		t.Error("credentials should enable upload")
	}
	if cfg.Remote.TargetID != 4242 {
		t.Errorf("TargetID = %d, want 4242", cfg.Remote.TargetID)
	}
	if cfg.Remote.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Remote.Overwrite {
		t.Error("overwrite should be false")
	}
	if cfg.Scan.StabilityAttempts != 3 || cfg.Scan.RoundDelay != 15*time.Second {
		t.Errorf("unexpected scan config: %+v", cfg.Scan)
	}
	// Unset keys keep their defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFromString_LegacyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPassport, "user@example.com")
	t.Setenv(EnvPassword, "hunter2")
	t.Setenv(EnvTargetID, "987")

	cfg, err := LoadFromString("watch_dir: /data\n")
	if err != nil {
		t.Fatalf("LoadFromString failed: %v", err)
	}

	if cfg.Remote.Passport != "user@example.com" || cfg.Remote.Password != "hunter2" {
		t.Errorf("legacy credentials not applied: %+v", cfg.Remote)
	}
	if cfg.Remote.TargetID != 987 {
		t.Errorf("TargetID = %d, want 987", cfg.Remote.TargetID)
	}
}

func TestLoadFromString_PrefixedEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTargetID, "1")
	t.Setenv("DEDUPWATCH_REMOTE_TARGET_ID", "2")
	t.Setenv("DEDUPWATCH_SCAN_ROUND_DELAY", "90s")

	cfg, err := LoadFromString("watch_dir: /data\n")
	if err != nil {
		t.Fatalf("LoadFromString failed: %v", err)
	}

	if cfg.Remote.TargetID != 2 {
		t.Errorf("TargetID = %d, want 2", cfg.Remote.TargetID)
	}
	if cfg.Scan.RoundDelay != 90*time.Second {
		t.Errorf("RoundDelay = %v, want 90s", cfg.Scan.RoundDelay)
	}
}

func TestLoadFromString_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{
			name: "non-numeric target id",
			yaml: "remote:\n  passport: a\n  password: b\n",
			env:  map[string]string{EnvTargetID: "not-a-number"},
		},
		{
			name: "negative target id",
			yaml: "remote:\n  passport: a\n  password: b\n  target_id: -5\n",
		},
		{
			name: "zero attempts",
			yaml: "remote:\n  passport: a\n  password: b\nscan:\n  stability_attempts: 0\n",
		},
		{
			name: "unknown log level",
			yaml: "remote:\n  passport: a\n  password: b\nlogging:\n  level: verbose\n",
		},
		{
			name: "malformed yaml",
			yaml: "remote: [unterminated\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadFromString(tt.yaml)
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
			if cfg == nil {
				t.Fatal("fallback config must not be nil")
			}
			if cfg.UploadEnabled() {
				t.Error("fallback config must have empty credentials")
			}
			if cfg.Remote.TargetID != 0 {
				t.Errorf("fallback TargetID = %d, want 0", cfg.Remote.TargetID)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "watch_dir: " + filepath.Join(dir, "in") + "\nscan:\n  file_delay: 1s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WatchDir != filepath.Join(dir, "in") {
		t.Errorf("WatchDir = %q", cfg.WatchDir)
	}
	if cfg.Scan.FileDelay != time.Second {
		t.Errorf("FileDelay = %v, want 1s", cfg.Scan.FileDelay)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
	if cfg == nil || cfg.UploadEnabled() {
		t.Error("missing file should yield the inert default config")
	}
}

func TestGetPIDPath(t *testing.T) {
	cfg := Default()
	cfg.Settings.StateDir = "/var/lib/dedupwatch"

	if got := cfg.GetPIDPath(); got != filepath.Join("/var/lib/dedupwatch", "dedupwatch.pid") {
		t.Errorf("GetPIDPath() = %q", got)
	}

	cfg.Settings.PIDFile = "/run/dw.pid"
	if got := cfg.GetPIDPath(); got != "/run/dw.pid" {
		t.Errorf("GetPIDPath() = %q, want /run/dw.pid", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("DW_TEST_DIR", "/opt/x")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/upload", filepath.Join(home, "upload")},
		{"$DW_TEST_DIR/in", "/opt/x/in"},
		{"/a/b/../c", "/a/c"},
	}

	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
