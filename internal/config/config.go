package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ning0612/dedupwatch/internal/domain"
	"github.com/Ning0612/dedupwatch/internal/logger"
)

// Config represents the complete configuration for dedupwatch
type Config struct {
	// WatchDir is the single directory scanned for files to upload
	WatchDir string `mapstructure:"watch_dir"`

	// Remote configures the deduplicating store
	Remote RemoteConfig `mapstructure:"remote"`

	// Scan configures stability checks and pacing
	Scan ScanConfig `mapstructure:"scan"`

	// Settings holds local bookkeeping paths
	Settings Settings `mapstructure:"settings"`

	// Logging configures log level, format and file rotation
	Logging LoggingConfig `mapstructure:"logging"`
}

// RemoteConfig configures the 123pan account and upload target
type RemoteConfig struct {
	Passport string `mapstructure:"passport"`
	Password string `mapstructure:"password"`

	// TargetID is the destination folder ID; 0 is the drive root
	TargetID int64 `mapstructure:"target_id"`

	BaseURL  string        `mapstructure:"base_url"`
	LoginURL string        `mapstructure:"login_url"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// Overwrite replaces a same-named remote file on collision
	Overwrite bool `mapstructure:"overwrite"`
}

// ScanConfig configures the scan loop
type ScanConfig struct {
	StabilityInterval time.Duration `mapstructure:"stability_interval"`
	StabilityAttempts int           `mapstructure:"stability_attempts"`
	FileDelay         time.Duration `mapstructure:"file_delay"`
	RoundDelay        time.Duration `mapstructure:"round_delay"`
}

// Settings holds paths for the agent's own files
type Settings struct {
	// StateDir holds the round history database
	StateDir string `mapstructure:"state_dir"`

	// PIDFile is the single-instance PID file
	PIDFile string `mapstructure:"pid_file"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures the rotating log file
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns the inert configuration: no credentials (upload
// disabled), drive root as target and the stock pacing.
func Default() *Config {
	return &Config{
		WatchDir: "upload",
		Remote: RemoteConfig{
			TargetID:  0,
			Timeout:   30 * time.Second,
			Overwrite: true,
		},
		Scan: ScanConfig{
			StabilityInterval: 30 * time.Second,
			StabilityAttempts: 1000,
			FileDelay:         10 * time.Second,
			RoundDelay:        60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File: LogFileConfig{
				MaxSizeMB:  10,
				MaxAgeDays: 30,
				MaxBackups: 5,
			},
		},
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.WatchDir == "" {
		return fmt.Errorf("%w: watch_dir cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Remote.TargetID < 0 {
		return fmt.Errorf("%w: remote.target_id cannot be negative: %d", domain.ErrConfigInvalid, c.Remote.TargetID)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("%w: remote.timeout must be positive, got %v", domain.ErrConfigInvalid, c.Remote.Timeout)
	}
	if c.Scan.StabilityInterval < 0 {
		return fmt.Errorf("%w: scan.stability_interval cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Scan.StabilityAttempts < 1 {
		return fmt.Errorf("%w: scan.stability_attempts must be at least 1, got %d", domain.ErrConfigInvalid, c.Scan.StabilityAttempts)
	}
	if c.Scan.FileDelay < 0 {
		return fmt.Errorf("%w: scan.file_delay cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Scan.RoundDelay <= 0 {
		return fmt.Errorf("%w: scan.round_delay must be positive, got %v", domain.ErrConfigInvalid, c.Scan.RoundDelay)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", domain.ErrConfigInvalid, err)
	}
	if _, err := logger.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("%w: logging.format: %v", domain.ErrConfigInvalid, err)
	}
	if c.Logging.File.Enabled && c.Logging.File.Path == "" {
		return fmt.Errorf("%w: logging.file.path required when file logging is enabled", domain.ErrConfigInvalid)
	}
	return nil
}

// UploadEnabled reports whether credentials are configured
func (c *Config) UploadEnabled() bool {
	return c.Remote.Passport != "" && c.Remote.Password != ""
}

// GetStateDir returns the state directory, defaulting to the user config dir
func (c *Config) GetStateDir() string {
	if c.Settings.StateDir != "" {
		return c.Settings.StateDir
	}
	return defaultDataDir()
}

// GetPIDPath returns the PID file path, defaulting to the state directory
func (c *Config) GetPIDPath() string {
	if c.Settings.PIDFile != "" {
		return c.Settings.PIDFile
	}
	return filepath.Join(c.GetStateDir(), "dedupwatch.pid")
}

func defaultDataDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "dedupwatch")
	}
	return filepath.Join(os.TempDir(), "dedupwatch")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	// Expand ~ to home directory
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
