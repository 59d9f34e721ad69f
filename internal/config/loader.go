package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ning0612/dedupwatch/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. DEDUPWATCH_WATCH_DIR
const EnvPrefix = "DEDUPWATCH"

// Legacy environment variables that still configure the remote account
const (
	EnvPassport = "ENV_123_PASSPORT"
	EnvPassword = "ENV_123_PASSWORD"
	EnvTargetID = "ENV_123_UPLOAD_PID"
)

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
		"./configs",
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "dedupwatch"))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "dedupwatch"))
		paths = append(paths, filepath.Join(homeDir, ".dedupwatch"))
	}

	return paths
}

// Load reads configuration from path, or from config.yaml in the default
// locations when path is empty, then applies environment overrides.
//
// A missing default config file is not an error. On any other failure the
// inert Default() configuration is returned together with an error wrapping
// domain.ErrConfigNotFound or domain.ErrConfigInvalid, so callers can log
// and keep running.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// Defaults and environment only
		case path != "" && errors.Is(err, os.ErrNotExist):
			return Default(), fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		default:
			return Default(), fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}

	return decode(v)
}

// LoadFromString parses configuration from a YAML string, then applies
// environment overrides. Failures behave as in Load.
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return Default(), fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

// newViper registers defaults (so AutomaticEnv sees every key) and env bindings
func newViper() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault("watch_dir", d.WatchDir)
	v.SetDefault("remote.passport", d.Remote.Passport)
	v.SetDefault("remote.password", d.Remote.Password)
	v.SetDefault("remote.target_id", d.Remote.TargetID)
	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.login_url", d.Remote.LoginURL)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("remote.overwrite", d.Remote.Overwrite)
	v.SetDefault("scan.stability_interval", d.Scan.StabilityInterval)
	v.SetDefault("scan.stability_attempts", d.Scan.StabilityAttempts)
	v.SetDefault("scan.file_delay", d.Scan.FileDelay)
	v.SetDefault("scan.round_delay", d.Scan.RoundDelay)
	v.SetDefault("settings.state_dir", d.Settings.StateDir)
	v.SetDefault("settings.pid_file", d.Settings.PIDFile)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file.enabled", d.Logging.File.Enabled)
	v.SetDefault("logging.file.path", d.Logging.File.Path)
	v.SetDefault("logging.file.max_size_mb", d.Logging.File.MaxSizeMB)
	v.SetDefault("logging.file.max_age_days", d.Logging.File.MaxAgeDays)
	v.SetDefault("logging.file.max_backups", d.Logging.File.MaxBackups)
	v.SetDefault("logging.file.compress", d.Logging.File.Compress)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings take precedence over AutomaticEnv; the prefixed name wins over the legacy one
	_ = v.BindEnv("remote.passport", EnvPrefix+"_REMOTE_PASSPORT", EnvPassport)
	_ = v.BindEnv("remote.password", EnvPrefix+"_REMOTE_PASSWORD", EnvPassword)
	_ = v.BindEnv("remote.target_id", EnvPrefix+"_REMOTE_TARGET_ID", EnvTargetID)

	return v
}

// decode unmarshals and validates, degrading to Default() on failure
func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return Default(), fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	cfg.WatchDir = ExpandPath(cfg.WatchDir)
	cfg.Settings.StateDir = ExpandPath(cfg.Settings.StateDir)
	cfg.Settings.PIDFile = ExpandPath(cfg.Settings.PIDFile)
	cfg.Logging.File.Path = ExpandPath(cfg.Logging.File.Path)

	if err := cfg.Validate(); err != nil {
		return Default(), err
	}

	return cfg, nil
}
