package main

import (
	"errors"
	"strings"
	"sync"

	"github.com/Ning0612/dedupwatch/internal/config"
	"github.com/Ning0612/dedupwatch/internal/domain"
	"github.com/Ning0612/dedupwatch/internal/logger"
)

type commandContext struct {
	configFlag *string

	initOnce sync.Once
	config   *config.Config
	initErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// init loads configuration and starts the logger. A broken config is
// logged and replaced by inert defaults; only a logger failure is fatal.
func (c *commandContext) init() error {
	c.initOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		cfg, loadErr := config.Load(path)
		c.config = cfg

		if err := logger.Init(loggerConfig(cfg)); err != nil {
			c.initErr = err
			return
		}

		if loadErr != nil {
			log := logger.With("component", "config")
			if errors.Is(loadErr, domain.ErrConfigNotFound) {
				log.Warn("config file not found, using defaults", "error", loadErr)
			} else {
				log.Error("invalid configuration, using inert defaults", "error", loadErr)
			}
		}
	})
	return c.initErr
}

// loggerConfig maps validated settings onto the logger; Load has already
// rejected unknown levels and formats
func loggerConfig(cfg *config.Config) logger.Config {
	level, _ := logger.ParseLevel(cfg.Logging.Level)
	format, _ := logger.ParseFormat(cfg.Logging.Format)
	lc := logger.Config{
		Level:   level,
		Format:  format,
		Outputs: []logger.OutputConfig{{Type: logger.OutputStderr}},
		File: logger.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
			MaxBackups: cfg.Logging.File.MaxBackups,
			Compress:   cfg.Logging.File.Compress,
		},
		Secrets: []string{cfg.Remote.Passport, cfg.Remote.Password},
	}
	if cfg.Logging.File.Enabled {
		lc.Outputs = append(lc.Outputs, logger.OutputConfig{Type: logger.OutputFile})
	}
	return lc
}
