package app

import (
	"strings"

	"github.com/studhelper/studhelper/pkg/logger"
)

// ConfigureLogging initialises the global logger, defaulting to info on stdout only.
func ConfigureLogging(cfg LoggingConfig) error {
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	return logger.Init(logger.Config{
		Level:      level,
		File:       strings.TrimSpace(cfg.File),
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxAgeDays: cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
	})
}
