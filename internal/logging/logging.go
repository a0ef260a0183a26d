// Package logging configures the process-wide charmbracelet logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

type Config struct {
	Level      string
	TimeFormat string
	ShowCaller bool
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		TimeFormat: "15:04:05",
	}
}

// Init points the default logger at w (stderr if nil) with the given options.
func Init(cfg Config, w io.Writer) error {
	if w == nil {
		w = os.Stderr
	}

	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = DefaultConfig().TimeFormat
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		ReportCaller:    cfg.ShowCaller,
		Level:           level,
		Prefix:          "hyprscribe",
	})
	log.SetDefault(logger)
	return nil
}
