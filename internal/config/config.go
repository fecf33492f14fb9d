// Package config loads port-watcher settings from a YAML file, PORTWATCHER_*
// environment variables and, on macOS, the companion app's preferences.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/palomafofana/port-watcher/internal/scanner"
)

// MinRefreshInterval is the shortest accepted auto refresh period.
const MinRefreshInterval = 500 * time.Millisecond

// Config holds CLI and TUI settings.
type Config struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	AutoRefresh     bool          `mapstructure:"auto_refresh"`
	KillMode        string        `mapstructure:"kill_mode"` // "force" (default) or "graceful"
	Debug           bool          `mapstructure:"debug"`
	LogFile         string        `mapstructure:"log_file"`

	// Source is the file the settings were read from, empty for defaults.
	Source string `mapstructure:"-"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	return Config{
		RefreshInterval: 5 * time.Second,
		AutoRefresh:     false,
		KillMode:        scanner.ModeForce.String(),
	}
}

// LogPath returns the debug log file: log_file when set, otherwise
// port-watcher.log in the temp directory.
func (c Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(os.TempDir(), "port-watcher.log")
}

// Validate checks the interval and kill mode.
func (c Config) Validate() error {
	var errs []error
	if c.RefreshInterval < MinRefreshInterval {
		errs = append(errs, fmt.Errorf("refresh_interval %s is below the minimum of %s",
			c.RefreshInterval, MinRefreshInterval))
	}
	if _, err := scanner.ParseKillMode(c.KillMode); err != nil {
		errs = append(errs, fmt.Errorf("kill_mode: %w", err))
	}
	return errors.Join(errs...)
}

// Mode returns the configured default kill mode, force if it is unset or invalid.
func (c Config) Mode() scanner.KillMode {
	mode, _ := scanner.ParseKillMode(c.KillMode)
	return mode
}
