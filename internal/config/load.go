package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/palomafofana/port-watcher/internal/log"
)

const (
	appName       = "port-watcher"
	localFile     = ".port-watcher.yaml"
	envPrefix     = "PORTWATCHER"
	configName    = "config"
	configTypeExt = "yaml"
)

// Load reads settings. If path is empty it looks for ./.port-watcher.yaml and
// then <config dir>/port-watcher/config.yaml; a missing file is not an error.
// Environment variables such as PORTWATCHER_KILL_MODE override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Defaults()
	v.SetDefault("refresh_interval", defaults.RefreshInterval)
	v.SetDefault("auto_refresh", defaults.AutoRefresh)
	v.SetDefault("kill_mode", defaults.KillMode)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("log_file", defaults.LogFile)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case path != "":
		v.SetConfigFile(path)
	case fileExists(localFile):
		v.SetConfigFile(localFile)
	default:
		v.AddConfigPath(configDir())
		v.SetConfigName(configName)
		v.SetConfigType(configTypeExt)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No file anywhere: the companion app's preferences, if any, become
		// the defaults so env vars still take precedence.
		if prefs := loadFromPlist(); prefs != nil {
			log.Debug(log.CatConfig, "using app preferences")
			prefs.apply(v)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	if cfg.Source != "" && !fileExists(cfg.Source) {
		cfg.Source = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.Debug(log.CatConfig, "config loaded", "source", cfg.Source,
		"interval", cfg.RefreshInterval, "kill_mode", cfg.KillMode)
	return &cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
