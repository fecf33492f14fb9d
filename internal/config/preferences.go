package config

import (
	"time"

	"github.com/spf13/viper"
)

// appPreferences mirrors the keys the macOS menu bar app stores in its plist.
type appPreferences struct {
	RefreshInterval float64 `plist:"refreshInterval"` // seconds
	AutoRefresh     *bool   `plist:"autoRefresh"`
	KillMode        string  `plist:"killMode"`
}

// apply installs the preferences as viper defaults.
func (p *appPreferences) apply(v *viper.Viper) {
	if p.RefreshInterval > 0 {
		v.SetDefault("refresh_interval", time.Duration(p.RefreshInterval*float64(time.Second)))
	}
	if p.AutoRefresh != nil {
		v.SetDefault("auto_refresh", *p.AutoRefresh)
	}
	if p.KillMode != "" {
		v.SetDefault("kill_mode", p.KillMode)
	}
}
