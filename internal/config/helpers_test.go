package config

import "github.com/spf13/viper"

func newTestViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("refresh_interval", Defaults().RefreshInterval)
	v.SetDefault("auto_refresh", false)
	v.SetDefault("kill_mode", "force")
	return v
}
