//go:build darwin

package config

import (
	"os"
	"path/filepath"

	"howett.net/plist"
)

const plistPath = "Library/Preferences/com.portwatcher.app.plist"

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

// loadFromPlist reads the menu bar app's preferences, if it is installed.
func loadFromPlist() *appPreferences {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(home, plistPath))
	if err != nil {
		return nil
	}

	return decodePlist(data)
}

func decodePlist(data []byte) *appPreferences {
	var prefs appPreferences
	if _, err := plist.Unmarshal(data, &prefs); err != nil {
		return nil
	}
	return &prefs
}
