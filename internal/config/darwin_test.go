//go:build darwin

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const samplePlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>refreshInterval</key>
	<real>10</real>
	<key>autoRefresh</key>
	<true/>
	<key>killMode</key>
	<string>graceful</string>
</dict>
</plist>`

func TestDecodePlist(t *testing.T) {
	prefs := decodePlist([]byte(samplePlist))

	require.NotNil(t, prefs)
	require.Equal(t, 10.0, prefs.RefreshInterval)
	require.NotNil(t, prefs.AutoRefresh)
	require.True(t, *prefs.AutoRefresh)
	require.Equal(t, "graceful", prefs.KillMode)

	v := newTestViper()
	prefs.apply(v)
	require.Equal(t, 10*time.Second, v.GetDuration("refresh_interval"))
}

func TestDecodePlist_Garbage(t *testing.T) {
	require.Nil(t, decodePlist([]byte("not a plist")))
}
