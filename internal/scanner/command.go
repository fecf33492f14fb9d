package scanner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedPlatform is returned for an OS family with no known commands.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrInvalidPID is returned for a pid that is not a positive integer.
	ErrInvalidPID = errors.New("invalid pid")
	// ErrUnknownKillMode is returned when a kill mode name is not recognized.
	ErrUnknownKillMode = errors.New("unknown kill mode")
)

// Platform is an OS family with its own set of commands.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformUnix             // darwin and linux
	PlatformWindows
)

func (p Platform) String() string {
	switch p {
	case PlatformUnix:
		return "unix"
	case PlatformWindows:
		return "windows"
	default:
		return "unknown"
	}
}

// DetectPlatform maps a GOOS value to its OS family.
func DetectPlatform(goos string) (Platform, error) {
	switch goos {
	case "darwin", "linux":
		return PlatformUnix, nil
	case "windows":
		return PlatformWindows, nil
	default:
		return PlatformUnknown, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// KillMode selects how hard a process is asked to exit.
// The zero value is ModeForce.
type KillMode int

const (
	ModeForce    KillMode = iota // SIGKILL, taskkill /F
	ModeGraceful                 // SIGTERM, taskkill
)

func (m KillMode) String() string {
	if m == ModeGraceful {
		return "graceful"
	}
	return "force"
}

// ParseKillMode parses "force" or "graceful". An empty string is ModeForce.
func ParseKillMode(s string) (KillMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "force":
		return ModeForce, nil
	case "graceful":
		return ModeGraceful, nil
	default:
		return ModeForce, fmt.Errorf("%w: %q", ErrUnknownKillMode, s)
	}
}

// ListCommand returns the shell pipeline that lists listening sockets.
func ListCommand(p Platform) (string, error) {
	switch p {
	case PlatformUnix:
		return "lsof -i -P -n | grep LISTEN", nil
	case PlatformWindows:
		return "netstat -ano | findstr LISTENING", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
}

// KillCommand returns the shell command that terminates pid.
func KillCommand(p Platform, pid int, mode KillMode) (string, error) {
	if pid < 1 {
		return "", fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}

	switch p {
	case PlatformUnix:
		if mode == ModeGraceful {
			return fmt.Sprintf("kill -15 %d", pid), nil
		}
		return fmt.Sprintf("kill -9 %d", pid), nil
	case PlatformWindows:
		if mode == ModeGraceful {
			return fmt.Sprintf("taskkill /PID %d", pid), nil
		}
		return fmt.Sprintf("taskkill /F /PID %d", pid), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
}
