package scanner

import (
	"context"
	"errors"
	"runtime"

	"github.com/palomafofana/port-watcher/internal/log"
)

// Port represents one listening socket and the process that owns it.
type Port struct {
	Port     int    `json:"port"`
	PID      int    `json:"pid"`
	Process  string `json:"process"`
	Protocol string `json:"protocol"`
}

// Scanner lists listening ports and terminates processes on the host.
// Neither operation returns an error; failures are logged and reported as an
// empty list or false.
type Scanner struct {
	platform    Platform
	platformErr error
	goos        string
	runner      CommandRunner
}

// New returns a Scanner for the running OS that executes commands through a shell.
func New() *Scanner {
	return NewWithRunner(runtime.GOOS, NewShellRunner())
}

// NewWithRunner returns a Scanner for the given GOOS value that executes
// commands with runner. The platform is resolved once, here.
func NewWithRunner(goos string, runner CommandRunner) *Scanner {
	platform, err := DetectPlatform(goos)
	return &Scanner{
		platform:    platform,
		platformErr: err,
		goos:        goos,
		runner:      runner,
	}
}

// Platform returns the detected OS family.
func (s *Scanner) Platform() Platform {
	return s.platform
}

// ActivePorts returns every listening socket in scan order. Duplicate PIDs are
// kept, one record per socket.
func (s *Scanner) ActivePorts(ctx context.Context) []Port {
	if s.platformErr != nil {
		log.ErrorErr(log.CatScan, "cannot list ports", s.platformErr, "goos", s.goos)
		return []Port{}
	}

	command, err := ListCommand(s.platform)
	if err != nil {
		log.ErrorErr(log.CatScan, "cannot list ports", err, "goos", s.goos)
		return []Port{}
	}

	stdout, err := s.runner.Run(ctx, command)
	if err != nil {
		// The LISTEN filter exits 1 when nothing matched. It does the same when
		// the list tool itself is missing, which leaves output on stderr.
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 && cmdErr.Stderr == "" && stdout == "" {
			log.Debug(log.CatScan, "no listening sockets", "command", command)
			return []Port{}
		}
		log.ErrorErr(log.CatScan, "listing ports failed", err, "command", command)
		return []Port{}
	}

	var ports []Port
	switch s.platform {
	case PlatformWindows:
		ports = ParseWindows(stdout)
	default:
		ports = ParseUnix(stdout)
	}
	if ports == nil {
		ports = []Port{}
	}

	log.Debug(log.CatScan, "scan complete", "platform", s.platform, "ports", len(ports))
	return ports
}

// Kill terminates pid with the signal or command that mode selects. It reports
// whether the command completed without error. ModeForce is the zero value.
func (s *Scanner) Kill(ctx context.Context, pid int, mode KillMode) bool {
	if s.platformErr != nil {
		log.ErrorErr(log.CatKill, "cannot kill process", s.platformErr, "pid", pid, "goos", s.goos)
		return false
	}

	command, err := KillCommand(s.platform, pid, mode)
	if err != nil {
		log.ErrorErr(log.CatKill, "cannot kill process", err, "pid", pid, "mode", mode)
		return false
	}

	if _, err := s.runner.Run(ctx, command); err != nil {
		log.ErrorErr(log.CatKill, "kill failed", err, "pid", pid, "mode", mode)
		return false
	}

	log.Info(log.CatKill, "process terminated", "pid", pid, "mode", mode)
	return true
}
