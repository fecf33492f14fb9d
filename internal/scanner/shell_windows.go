//go:build windows

package scanner

import (
	"context"
	"os/exec"
)

// cmd /C runs the pipeline; findstr provides the LISTENING filter.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	return exec.CommandContext(ctx, "cmd", "/C", command)
}
