package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/palomafofana/port-watcher/internal/registry"
	"github.com/palomafofana/port-watcher/internal/scanner"
)

var (
	gracefulKill bool
	forceKill    bool
	killPID      int
)

var killCmd = &cobra.Command{
	Use:   "kill <port>",
	Short: "Kill process listening on a port",
	Long: `Kill the process that is listening on the specified port. Uses the configured
kill mode (force unless configured otherwise); --graceful sends SIGTERM and
--force sends SIGKILL. With --pid, only that process is killed.`,
	Args: cobra.ExactArgs(1),
	RunE: runKill,
}

func init() {
	killCmd.Flags().BoolVarP(&gracefulKill, "graceful", "g", false, "Ask the process to exit (SIGTERM, taskkill)")
	killCmd.Flags().BoolVarP(&forceKill, "force", "f", false, "Force kill (SIGKILL, taskkill /F)")
	killCmd.Flags().IntVar(&killPID, "pid", 0, "Kill only this pid when several processes share the port")
}

func runKill(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %s", args[0])
	}

	mode, err := killModeFlags(gracefulKill, forceKill)
	if err != nil {
		return err
	}

	reg := registry.New(newScanner())
	reg.Refresh(cmd.Context())

	target, err := findTarget(reg.Snapshot(), port, killPID)
	if err != nil {
		return err
	}

	if !reg.Kill(cmd.Context(), target.PID, mode) {
		return fmt.Errorf("failed to kill process %d", target.PID)
	}

	action := "Killed"
	if mode == scanner.ModeGraceful {
		action = "Sent SIGTERM to"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (PID %d) on port %d\n", action, target.Process, target.PID, target.Port)

	return nil
}

func findTarget(ports []scanner.Port, port, pid int) (scanner.Port, error) {
	for _, p := range ports {
		if p.Port == port && (pid == 0 || p.PID == pid) {
			return p, nil
		}
	}
	if pid != 0 {
		return scanner.Port{}, fmt.Errorf("no process %d found listening on port %d", pid, port)
	}
	return scanner.Port{}, fmt.Errorf("no process found listening on port %d", port)
}
