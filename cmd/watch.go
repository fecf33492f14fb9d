package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/palomafofana/port-watcher/internal/config"
	"github.com/palomafofana/port-watcher/internal/log"
	"github.com/palomafofana/port-watcher/internal/registry"
	"github.com/palomafofana/port-watcher/internal/ui"
)

var (
	watchAuto     bool
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Browse listening ports interactively",
	Long: `Open an interactive list of listening ports. Select a port and press enter
to kill its process, r to refresh, a to toggle auto refresh.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchAuto, "auto-refresh", false, "Start with auto refresh enabled")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Auto refresh interval (default from config, 5s)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval, err := refreshInterval()
	if err != nil {
		return err
	}
	if !isTerminal(os.Stdout) {
		return errors.New("watch needs an interactive terminal; use list instead")
	}

	// Log lines would corrupt the screen, so they go to a file or nowhere.
	if debug || cfg.Debug {
		closeLog, err := log.Init(cfg.LogPath())
		if err != nil {
			return err
		}
		defer closeLog()
	} else {
		log.SetOutput(io.Discard)
	}

	reg := registry.New(newScanner(), registry.WithInterval(interval))
	defer reg.Close()

	if watchAuto || cfg.AutoRefresh {
		reg.ToggleAutoRefresh()
	}

	return ui.Run(cmd.Context(), reg, cfg.Mode())
}

// refreshInterval returns --interval when given, else the configured period.
func refreshInterval() (time.Duration, error) {
	if watchInterval == 0 {
		return cfg.RefreshInterval, nil
	}
	if watchInterval < config.MinRefreshInterval {
		return 0, fmt.Errorf("--interval %s is below the minimum of %s", watchInterval, config.MinRefreshInterval)
	}
	return watchInterval, nil
}
