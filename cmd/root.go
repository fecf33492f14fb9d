package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/palomafofana/port-watcher/internal/config"
	"github.com/palomafofana/port-watcher/internal/log"
	"github.com/palomafofana/port-watcher/internal/scanner"
)

var (
	version = "0.1.0"
	cfgFile string
	debug   bool
	cfg     *config.Config

	// newScanner is swapped in tests.
	newScanner = scanner.New
)

var rootCmd = &cobra.Command{
	Use:   "port-watcher",
	Short: "Find and kill processes listening on local ports",
	Long: `port-watcher lists the processes holding listening TCP/UDP ports on this
machine and terminates them gracefully (SIGTERM) or forcefully (SIGKILL).`,
	PersistentPreRunE: loadConfig,
	RunE:              runList,
	SilenceUsage:      true,
}

// Execute runs the root command and exits 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.port-watcher.yaml or ~/.config/port-watcher/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.Flags().StringVar(&filterQuery, "filter", "", "Fuzzy filter by port, process or pid")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if debug || cfg.Debug {
		log.SetMinLevel(log.LevelDebug)
	}
	log.Debug(log.CatConfig, "starting", "command", cmd.Name(), "version", version)
	return nil
}

func killModeFlags(graceful, force bool) (scanner.KillMode, error) {
	switch {
	case graceful && force:
		return scanner.ModeForce, errors.New("--graceful and --force are mutually exclusive")
	case graceful:
		return scanner.ModeGraceful, nil
	case force:
		return scanner.ModeForce, nil
	default:
		return cfg.Mode(), nil
	}
}
