/*
main.go - Command line entry point

PURPOSE:
  floodrisk serves the return-period API and runs one-off computations
  from the shell. Subcommands share configuration loading and logging.

COMMANDS:
  serve                      HTTP API plus background run worker
  import events <file>       Store an event-set document
  import terrain <file>      Store a terrain document
  compute                    Compute maps from files or stored inputs

GLOBAL FLAGS:
  --config     YAML configuration file (defaults plus FLOODRISK_* env if empty)
  --log-level  Overrides logging.level

EXAMPLES:
  floodrisk serve --config floodrisk.yaml
  floodrisk import events ./events/coastal-2050.yaml
  floodrisk compute --events events.yaml --terrain dem.yaml --rp 10,100 --csv -

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Routes served by `serve`
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/config"
	"github.com/Deltares-research/FloodAdapt-sub000/logging"
	"github.com/Deltares-research/FloodAdapt-sub000/store/sqlite"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "floodrisk",
		Short:         "Probabilistic return-period flood maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(a.serveCmd(), a.importCmd(), a.computeCmd())
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(a.cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", a.cfg.Storage.DBPath, err)
	}
	return store, nil
}
