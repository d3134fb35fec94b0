package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/unilocal/internal/config"
	"github.com/example/unilocal/internal/logging"
	"github.com/example/unilocal/internal/persistence/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	envFile    string
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(config.Options{ConfigFile: o.configFile, EnvFile: o.envFile})
}

// newRootCmd creates the top-level "unilocal" command and registers all
// subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "unilocal",
		Short:        "Local places directory with weekly opening schedules",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before the environment (default .env)")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newCreateModeratorCmd(opts),
	)
	return root
}

// openStorage loads the configuration, builds the logger and opens the store.
func openStorage(opts *rootOptions) (config.Config, *logging.Logger, *sqlite.Storage, error) {
	cfg, err := opts.load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	storage, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return cfg, logger, storage, nil
}

func closeStorage(storage *sqlite.Storage, logger *logging.Logger) {
	if err := storage.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
	}
	_ = logger.Sync()
}
