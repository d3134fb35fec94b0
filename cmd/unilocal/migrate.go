package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/unilocal/internal/persistence/sqlite"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			return withPool(opts, cmd.OutOrStdout(), func(pool *sqlite.ConnectionPool) (sqlite.MigrationStatus, error) {
				return sqlite.MigrateDown(pool, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPool(opts, cmd.OutOrStdout(), sqlite.MigrateUp)
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPool(opts, cmd.OutOrStdout(), sqlite.CurrentMigration)
			},
		},
	)
	return cmd
}

func withPool(opts *rootOptions, out io.Writer, run func(*sqlite.ConnectionPool) (sqlite.MigrationStatus, error)) error {
	_, logger, storage, err := openStorage(opts)
	if err != nil {
		return err
	}
	defer closeStorage(storage, logger)

	status, err := run(storage.Pool())
	if err != nil {
		return err
	}
	printMigrationStatus(out, status)
	return nil
}

func printMigrationStatus(out io.Writer, status sqlite.MigrationStatus) {
	state := "clean"
	if status.Dirty {
		state = "dirty"
	}
	fmt.Fprintf(out, "schema version %d (%s)\n", status.Version, state)
}
