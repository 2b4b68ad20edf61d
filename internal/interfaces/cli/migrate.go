package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coprede/sir-dashboard/internal/app"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the history database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			if err := requirePostgres(cliCtx); err != nil {
				return err
			}
			if err := app.Migrate(cliCtx.Config.Postgres, cliCtx.Logger); err != nil {
				return err
			}
			return printMigrationStatus(cliCtx)
		}),
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			if err := requirePostgres(cliCtx); err != nil {
				return err
			}
			if steps < 1 {
				return errors.New(errors.ErrCodeValidation, "--steps must be at least 1")
			}
			if err := app.MigrateDown(cliCtx.Config.Postgres, steps, cliCtx.Logger); err != nil {
				return err
			}
			return printMigrationStatus(cliCtx)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			if err := requirePostgres(cliCtx); err != nil {
				return err
			}
			return printMigrationStatus(cliCtx)
		}),
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func requirePostgres(cliCtx *CLIContext) error {
	if !cliCtx.Config.Postgres.Enabled {
		return errors.New(errors.ErrCodeInvalidConfig, "postgres is not enabled")
	}
	return nil
}

func printMigrationStatus(cliCtx *CLIContext) error {
	st, err := app.MigrationStatus(cliCtx.Config.Postgres, cliCtx.Logger)
	if err != nil {
		return err
	}
	return cliCtx.Printer.Print(st, func(s styles) string {
		line := fmt.Sprintf("schema version %s", strconv.FormatUint(uint64(st.Version), 10))
		if st.Dirty {
			return line + " " + s.critical.Render("(dirty)")
		}
		return line
	})
}
