package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"equipment-twin-backend/internal/db"
	"equipment-twin-backend/internal/logging"
)

func newMigrateCommand(out io.Writer, configPath *string) *cobra.Command {
	var (
		target     int
		statusOnly bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newBootstrap(out, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			level, _ := logging.ParseLevel(rt.cfg.Log.Level)
			gormDB, err := db.Open(&rt.cfg.Database, logging.GormLevel(level))
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}
			defer db.Close(gormDB)

			migrator := db.NewMigrator(gormDB, rt.logger)
			if statusOnly {
				return printStatus(cmd, out, migrator)
			}

			if cmd.Flags().Changed("target") {
				rt.cfg.Database.TargetVersion = target
			}
			if err := migrator.Apply(cmd.Context(), rt.cfg.Database.TargetVersion); err != nil {
				rt.logMigrationFailure(err, rt.cfg.Database.TargetVersion)
				return &ExitError{Code: 3, Err: err}
			}
			_, err = fmt.Fprintf(out, "schema is at version %d\n", resolved(rt.cfg.Database.TargetVersion, migrator.Latest()))
			return err
		},
	}

	cmd.Flags().IntVar(&target, "target", 0, "Schema version to migrate to (0 = latest)")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Print applied and pending migrations without changing anything")
	return cmd
}

func resolved(target, latest int) int {
	if target == 0 {
		return latest
	}
	return target
}

func printStatus(cmd *cobra.Command, out io.Writer, migrator *db.Migrator) error {
	applied, pending, err := migrator.Status(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDESCRIPTION\tAPPLIED AT")
	for _, m := range applied {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Description, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(tw, "%d\t%s\tpending\n", m.Version, m.Description)
	}
	return tw.Flush()
}
