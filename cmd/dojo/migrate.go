package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faixamestre/dojo-hub/config"
	"github.com/faixamestre/dojo-hub/internal/infrastructure/persistence/postgres"
	"github.com/faixamestre/dojo-hub/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, log *logger.Logger) error {
			applied, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %03d\n", v)
			}
			log.Info("migrations applied", logger.Int("count", len(applied)))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ *logger.Logger) error {
			version, err := m.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %03d\n", version)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ *logger.Logger) error {
			migrations, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, mig := range migrations {
				applied := "pending"
				if mig.IsApplied {
					applied = mig.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%03d\t%s\t%s\n", mig.Version, mig.Name, applied)
			}
			return tw.Flush()
		}),
	})

	return cmd
}

type migratorFunc func(cmd *cobra.Command, m *postgres.Migrator, log *logger.Logger) error

// withMigrator opens a pool for the duration of one migrate subcommand.
func withMigrator(fn migratorFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		conn, err := postgres.Connect(ctx, migrateConfig(cfg), log)
		if err != nil {
			return err
		}
		defer conn.Close()

		return fn(cmd, postgres.NewMigrator(conn), log)
	}
}

func migrateConfig(cfg *config.Config) postgres.Config {
	pc := postgresConfig(cfg)
	pc.MaxConns = 2
	pc.MinConns = 0
	return pc
}
