package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
)

func NewDbCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the metadata store",
		Long:  "Apply or roll back schema migrations and inspect recent pipeline runs.",
	}

	cmd.AddCommand(NewDbMigrateCommand())
	cmd.AddCommand(NewDbRollbackCommand())
	cmd.AddCommand(NewDbStatusCommand())

	return cmd
}

func NewDbMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.BaseServerConfig, st *store.Store) error {
				applied, err := st.Migrator().Migrate(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations\n", applied)
				return nil
			})
		},
	}

	return cmd
}

func NewDbRollbackCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last applied migration",
		Long:  "Roll back the last applied migration. Rolling back the schema drops tables and needs confirmation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("rollback drops data, use --confirm to proceed")
			}

			return withStore(cmd, func(ctx context.Context, _ *config.BaseServerConfig, st *store.Store) error {
				version, err := st.Migrator().Rollback(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back migration %d\n", version)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "c", false, "Confirms the rollback")

	return cmd
}

func NewDbStatusCommand() *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migrations and recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.BaseServerConfig, st *store.Store) error {
				statuses, err := st.Migrator().Status(ctx)
				if err != nil {
					return err
				}

				t := table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Version", "Description", "Applied"})
				for _, status := range statuses {
					applied := "pending"
					if status.Applied() {
						applied = status.AppliedAt.Local().Format("2006-01-02 15:04:05")
					}
					t.AppendRow(table.Row{status.Version, status.Description, applied})
				}
				t.Render()

				if runs <= 0 || !statuses[len(statuses)-1].Applied() {
					return nil
				}

				recent, err := st.ListRuns(ctx, runs)
				if err != nil {
					return err
				}

				t = table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Run", "Stage", "Status", "Started", "Duration", "Processed", "Failed"})
				for _, run := range recent {
					duration := "-"
					if run.FinishedAt != nil {
						duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
					}
					t.AppendRow(table.Row{
						run.ID,
						run.Stage,
						run.Status,
						run.StartedAt.Format("2006-01-02 15:04:05"),
						duration,
						run.Processed,
						run.Failed,
					})
				}
				t.Render()

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 10, "Number of recent pipeline runs to list")

	return cmd
}
