package client

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/importer"
	"github.com/mwantia/phoenix-tracker/internal/tracker"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import sites and subjects",
		Long:  "Load the study registry and the subject lists the crawl works from.",
	}

	cmd.AddCommand(NewImportSitesCommand())
	cmd.AddCommand(NewImportSubjectsCommand())

	return cmd
}

func NewImportSitesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites <file>",
		Short: "Import networks and studies",
		Long:  "Import networks and studies from a JSON array of {id, name, country, country_code, network}.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open sites file: %w", err)
			}
			defer f.Close()

			return withStore(cmd, func(ctx context.Context, cfg *config.BaseServerConfig, st *store.Store) error {
				if err := st.Migrate(ctx); err != nil {
					return fmt.Errorf("failed to migrate metadata store: %w", err)
				}

				result, err := importer.ImportSites(ctx, st, f, log.NewLoggerService("import", cfg.Log))
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d networks and %d studies (%d skipped)\n",
					result.Networks, result.Studies, result.Skipped)
				return nil
			})
		},
	}

	return cmd
}

func NewImportSubjectsCommand() *cobra.Command {
	var study string

	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Import subjects from study metadata files",
		Long:  "Import the subjects listed in <Network><Study>_metadata.csv of every study, or of one study.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, func(ctx context.Context, t *tracker.Tracker) error {
				result, err := t.ImportSubjects(ctx, study)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d subjects from %d studies (%d without metadata, %d rows skipped, %d rejected)\n",
					result.Written, result.Studies, result.Missing, result.Skipped, result.Rejected)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&study, "study", "", "Only import the given study")

	return cmd
}
