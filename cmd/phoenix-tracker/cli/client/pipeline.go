package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwantia/phoenix-tracker/internal/tracker"
)

func NewCrawlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every data root",
		Long:  "Walk the PHOENIX tree of every known subject and reconcile the files found with the metadata store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, func(ctx context.Context, t *tracker.Tracker) error {
				result, err := t.Crawl(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d files reconciled, %d files failed, %d of %d subjects failed\n",
					result.RunID, result.FilesReconciled, result.FilesFailed, result.SubjectsFailed, result.Subjects)
				return nil
			})
		},
	}

	return cmd
}

func NewStatisticsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statistics",
		Short: "Write a statistics generation",
		Long:  "Count the reconciled files of every subject per modality and partition and append them as one generation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, func(ctx context.Context, t *tracker.Tracker) error {
				result, err := t.Statistics(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Generation %s: %d rows written, %d of %d subjects failed\n",
					result.Timestamp.Format(time.RFC3339Nano), result.RowsWritten, result.SubjectsFailed, result.Subjects)
				return nil
			})
		},
	}

	return cmd
}

func NewReportCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compare the two latest statistics generations",
		Long:  "Report the change in file count and size per network and modality between the two most recent statistics generations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, func(ctx context.Context, t *tracker.Tracker) error {
				report, err := t.Report(ctx)
				if err != nil {
					return err
				}

				if asJSON {
					return report.RenderJSON(cmd.OutOrStdout())
				}
				report.Render(cmd.OutOrStdout())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline once",
		Long:  "Import subjects, crawl, write a statistics generation and report the delta to the previous one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, func(ctx context.Context, t *tracker.Tracker) error {
				summary, err := t.Run(ctx)
				if err != nil {
					return err
				}

				if summary.Report != nil {
					summary.Report.Render(cmd.OutOrStdout())
				}
				return nil
			})
		},
	}

	return cmd
}
