package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCommand(version VersionInfo) *cobra.Command {
	var path string

	info = version

	cmd := &cobra.Command{
		Use:           "phoenix-tracker",
		Short:         "PHOENIX research data tracker",
		Long:          "Crawls PHOENIX data roots, reconciles every file with the metadata store and keeps a daily history of data volume per subject, modality and partition.",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(path)
		},
	}

	cmd.PersistentFlags().StringVar(&path, "config", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().Bool("no-color", false, "Disables colored command output")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.no_color", cmd.PersistentFlags().Lookup("no-color"))

	cmd.PersistentFlags().StringSlice("data-root", nil, "data root holding a PHOENIX tree (repeatable)")
	cmd.PersistentFlags().Int("workers", 0, "worker pool size (default is one per CPU)")
	cmd.PersistentFlags().Bool("progress", false, "Show a progress bar instead of progress log lines")

	viper.BindPFlag("pipeline.data_roots", cmd.PersistentFlags().Lookup("data-root"))
	viper.BindPFlag("pipeline.workers", cmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("pipeline.progress", cmd.PersistentFlags().Lookup("progress"))

	cmd.Version = fmt.Sprintf("%s.%s", version.Version, version.Commit)

	return cmd
}
