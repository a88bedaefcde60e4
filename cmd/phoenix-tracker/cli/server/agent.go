package server

import (
	"context"
	"fmt"

	"github.com/mwantia/phoenix-tracker/internal/agent"
	"github.com/spf13/cobra"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the tracker agent",
		Long: `Start the tracker agent.

The agent imports subjects, crawls every data root, writes a statistics
generation and reports the delta to the previous one on a fixed interval
until it is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			agent := agent.NewAgent(cfg)
			if err := agent.Serve(context.Background()); err != nil {
				return err
			}

			return nil
		},
	}

	return cmd
}
