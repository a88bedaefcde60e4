package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/tracker"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

func loadConfig() (*config.BaseServerConfig, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}
	return cfg, nil
}

// withTracker opens the tracker for the duration of fn.
func withTracker(cmd *cobra.Command, fn func(ctx context.Context, t *tracker.Tracker) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	t, err := tracker.Open(ctx, cfg, log.NewLoggerService("tracker", cfg.Log))
	if err != nil {
		return err
	}
	defer t.Close()

	t.Output = cmd.ErrOrStderr()
	return fn(ctx, t)
}

// withStore opens the metadata store only; it needs no data roots.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.BaseServerConfig, st *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Metadata.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(cfg.Metadata)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect metadata store: %w", err)
	}
	return fn(ctx, cfg, st)
}
