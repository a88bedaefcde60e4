package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/tracker"
)

func testConfig(t *testing.T) *config.BaseServerConfig {
	cfg := config.GetServerDefault()
	cfg.Log.Level = "FATAL"
	cfg.Metadata.SQLite.Path = filepath.Join(t.TempDir(), "tracker.db")
	cfg.Pipeline.DataRoots = []string{t.TempDir()}
	return &cfg
}

func TestSetupServicesOpensTracker(t *testing.T) {
	ctx := context.Background()
	ta := NewAgent(testConfig(t))

	require.NoError(t, ta.setupServices(ctx))
	require.NotNil(t, ta.tracker)
	t.Cleanup(func() { ta.tracker.Close() })

	assert.NoError(t, ta.tracker.Store().Health(ctx))
}

func TestSetupServicesClosesTrackerOnRegisterError(t *testing.T) {
	ctx := context.Background()
	ta := NewAgent(testConfig(t))

	registerErr := errors.New("register failed")
	var opened *tracker.Tracker
	ta.register = func(t *tracker.Tracker) error {
		opened = t
		return registerErr
	}

	err := ta.Serve(ctx)
	require.ErrorIs(t, err, registerErr)
	require.NotNil(t, opened)
	assert.Nil(t, ta.tracker)

	assert.Error(t, opened.Store().Health(ctx))
}

func TestSetupServicesRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.DataRoots = nil

	ta := NewAgent(cfg)
	ta.register = func(*tracker.Tracker) error {
		t.Fatal("register must not run without a tracker")
		return nil
	}

	err := ta.setupServices(context.Background())
	assert.True(t, config.ErrFatalConfig.Has(err))
	assert.Nil(t, ta.tracker)
}
