package server

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, values map[string]any) *BaseServerConfig {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	for key, value := range values {
		viper.Set(key, value)
	}

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	return cfg
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg := load(t, nil)

	assert.Equal(t, "10s", cfg.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Metadata.Type)
	assert.Equal(t, "phoenix-tracker.db", cfg.Metadata.SQLite.Path)
	assert.Equal(t, []string{"interviews"}, cfg.Report.GeneralProcessed)
	assert.Len(t, cfg.Pipeline.SubTypes, 2)
	assert.Equal(t, 24*time.Hour, cfg.Agent.IntervalDuration())

	// Defaults alone lack a data root.
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, ErrFatalConfig.Has(err))
}

func TestLoadServerConfigSplitsDataRoots(t *testing.T) {
	cfg := load(t, map[string]any{
		"pipeline.data_roots": "/mnt/prescient,/mnt/pronet",
		"pipeline.workers":    4,
	})

	assert.Equal(t, []string{"/mnt/prescient", "/mnt/pronet"}, cfg.Pipeline.DataRoots)
	assert.Equal(t, 4, cfg.Pipeline.WorkerCount())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() BaseServerConfig {
		cfg := GetServerDefault()
		cfg.Pipeline.DataRoots = []string{"/data"}
		return cfg
	}

	cases := map[string]func(cfg *BaseServerConfig){
		"shutdown timeout":      func(cfg *BaseServerConfig) { cfg.ShutdownTimeout = "soon" },
		"metadata type":         func(cfg *BaseServerConfig) { cfg.Metadata.Type = "mysql" },
		"sqlite path":           func(cfg *BaseServerConfig) { cfg.Metadata.SQLite.Path = "" },
		"postgres dsn":          func(cfg *BaseServerConfig) { cfg.Metadata.Type = "postgres" },
		"empty data root":       func(cfg *BaseServerConfig) { cfg.Pipeline.DataRoots = []string{""} },
		"negative workers":      func(cfg *BaseServerConfig) { cfg.Pipeline.Workers = -1 },
		"sub type key":          func(cfg *BaseServerConfig) { cfg.Pipeline.SubTypes = []SubTypeConfig{{Modality: "phone"}} },
		"duplicate sub type":    func(cfg *BaseServerConfig) { cfg.Pipeline.SubTypes = append(cfg.Pipeline.SubTypes, cfg.Pipeline.SubTypes[0]) },
		"agent interval":        func(cfg *BaseServerConfig) { cfg.Agent.Interval = "daily" },
		"non-positive interval": func(cfg *BaseServerConfig) { cfg.Agent.Interval = "0s" },
	}

	base := valid()
	require.NoError(t, base.Validate())

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, ErrFatalConfig.Has(err))
		})
	}
}

func TestWorkerCountDefaultsToCPUs(t *testing.T) {
	assert.Positive(t, PipelineServerConfig{}.WorkerCount())
	assert.Equal(t, 24*time.Hour, AgentServerConfig{Interval: "bad"}.IntervalDuration())
	assert.Equal(t, time.Hour, AgentServerConfig{Interval: "1h"}.IntervalDuration())
}

func TestLevelFor(t *testing.T) {
	cfg := LogServerConfig{Level: "INFO", Levels: map[string]string{"crawl": "DEBUG"}}

	assert.Equal(t, "DEBUG", cfg.LevelFor("crawl"))
	assert.Equal(t, "DEBUG", cfg.LevelFor("agent/crawl"))
	assert.Equal(t, "INFO", cfg.LevelFor("statistics"))
	assert.Equal(t, "INFO", cfg.LevelFor(""))
}
