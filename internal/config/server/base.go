package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"
)

// ErrFatalConfig marks configuration that makes a run impossible. It aborts
// before any work begins.
var ErrFatalConfig = errs.Class("fatal config")

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataServerConfig `mapstructure:"metadata" yaml:"metadata"`
	Pipeline PipelineServerConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Report   ReportServerConfig   `mapstructure:"report"   yaml:"report"`
	Agent    AgentServerConfig    `mapstructure:"agent"    yaml:"agent"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every section needed to run the pipeline.
func (cfg *BaseServerConfig) Validate() error {
	if _, err := time.ParseDuration(cfg.ShutdownTimeout); err != nil {
		return ErrFatalConfig.New("invalid shutdown_timeout %q: %v", cfg.ShutdownTimeout, err)
	}
	if err := cfg.Metadata.Validate(); err != nil {
		return err
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return err
	}
	return cfg.Agent.Validate()
}
