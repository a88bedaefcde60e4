package server

import (
	"runtime"
	"time"
)

// PipelineServerConfig configures the crawl and statistics stages.
type PipelineServerConfig struct {
	// DataRoots are the mount points holding PHOENIX trees, tried in order.
	DataRoots []string `mapstructure:"data_roots" yaml:"data_roots"`
	// Workers bounds the fan-out pool; zero means one worker per CPU.
	Workers   int             `mapstructure:"workers"    yaml:"workers"`
	HashFiles bool            `mapstructure:"hash_files" yaml:"hash_files"`
	Progress  bool            `mapstructure:"progress"   yaml:"progress"`
	SubTypes  []SubTypeConfig `mapstructure:"sub_types"  yaml:"sub_types"`
}

// SubTypeConfig splits the protected raw partition of a modality by a metadata
// field. Without values the distinct values found in the data are used.
type SubTypeConfig struct {
	Modality string   `mapstructure:"modality" yaml:"modality"`
	Key      string   `mapstructure:"key"      yaml:"key"`
	Values   []string `mapstructure:"values"   yaml:"values"`
}

// ReportServerConfig configures the day-over-day delta report.
type ReportServerConfig struct {
	// Networks limits the report; empty means every network in the store.
	Networks []string `mapstructure:"networks" yaml:"networks"`
	// GeneralProcessed lists modalities reported from the general processed
	// partition instead of the protected raw one.
	GeneralProcessed []string `mapstructure:"general_processed" yaml:"general_processed"`
}

type AgentServerConfig struct {
	Interval   string `mapstructure:"interval"     yaml:"interval"`
	RunOnStart bool   `mapstructure:"run_on_start" yaml:"run_on_start"`
}

func (cfg PipelineServerConfig) Validate() error {
	if len(cfg.DataRoots) == 0 {
		return ErrFatalConfig.New("pipeline.data_roots must name at least one data root")
	}
	for _, root := range cfg.DataRoots {
		if root == "" {
			return ErrFatalConfig.New("pipeline.data_roots contains an empty entry")
		}
	}
	if cfg.Workers < 0 {
		return ErrFatalConfig.New("pipeline.workers must not be negative")
	}

	seen := make(map[string]bool)
	for _, st := range cfg.SubTypes {
		if st.Modality == "" || st.Key == "" {
			return ErrFatalConfig.New("sub type rule requires modality and key")
		}
		if seen[st.Modality] {
			return ErrFatalConfig.New("duplicate sub type rule for modality %q", st.Modality)
		}
		seen[st.Modality] = true
	}
	return nil
}

// WorkerCount resolves the configured pool size.
func (cfg PipelineServerConfig) WorkerCount() int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.NumCPU()
}

func (cfg AgentServerConfig) Validate() error {
	d, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		return ErrFatalConfig.New("invalid agent.interval %q: %v", cfg.Interval, err)
	}
	if d <= 0 {
		return ErrFatalConfig.New("agent.interval must be positive")
	}
	return nil
}

func (cfg AgentServerConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(cfg.Interval)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
