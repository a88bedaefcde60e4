package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			Levels:     map[string]string{},
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type:     "sqlite",
			LogLevel: "silent",
			SQLite: MetadataSQLiteConfig{
				Path: "phoenix-tracker.db",
			},
			Postgres: MetadataPostgresConfig{
				DSN:          "",
				MaxOpenConns: 8,
			},
		},

		Pipeline: PipelineServerConfig{
			DataRoots: []string{},
			Workers:   0,
			HashFiles: false,
			Progress:  false,
			SubTypes: []SubTypeConfig{
				{Modality: "phone", Key: "mindlamp_type", Values: []string{"sensor", "activity"}},
				{Modality: "surveys", Key: "redcap_instance", Values: []string{"UPENN", "MGB"}},
			},
		},

		Report: ReportServerConfig{
			Networks:         []string{},
			GeneralProcessed: []string{"interviews"},
		},

		Agent: AgentServerConfig{
			Interval:   "24h",
			RunOnStart: true,
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.levels", defaults.Log.Levels)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.log_level", defaults.Metadata.LogLevel)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.postgres.dsn", defaults.Metadata.Postgres.DSN)
	viper.SetDefault("metadata.postgres.max_open_conns", defaults.Metadata.Postgres.MaxOpenConns)

	viper.SetDefault("pipeline.data_roots", defaults.Pipeline.DataRoots)
	viper.SetDefault("pipeline.workers", defaults.Pipeline.Workers)
	viper.SetDefault("pipeline.hash_files", defaults.Pipeline.HashFiles)
	viper.SetDefault("pipeline.progress", defaults.Pipeline.Progress)
	viper.SetDefault("pipeline.sub_types", defaults.Pipeline.SubTypes)

	viper.SetDefault("report.networks", defaults.Report.Networks)
	viper.SetDefault("report.general_processed", defaults.Report.GeneralProcessed)

	viper.SetDefault("agent.interval", defaults.Agent.Interval)
	viper.SetDefault("agent.run_on_start", defaults.Agent.RunOnStart)
}
