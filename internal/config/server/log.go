package server

// LogServerConfig configures every logger of the process. Levels overrides
// Level for named stages, e.g. {"crawl": "DEBUG"}.
type LogServerConfig struct {
	Level      string                  `mapstructure:"level"       yaml:"level"`
	Levels     map[string]string       `mapstructure:"levels"      yaml:"levels,omitempty"`
	TimeFormat string                  `mapstructure:"time_format" yaml:"time_format"`
	File       string                  `mapstructure:"file"        yaml:"file"`
	NoColor    bool                    `mapstructure:"no_color"    yaml:"no_color"`
	JSON       bool                    `mapstructure:"json"        yaml:"json"`
	NoTerminal bool                    `mapstructure:"no_terminal" yaml:"no_terminal"`
	Rotation   LogServerRotationConfig `mapstructure:"rotation"    yaml:"rotation"`
}

// LogServerRotationConfig is passed to lumberjack when File is set. Sizes
// are megabytes, ages days.
type LogServerRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"     yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"      yaml:"max_age"`
	Compress   bool `mapstructure:"compress"     yaml:"compress"`
}

// LevelFor returns the level of the named logger. The last path segment of
// the name is matched, so "agent/crawl" uses the "crawl" override.
func (cfg LogServerConfig) LevelFor(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			name = name[i+1:]
			break
		}
	}
	if level, ok := cfg.Levels[name]; ok && name != "" {
		return level
	}
	return cfg.Level
}
