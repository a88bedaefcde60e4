package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService
}

// LoggerServiceImpl writes printf style lines. Loggers derived with Named
// share the writer and its lock, so lines from concurrent workers never
// interleave.
type LoggerServiceImpl struct {
	cfg    config.LogServerConfig
	name   string
	level  LogLevel
	writer io.Writer
	mutex  *sync.Mutex
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLoggerService(name string, cfg config.LogServerConfig) LoggerService {
	return &LoggerServiceImpl{
		cfg:    cfg,
		name:   name,
		level:  Parse(cfg.LevelFor(name)),
		writer: newWriter(cfg),
		mutex:  &sync.Mutex{},
	}
}

// NewWriterLogger logs to w only, without color. Used by tests and by
// commands that capture output.
func NewWriterLogger(name string, level string, w io.Writer) LoggerService {
	return &LoggerServiceImpl{
		cfg: config.LogServerConfig{
			Level:      level,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
		name:   name,
		level:  Parse(level),
		writer: w,
		mutex:  &sync.Mutex{},
	}
}

// NewNopLogger discards everything.
func NewNopLogger() LoggerService {
	return NewWriterLogger("", "FATAL", io.Discard)
}

func newWriter(cfg config.LogServerConfig) io.Writer {
	var writers []io.Writer
	if !cfg.NoTerminal {
		writers = append(writers, os.Stdout)
	}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   cfg.Rotation.Compress,
		})
	}

	switch len(writers) {
	case 0:
		return os.Stdout
	case 1:
		return writers[0]
	}
	return io.MultiWriter(writers...)
}

func (impl *LoggerServiceImpl) colored() bool {
	return !impl.cfg.NoTerminal && !impl.cfg.NoColor
}

func (impl *LoggerServiceImpl) format(level LogLevel, timestamp, msg string) []byte {
	if impl.cfg.JSON {
		line, _ := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   impl.name,
			Message:   msg,
		})
		return append(line, '\n')
	}

	prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
	if impl.name != "" {
		prefix += " [" + impl.name + "]"
	}
	if impl.colored() {
		return []byte(fmt.Sprintf("%s%s %s\033[0m\n", Color(level), prefix, msg))
	}
	return []byte(fmt.Sprintf("%s %s\n", prefix, msg))
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	line := impl.format(level, time.Now().Format(impl.cfg.TimeFormat), msg)

	impl.mutex.Lock()
	impl.writer.Write(line)
	impl.mutex.Unlock()

	if level == Fatal {
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

// Named derives a logger for a stage. A configured level for the stage
// replaces the parent level.
func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	full := name
	if impl.name != "" {
		full = impl.name + "/" + name
	}

	level := impl.level
	if override, ok := impl.cfg.Levels[name]; ok {
		level = Parse(override)
	}

	return &LoggerServiceImpl{
		cfg:    impl.cfg,
		name:   full,
		level:  level,
		writer: impl.writer,
		mutex:  impl.mutex,
	}
}
