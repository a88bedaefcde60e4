package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("crawl", "WARN", &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("subject %s failed", "YA00001")
	logger.Error("store unavailable")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "WARN")
	assert.Contains(t, lines[0], "[crawl]")
	assert.Contains(t, lines[0], "subject YA00001 failed")
	assert.NotContains(t, lines[0], "\033[")
	assert.Contains(t, lines[1], "ERROR")
}

func TestNamedJoinsNames(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("agent", "INFO", &buf).Named("crawl")

	logger.Info("done")
	assert.Contains(t, buf.String(), "[agent/crawl] done")

	buf.Reset()
	NewWriterLogger("", "INFO", &buf).Named("report").Info("done")
	assert.Contains(t, buf.String(), "[report] done")
}

func TestNamedAppliesStageLevel(t *testing.T) {
	var buf bytes.Buffer
	impl := NewWriterLogger("agent", "WARN", &buf).(*LoggerServiceImpl)
	impl.cfg.Levels = map[string]string{"crawl": "DEBUG"}

	impl.Named("crawl").Debug("walking")
	impl.Named("statistics").Info("hidden")

	assert.Contains(t, buf.String(), "[agent/crawl] walking")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestJSONEntries(t *testing.T) {
	var buf bytes.Buffer
	impl := NewWriterLogger("statistics", "DEBUG", &buf).(*LoggerServiceImpl)
	impl.cfg.JSON = true

	impl.Debug("%d rows", 8)

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry.Level)
	assert.Equal(t, "statistics", entry.Service)
	assert.Equal(t, "8 rows", entry.Message)
}

func TestParse(t *testing.T) {
	assert.Equal(t, Debug, Parse("debug"))
	assert.Equal(t, Debug, Parse("TRACE"))
	assert.Equal(t, Warn, Parse(" warning "))
	assert.Equal(t, Error, Parse("ERROR"))
	assert.Equal(t, Info, Parse(""))
	assert.Equal(t, Info, Parse("verbose"))
	assert.Equal(t, "FATAL", Fatal.String())
}
