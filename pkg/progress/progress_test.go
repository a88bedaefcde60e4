package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwantia/phoenix-tracker/pkg/log"
)

func TestLoggerReportsEveryInterval(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogger(log.NewWriterLogger("", "INFO", &buf), 2)

	sink.Start("crawl", 5)
	for done := 1; done <= 5; done++ {
		sink.Update(done, 5)
	}
	sink.Finish()

	out := buf.String()
	assert.Contains(t, out, "crawl: 5 work items")
	assert.Contains(t, out, "crawl: 2 of 5 complete")
	assert.Contains(t, out, "crawl: 4 of 5 complete")
	assert.Contains(t, out, "crawl: 5 of 5 complete")
	assert.NotContains(t, out, "crawl: 3 of 5")
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestNewLoggerDefaultsInterval(t *testing.T) {
	assert.Equal(t, 100, NewLogger(log.NewNopLogger(), 0).Every)
}

func TestBarWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf)

	bar.Update(1, 3)
	bar.Start("statistics", 3)
	bar.Update(3, 3)
	bar.Finish()
	bar.Finish()

	assert.Contains(t, buf.String(), "statistics")
}
