package models

import (
	"time"
)

const (
	RunStageCrawl      = "crawl"
	RunStageStatistics = "statistics"
	RunStageImport     = "import"

	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// PipelineRun records one execution of a stage so readers can tell an empty
// day from a broken crawl.
type PipelineRun struct {
	ID         string `gorm:"primaryKey;type:text"`
	Stage      string `gorm:"type:text;not null;index"`
	Status     string `gorm:"type:text;not null"`
	StartedAt  time.Time
	FinishedAt *time.Time

	// Outcome
	Processed int64  `gorm:"default:0"`
	Failed    int64  `gorm:"default:0"`
	LastError string `gorm:"type:text"`

	// Generation written by a statistics run.
	StatisticsTimestamp *time.Time
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
