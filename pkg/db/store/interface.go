package store

import (
	"context"
	"time"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

// MetadataStore defines the interface for database operations
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Network and study operations
	UpsertNetwork(ctx context.Context, network *models.Network) error
	UpsertStudy(ctx context.Context, study *models.Study) error
	GetStudy(ctx context.Context, studyID string) (*models.Study, error)
	ListStudies(ctx context.Context) ([]models.Study, error)
	ListNetworks(ctx context.Context) ([]models.Network, error)

	// Subject operations
	UpsertSubjects(ctx context.Context, subjects []models.Subject) (BatchResult, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)

	// File operations
	UpsertFiles(ctx context.Context, files []models.ClassifiedFile) (BatchResult, error)
	CountPhoenixFiles(ctx context.Context) (int64, error)
	ListModalities(ctx context.Context) ([]string, error)
	ListSubjectModalities(ctx context.Context, key models.SubjectKey) ([]string, error)
	ListSubjectModalityFiles(ctx context.Context, key models.SubjectKey, modality string) ([]models.FileRecord, error)
	ListSubjectModalityFilesByMetadata(ctx context.Context, query MetadataQuery) ([]models.FileRecord, error)

	// Statistics operations
	InsertStatistics(ctx context.Context, rows []models.VolumeStatistics) error
	LatestStatisticsTimestamp(ctx context.Context) (time.Time, error)
	StatisticsTimestampBefore(ctx context.Context, before time.Time) (time.Time, error)
	SumStatistics(ctx context.Context, filter StatisticsFilter) (models.Totals, error)
	ListStatisticsModalities(ctx context.Context, timestamps ...time.Time) ([]string, error)

	// Run operations
	CreateRun(ctx context.Context, run *models.PipelineRun) error
	UpdateRun(ctx context.Context, run *models.PipelineRun) error
	ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// MetadataQuery selects the files of one subject partition whose metadata
// field Key equals Value.
type MetadataQuery struct {
	Subject     models.SubjectKey
	Modality    string
	IsProtected bool
	IsRaw       bool
	Key         string
	Value       string
}

// StatisticsFilter selects one network partition of a generation.
type StatisticsFilter struct {
	Timestamp   time.Time
	NetworkID   string
	Modality    string
	IsProtected bool
	IsRaw       bool
}

// RowError reports one rejected row of a batch.
type RowError struct {
	Key string
	Err error
}

// BatchResult accounts for a batch written in a single transaction where
// individual rows may fail without aborting the rest.
type BatchResult struct {
	Written int
	Failed  []RowError
}
