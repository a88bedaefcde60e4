// Package statistics rolls reconciled files up into append-only volume
// statistics generations.
package statistics

import (
	"context"
	"time"

	"github.com/google/uuid"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/fanout"
	"github.com/mwantia/phoenix-tracker/internal/phoenix"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
	"github.com/mwantia/phoenix-tracker/pkg/progress"
)

// Store is what a statistics run needs from the metadata store.
type Store interface {
	FileReader
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	InsertStatistics(ctx context.Context, rows []models.VolumeStatistics) error
	CreateRun(ctx context.Context, run *models.PipelineRun) error
	UpdateRun(ctx context.Context, run *models.PipelineRun) error
}

var _ Store = (store.MetadataStore)(nil)

// Result summarises one generation.
type Result struct {
	RunID          string
	Timestamp      time.Time
	RowsWritten    int
	Subjects       int
	SubjectsFailed int
}

type Service struct {
	store Store
	cfg   config.PipelineServerConfig
	log   log.LoggerService
	sink  progress.Sink
	now   func() time.Time
}

func NewService(st Store, cfg config.PipelineServerConfig, logger log.LoggerService, sink progress.Sink) *Service {
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Service{
		store: st,
		cfg:   cfg,
		log:   logger,
		sink:  sink,
		now:   time.Now,
	}
}

// Run writes a new generation stamped with the current time.
func (s *Service) Run(ctx context.Context) (Result, error) {
	return s.RunAt(ctx, s.now())
}

// RunAt writes a generation stamped with ts. Every row of the run shares ts;
// a ts that already names a generation fails with
// store.ErrGenerationExists and writes nothing.
func (s *Service) RunAt(ctx context.Context, ts time.Time) (Result, error) {
	ts = ts.UTC().Truncate(time.Microsecond)

	run := &models.PipelineRun{
		ID:                  uuid.NewString(),
		Stage:               models.RunStageStatistics,
		Status:              models.RunStatusRunning,
		StartedAt:           s.now().UTC(),
		StatisticsTimestamp: &ts,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return Result{}, err
	}

	result, err := s.aggregate(ctx, ts)
	result.RunID = run.ID

	finished := s.now().UTC()
	run.FinishedAt = &finished
	run.Processed = int64(result.RowsWritten)
	run.Failed = int64(result.SubjectsFailed)
	run.Status = models.RunStatusCompleted
	if err != nil {
		run.Status = models.RunStatusFailed
		run.LastError = err.Error()
	}
	if uerr := s.store.UpdateRun(ctx, run); uerr != nil {
		s.log.Error("Failed to record statistics run %s: %v", run.ID, uerr)
	}

	return result, err
}

func (s *Service) aggregate(ctx context.Context, ts time.Time) (Result, error) {
	result := Result{Timestamp: ts}

	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return result, phoenix.ErrTransientIO.Wrap(err)
	}

	keys := make([]models.SubjectKey, 0, len(subjects))
	for _, subject := range subjects {
		keys = append(keys, subject.Key())
	}

	aggregator := NewAggregator(s.store, s.cfg.SubTypes)
	pool := fanout.New("statistics", s.cfg.WorkerCount(), s.sink)
	merged := fanout.Run(ctx, pool, keys, func(ctx context.Context, key models.SubjectKey) ([]models.VolumeStatistics, error) {
		return aggregator.Subject(ctx, key, ts)
	})

	result.Subjects = merged.Total
	result.SubjectsFailed = len(merged.Failures)
	for _, failure := range merged.Failures {
		s.log.Error("Subject %s failed: %v", failure.Item, failure.Err)
	}
	if merged.Err != nil {
		return result, merged.Err
	}

	if err := s.store.InsertStatistics(ctx, merged.Items); err != nil {
		return result, err
	}
	result.RowsWritten = len(merged.Items)

	s.log.Info("Statistics generation %s: %d rows, %d of %d subjects failed",
		ts.Format(time.RFC3339Nano), result.RowsWritten, result.SubjectsFailed, result.Subjects)
	return result, nil
}
