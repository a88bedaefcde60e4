// Package crawler walks the PHOENIX tree of every known subject and
// reconciles the files it finds with the metadata store.
package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/fanout"
	"github.com/mwantia/phoenix-tracker/internal/phoenix"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
	"github.com/mwantia/phoenix-tracker/pkg/progress"
)

// Store is what a crawl needs from the metadata store.
type Store interface {
	phoenix.Directory
	FileWriter
	CreateRun(ctx context.Context, run *models.PipelineRun) error
	UpdateRun(ctx context.Context, run *models.PipelineRun) error
}

var _ Store = (store.MetadataStore)(nil)

// Result summarises a crawl. A zero FilesReconciled with zero failures is an
// empty tree; anything in the failure counters means part of the tree was not
// seen.
type Result struct {
	RunID           string
	Subjects        int
	SubjectsFailed  int
	FilesFound      int
	FilesReconciled int
	FilesFailed     int
}

type Crawler struct {
	store Store
	fs    afero.Fs
	cfg   config.PipelineServerConfig
	log   log.LoggerService
	sink  progress.Sink
	now   func() time.Time
}

func New(st Store, fs afero.Fs, cfg config.PipelineServerConfig, logger log.LoggerService, sink progress.Sink) *Crawler {
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Crawler{
		store: st,
		fs:    fs,
		cfg:   cfg,
		log:   logger,
		sink:  sink,
		now:   time.Now,
	}
}

// SetNow overrides the clock used for run records and extracted timestamps.
func (c *Crawler) SetNow(now func() time.Time) {
	c.now = now
}

// Run crawls every subject once. Only configuration errors and a failing
// store write abort the run; a subject that cannot be read is counted in
// SubjectsFailed and contributes nothing.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	if err := c.cfg.Validate(); err != nil {
		return Result{}, err
	}

	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		Stage:     models.RunStageCrawl,
		Status:    models.RunStatusRunning,
		StartedAt: c.now().UTC(),
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return Result{}, err
	}

	result, err := c.crawl(ctx)
	result.RunID = run.ID

	finished := c.now().UTC()
	run.FinishedAt = &finished
	run.Processed = int64(result.FilesReconciled)
	run.Failed = int64(result.FilesFailed + result.SubjectsFailed)
	run.Status = models.RunStatusCompleted
	if err != nil {
		run.Status = models.RunStatusFailed
		run.LastError = err.Error()
	}
	if uerr := c.store.UpdateRun(ctx, run); uerr != nil {
		c.log.Error("Failed to record crawl run %s: %v", run.ID, uerr)
	}

	return result, err
}

func (c *Crawler) crawl(ctx context.Context) (Result, error) {
	catalog, err := phoenix.LoadCatalog(ctx, c.store, c.fs, c.cfg.DataRoots, c.log)
	if err != nil {
		return Result{}, err
	}

	c.log.Info("Crawling %d subjects with %d workers", len(catalog.Subjects), c.cfg.WorkerCount())

	worker := &subjectWorker{
		catalog:    catalog,
		classifier: phoenix.NewClassifier(c.fs, catalog.Layout),
		enumerator: phoenix.NewEnumerator(c.fs, c.cfg.HashFiles),
		log:        c.log,
	}
	worker.enumerator.SetNow(c.now)

	pool := fanout.New("crawl", c.cfg.WorkerCount(), c.sink)
	merged := fanout.Run(ctx, pool, catalog.Subjects, worker.crawl)

	result := Result{
		Subjects:       merged.Total,
		SubjectsFailed: len(merged.Failures),
		FilesFound:     len(merged.Items),
	}
	for _, failure := range merged.Failures {
		c.log.Error("Subject %s failed: %v", failure.Item, failure.Err)
	}
	// A cancelled crawl is not reconciled.
	if merged.Err != nil {
		return result, merged.Err
	}

	reconciled, err := NewReconciler(c.store, c.log).Reconcile(ctx, catalog.Known, merged.Items)
	result.FilesReconciled = reconciled.Written
	result.FilesFailed = reconciled.Failed()
	if err != nil {
		return result, err
	}

	c.log.Info("Crawl complete: %d files reconciled, %d files failed, %d of %d subjects failed",
		result.FilesReconciled, result.FilesFailed, result.SubjectsFailed, result.Subjects)
	return result, nil
}

// subjectWorker holds only run-scoped values that are read, never written,
// while workers are active.
type subjectWorker struct {
	catalog    *phoenix.Catalog
	classifier *phoenix.Classifier
	enumerator *phoenix.Enumerator
	log        log.LoggerService
}

func (w *subjectWorker) crawl(ctx context.Context, key models.SubjectKey) ([]models.ClassifiedFile, error) {
	if _, err := w.catalog.Study(key.StudyID); err != nil {
		if phoenix.ErrUnknownEntity.Has(err) {
			return nil, err
		}
		// The study has no directory in any data root.
		w.log.Debug("Skipping %s: %v", key, err)
		return nil, nil
	}

	var files []models.ClassifiedFile
	for _, p := range phoenix.Partitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		modalities, err := w.classifier.Modalities(key, p)
		if phoenix.ErrNotFound.Has(err) {
			if p.Expected() {
				w.log.Info("No %s data for %s", p, key)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, modality := range modalities {
			found, err := w.enumerator.Enumerate(key, p, modality)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		}
	}

	w.log.Debug("Found %d files for %s", len(files), key)
	return files, nil
}
