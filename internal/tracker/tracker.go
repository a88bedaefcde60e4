// Package tracker wires the pipeline stages to one store, filesystem and
// logger.
package tracker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/crawler"
	"github.com/mwantia/phoenix-tracker/internal/importer"
	"github.com/mwantia/phoenix-tracker/internal/report"
	"github.com/mwantia/phoenix-tracker/internal/statistics"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
	"github.com/mwantia/phoenix-tracker/pkg/progress"
)

type Tracker struct {
	cfg   *config.BaseServerConfig
	store store.MetadataStore
	fs    afero.Fs
	log   log.LoggerService

	// Progress output for the terminal bar.
	Output io.Writer
}

func New(cfg *config.BaseServerConfig, st store.MetadataStore, fs afero.Fs, logger log.LoggerService) *Tracker {
	return &Tracker{
		cfg:    cfg,
		store:  st,
		fs:     fs,
		log:    logger,
		Output: os.Stderr,
	}
}

// Open connects the configured store and applies pending migrations.
func Open(ctx context.Context, cfg *config.BaseServerConfig, logger log.LoggerService) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Metadata)
	if err != nil {
		return nil, err
	}
	if err := st.Connect(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect metadata store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to migrate metadata store: %w", err)
	}

	return New(cfg, st, afero.NewOsFs(), logger), nil
}

func (t *Tracker) Store() store.MetadataStore {
	return t.store
}

func (t *Tracker) Close() error {
	return t.store.Close()
}

func (t *Tracker) sink(name string) progress.Sink {
	if t.cfg.Pipeline.Progress {
		return progress.NewBar(t.Output)
	}
	return progress.NewLogger(t.log.Named(name), 100)
}

func (t *Tracker) ImportSites(ctx context.Context, r io.Reader) (importer.SitesResult, error) {
	return importer.ImportSites(ctx, t.store, r, t.log.Named("import"))
}

func (t *Tracker) ImportSubjects(ctx context.Context, studyID string) (importer.SubjectsResult, error) {
	si := importer.NewSubjectImporter(t.store, t.fs, t.cfg.Pipeline.DataRoots, t.log.Named("import"))
	return si.Import(ctx, studyID)
}

func (t *Tracker) Crawl(ctx context.Context) (crawler.Result, error) {
	c := crawler.New(t.store, t.fs, t.cfg.Pipeline, t.log.Named("crawl"), t.sink("crawl"))
	return c.Run(ctx)
}

func (t *Tracker) Statistics(ctx context.Context) (statistics.Result, error) {
	s := statistics.NewService(t.store, t.cfg.Pipeline, t.log.Named("statistics"), t.sink("statistics"))
	return s.Run(ctx)
}

func (t *Tracker) Report(ctx context.Context) (*report.Report, error) {
	b := report.NewBuilder(t.store, t.cfg.Report, t.cfg.Pipeline.SubTypes)
	return b.Latest(ctx)
}

// Summary is the outcome of one full pipeline pass.
type Summary struct {
	Subjects   importer.SubjectsResult
	Crawl      crawler.Result
	Statistics statistics.Result
	Report     *report.Report
}

// Run imports subjects, crawls, writes a statistics generation and compares
// it with the previous one. A missing previous generation is not an error.
func (t *Tracker) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}
	var err error

	if summary.Subjects, err = t.ImportSubjects(ctx, ""); err != nil {
		return summary, fmt.Errorf("subject import failed: %w", err)
	}
	if summary.Crawl, err = t.Crawl(ctx); err != nil {
		return summary, fmt.Errorf("crawl failed: %w", err)
	}
	if summary.Statistics, err = t.Statistics(ctx); err != nil {
		return summary, fmt.Errorf("statistics failed: %w", err)
	}

	summary.Report, err = t.Report(ctx)
	if store.ErrNotFound.Has(err) {
		t.log.Info("No previous statistics generation to compare with")
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("report failed: %w", err)
	}

	if summary.Report.IssueDetected {
		for _, d := range summary.Report.Stalled() {
			t.log.Warn("No change for %s %s (%s files, %s)",
				d.Network, d.Modality, report.SignedCount(d.FilesDelta), report.SignedSize(d.SizeDeltaMB))
		}
	}
	return summary, nil
}
