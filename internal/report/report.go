// Package report compares the two most recent statistics generations and
// flags modalities whose volume stopped changing.
package report

import (
	"context"
	"sort"
	"time"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/statistics"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
)

// Store is what the report reads.
type Store interface {
	LatestStatisticsTimestamp(ctx context.Context) (time.Time, error)
	StatisticsTimestampBefore(ctx context.Context, before time.Time) (time.Time, error)
	SumStatistics(ctx context.Context, filter store.StatisticsFilter) (models.Totals, error)
	ListNetworks(ctx context.Context) ([]models.Network, error)
	ListModalities(ctx context.Context) ([]string, error)
	ListStatisticsModalities(ctx context.Context, timestamps ...time.Time) ([]string, error)
}

var _ Store = (store.MetadataStore)(nil)

// Delta is the change of one network partition between two generations.
type Delta struct {
	Network     string        `json:"network"`
	Modality    string        `json:"modality"`
	IsProtected bool          `json:"is_protected"`
	IsRaw       bool          `json:"is_raw"`
	Previous    models.Totals `json:"previous"`
	Latest      models.Totals `json:"latest"`
	FilesDelta  int64         `json:"files_delta"`
	SizeDeltaMB float64       `json:"size_delta_mb"`
	// Stalled is set when either metric did not change.
	Stalled bool `json:"stalled"`
}

type Report struct {
	Previous      time.Time `json:"previous"`
	Latest        time.Time `json:"latest"`
	Deltas        []Delta   `json:"deltas"`
	IssueDetected bool      `json:"issue_detected"`
}

// Builder selects what a report covers.
type Builder struct {
	store    Store
	cfg      config.ReportServerConfig
	subTypes []config.SubTypeConfig
}

func NewBuilder(st Store, cfg config.ReportServerConfig, subTypes []config.SubTypeConfig) *Builder {
	return &Builder{store: st, cfg: cfg, subTypes: subTypes}
}

// Latest compares the most recent generation with the one before it. With
// fewer than two generations it fails with store.ErrNotFound.
func (b *Builder) Latest(ctx context.Context) (*Report, error) {
	latest, err := b.store.LatestStatisticsTimestamp(ctx)
	if err != nil {
		return nil, err
	}
	previous, err := b.store.StatisticsTimestampBefore(ctx, latest)
	if err != nil {
		return nil, err
	}
	return b.Compare(ctx, previous, latest)
}

// Compare computes the delta from previous to latest for every tracked
// network and modality. Partitions empty in both generations are not tracked
// for that network and are left out.
func (b *Builder) Compare(ctx context.Context, previous, latest time.Time) (*Report, error) {
	networks, err := b.networks(ctx)
	if err != nil {
		return nil, err
	}
	modalities, err := b.modalities(ctx, previous, latest)
	if err != nil {
		return nil, err
	}

	general := make(map[string]bool, len(b.cfg.GeneralProcessed))
	for _, modality := range b.cfg.GeneralProcessed {
		general[modality] = true
	}

	report := &Report{Previous: previous, Latest: latest}
	for _, network := range networks {
		for _, modality := range modalities {
			filter := store.StatisticsFilter{
				NetworkID:   network,
				Modality:    modality,
				IsProtected: true,
				IsRaw:       true,
			}
			if general[modality] {
				filter.IsProtected, filter.IsRaw = false, false
			}

			filter.Timestamp = previous
			before, err := b.store.SumStatistics(ctx, filter)
			if err != nil {
				return nil, err
			}
			filter.Timestamp = latest
			after, err := b.store.SumStatistics(ctx, filter)
			if err != nil {
				return nil, err
			}

			if before.FilesCount == 0 && after.FilesCount == 0 {
				continue
			}

			delta := Compute(before, after)
			delta.Network = network
			delta.Modality = modality
			delta.IsProtected = filter.IsProtected
			delta.IsRaw = filter.IsRaw

			report.Deltas = append(report.Deltas, delta)
			report.IssueDetected = report.IssueDetected || delta.Stalled
		}
	}

	return report, nil
}

// Compute returns latest minus previous for both metrics.
func Compute(previous, latest models.Totals) Delta {
	d := Delta{
		Previous:    previous,
		Latest:      latest,
		FilesDelta:  latest.FilesCount - previous.FilesCount,
		SizeDeltaMB: latest.FilesSizeMB - previous.FilesSizeMB,
	}
	d.Stalled = d.FilesDelta == 0 || d.SizeDeltaMB == 0
	return d
}

// Stalled lists the deltas that raised the issue flag.
func (r *Report) Stalled() []Delta {
	var stalled []Delta
	for _, d := range r.Deltas {
		if d.Stalled {
			stalled = append(stalled, d)
		}
	}
	return stalled
}

func (b *Builder) networks(ctx context.Context) ([]string, error) {
	if len(b.cfg.Networks) > 0 {
		return b.cfg.Networks, nil
	}

	networks, err := b.store.ListNetworks(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(networks))
	for _, network := range networks {
		ids = append(ids, network.NetworkID)
	}
	return ids, nil
}

// modalities are the crawled modalities, the configured sub-types of those
// present, and every modality the two generations hold rows for. The last
// covers sub-types whose values were discovered from file metadata.
func (b *Builder) modalities(ctx context.Context, previous, latest time.Time) ([]string, error) {
	crawled, err := b.store.ListModalities(ctx)
	if err != nil {
		return nil, err
	}
	written, err := b.store.ListStatisticsModalities(ctx, previous, latest)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(crawled)+len(written))
	var modalities []string
	add := func(modality string) {
		if !seen[modality] {
			seen[modality] = true
			modalities = append(modalities, modality)
		}
	}

	for _, modality := range crawled {
		add(modality)
	}
	for _, rule := range b.subTypes {
		if !seen[rule.Modality] {
			continue
		}
		for _, value := range rule.Values {
			add(statistics.SubTypeModality(rule.Modality, value))
		}
	}
	for _, modality := range written {
		add(modality)
	}

	sort.Strings(modalities)
	return modalities, nil
}
