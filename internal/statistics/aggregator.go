package statistics

import (
	"context"
	"fmt"
	"sort"
	"time"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/phoenix"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
)

// FileReader reads reconciled files back from the metadata store.
type FileReader interface {
	ListSubjectModalities(ctx context.Context, key models.SubjectKey) ([]string, error)
	ListSubjectModalityFiles(ctx context.Context, key models.SubjectKey, modality string) ([]models.FileRecord, error)
	ListSubjectModalityFilesByMetadata(ctx context.Context, query store.MetadataQuery) ([]models.FileRecord, error)
}

// Aggregator computes the statistics rows of one subject.
type Aggregator struct {
	store FileReader
	rules map[string]config.SubTypeConfig
}

func NewAggregator(st FileReader, rules []config.SubTypeConfig) *Aggregator {
	a := &Aggregator{
		store: st,
		rules: make(map[string]config.SubTypeConfig, len(rules)),
	}
	for _, rule := range rules {
		a.rules[rule.Modality] = rule
	}
	return a
}

// SubTypeModality names the synthetic modality of a sub-type, e.g.
// "phone_sensor".
func SubTypeModality(modality, value string) string {
	return fmt.Sprintf("%s_%s", modality, value)
}

// Subject returns one row per modality partition that holds files, plus one
// row per sub-type value found in the protected raw partition of an
// enrichable modality. Partitions without files produce no row.
func (a *Aggregator) Subject(ctx context.Context, key models.SubjectKey, ts time.Time) ([]models.VolumeStatistics, error) {
	modalities, err := a.store.ListSubjectModalities(ctx, key)
	if err != nil {
		return nil, phoenix.ErrTransientIO.Wrap(err)
	}

	var rows []models.VolumeStatistics
	for _, modality := range modalities {
		records, err := a.store.ListSubjectModalityFiles(ctx, key, modality)
		if err != nil {
			return nil, phoenix.ErrTransientIO.Wrap(err)
		}

		partitions := make(map[phoenix.Partition]models.Totals)
		for _, record := range records {
			p := phoenix.Partition{Protected: record.IsProtected, Raw: record.IsRaw}
			totals := partitions[p]
			totals.FilesCount++
			totals.FilesSizeMB += models.SizeMB(record.FileSizeBytes)
			partitions[p] = totals
		}

		for _, p := range phoenix.Partitions {
			totals, ok := partitions[p]
			if !ok {
				continue
			}
			rows = append(rows, row(key, p, modality, ts, totals))
		}

		rule, ok := a.rules[modality]
		if !ok {
			continue
		}
		if _, ok := partitions[enriched]; !ok {
			continue
		}

		subRows, err := a.subTypes(ctx, key, rule, records, ts)
		if err != nil {
			return nil, err
		}
		rows = append(rows, subRows...)
	}

	return rows, nil
}

// Sub-types only exist for protected raw data.
var enriched = phoenix.Partition{Protected: true, Raw: true}

func (a *Aggregator) subTypes(ctx context.Context, key models.SubjectKey, rule config.SubTypeConfig, records []models.FileRecord, ts time.Time) ([]models.VolumeStatistics, error) {
	values := rule.Values
	if len(values) == 0 {
		values = discoverValues(rule.Key, records)
	}

	var rows []models.VolumeStatistics
	for _, value := range values {
		matched, err := a.store.ListSubjectModalityFilesByMetadata(ctx, store.MetadataQuery{
			Subject:     key,
			Modality:    rule.Modality,
			IsProtected: enriched.Protected,
			IsRaw:       enriched.Raw,
			Key:         rule.Key,
			Value:       value,
		})
		if err != nil {
			return nil, phoenix.ErrTransientIO.Wrap(err)
		}
		if len(matched) == 0 {
			continue
		}

		totals := models.Totals{}
		for _, record := range matched {
			totals.FilesCount++
			totals.FilesSizeMB += models.SizeMB(record.FileSizeBytes)
		}
		rows = append(rows, row(key, enriched, SubTypeModality(rule.Modality, value), ts, totals))
	}

	return rows, nil
}

// discoverValues collects the distinct string values of key in the protected
// raw records.
func discoverValues(key string, records []models.FileRecord) []string {
	seen := make(map[string]bool)
	for _, record := range records {
		if !record.IsProtected || !record.IsRaw {
			continue
		}
		value, ok := record.Metadata[key].(string)
		if ok && value != "" {
			seen[value] = true
		}
	}

	values := make([]string, 0, len(seen))
	for value := range seen {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}

func row(key models.SubjectKey, p phoenix.Partition, modality string, ts time.Time, totals models.Totals) models.VolumeStatistics {
	return models.VolumeStatistics{
		StudyID:             key.StudyID,
		SubjectID:           key.SubjectID,
		IsRaw:               p.Raw,
		IsProtected:         p.Protected,
		Modality:            modality,
		StatisticsTimestamp: ts,
		FilesCount:          totals.FilesCount,
		FilesSizeMB:         totals.FilesSizeMB,
	}
}
