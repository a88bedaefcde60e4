package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/errs"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mwantia/phoenix-tracker/pkg/db/migrations"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

var (
	// Error wraps failures of the underlying database.
	Error = errs.Class("metadata store")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errs.Class("record not found")
	// ErrGenerationExists rejects statistics rows whose timestamp already
	// names a stored generation.
	ErrGenerationExists = errs.Class("statistics generation exists")
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"

	insertBatchSize = 500
)

var (
	fileConflict = clause.OnConflict{
		Columns: []clause.Column{{Name: "file_path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_name", "file_type", "file_size_bytes", "file_size_mb", "m_time", "md5",
		}),
	}
	// A crawl writes empty metadata; it never clears what enrichment added.
	phoenixFileConflict = clause.OnConflict{
		Columns: []clause.Column{{Name: "file_path"}},
		DoUpdates: append(clause.AssignmentColumns([]string{
			"study_id", "subject_id", "is_raw", "is_protected", "modality", "extracted_timestamp",
		}), clause.Assignment{
			Column: clause.Column{Name: "metadata"},
			Value:  gorm.Expr("CASE WHEN excluded.metadata = '{}' THEN phoenix_file.metadata ELSE excluded.metadata END"),
		}),
	}
	subjectConflict = clause.OnConflict{
		Columns:   []clause.Column{{Name: "study_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "consent_date", "optional_notes"}),
	}
	studyConflict = clause.OnConflict{
		Columns: []clause.Column{{Name: "study_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"study_name", "study_country", "study_country_code", "network_id",
		}),
	}
)

// Store implements MetadataStore on top of GORM
type Store struct {
	db      *gorm.DB
	dialect string
	maxOpen int
}

var _ MetadataStore = (*Store)(nil)

func open(dialector gorm.Dialector, dialect string, level logger.LogLevel, maxOpen int) (*Store, error) {
	// Default to silent logging
	if level == 0 {
		level = logger.Silent
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	return &Store{
		db:      db,
		dialect: dialect,
		maxOpen: maxOpen,
	}, nil
}

// DB returns the underlying GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrator returns the versioned schema migrator
func (s *Store) Migrator() *migrations.Migrator {
	return migrations.NewMigrator(s.db)
}

// Connect initializes the database connection
func (s *Store) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite only supports 1 writer
	sqlDB.SetMaxOpenConns(s.maxOpen)
	sqlDB.SetMaxIdleConns(s.maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs pending schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Migrator().Migrate(ctx)
	return err
}

// Health checks database connectivity
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Network and study operations

func (s *Store) UpsertNetwork(ctx context.Context, network *models.Network) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(network).Error
	return Error.Wrap(err)
}

func (s *Store) UpsertStudy(ctx context.Context, study *models.Study) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(studyConflict).
		Create(study).Error
	return Error.Wrap(err)
}

func (s *Store) GetStudy(ctx context.Context, studyID string) (*models.Study, error) {
	var study models.Study
	err := s.db.WithContext(ctx).Where("study_id = ?", studyID).Take(&study).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound.New("study %q", studyID)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &study, nil
}

func (s *Store) ListStudies(ctx context.Context) ([]models.Study, error) {
	var studies []models.Study
	err := s.db.WithContext(ctx).Order("study_id").Find(&studies).Error
	return studies, Error.Wrap(err)
}

func (s *Store) ListNetworks(ctx context.Context) ([]models.Network, error) {
	var networks []models.Network
	err := s.db.WithContext(ctx).Order("network_id").Find(&networks).Error
	return networks, Error.Wrap(err)
}

// Subject operations

func (s *Store) UpsertSubjects(ctx context.Context, subjects []models.Subject) (BatchResult, error) {
	result := BatchResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range subjects {
			subject := &subjects[i]
			if subject.OptionalNotes == nil {
				subject.OptionalNotes = datatypes.JSONMap{}
			}

			// Nested transactions are savepoints; a rejected row rolls back alone.
			rowErr := tx.Transaction(func(row *gorm.DB) error {
				return row.Omit(clause.Associations).Clauses(subjectConflict).Create(subject).Error
			})
			if rowErr != nil {
				result.Failed = append(result.Failed, RowError{Key: subject.Key().String(), Err: rowErr})
				continue
			}
			result.Written++
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, Error.Wrap(err)
	}

	return result, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	err := s.db.WithContext(ctx).Order("study_id, subject_id").Find(&subjects).Error
	return subjects, Error.Wrap(err)
}

// File operations

// UpsertFiles writes files and their classification in one transaction. A
// path that exists is refreshed in place; a row that violates a constraint is
// reported in the result and the remaining rows are still written.
func (s *Store) UpsertFiles(ctx context.Context, files []models.ClassifiedFile) (BatchResult, error) {
	result := BatchResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range files {
			entry := &files[i]
			if entry.Phoenix.Metadata == nil {
				entry.Phoenix.Metadata = datatypes.JSONMap{}
			}
			entry.Phoenix.ExtractedTimestamp = normalizeTime(entry.Phoenix.ExtractedTimestamp)
			entry.File.ModifiedAt = normalizeTime(entry.File.ModifiedAt)

			rowErr := tx.Transaction(func(row *gorm.DB) error {
				if err := row.Omit(clause.Associations).Clauses(fileConflict).Create(&entry.File).Error; err != nil {
					return err
				}
				return row.Omit(clause.Associations).Clauses(phoenixFileConflict).Create(&entry.Phoenix).Error
			})
			if rowErr != nil {
				result.Failed = append(result.Failed, RowError{Key: entry.File.FilePath, Err: rowErr})
				continue
			}
			result.Written++
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, Error.Wrap(err)
	}

	return result, nil
}

func (s *Store) CountPhoenixFiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PhoenixFile{}).Count(&count).Error
	return count, Error.Wrap(err)
}

// ListModalities returns every modality seen across all subjects.
func (s *Store) ListModalities(ctx context.Context) ([]string, error) {
	var modalities []string
	err := s.db.WithContext(ctx).
		Model(&models.PhoenixFile{}).
		Distinct().
		Order("modality").
		Pluck("modality", &modalities).Error
	return modalities, Error.Wrap(err)
}

func (s *Store) ListSubjectModalities(ctx context.Context, key models.SubjectKey) ([]string, error) {
	var modalities []string
	err := s.db.WithContext(ctx).
		Model(&models.PhoenixFile{}).
		Where("study_id = ? AND subject_id = ?", key.StudyID, key.SubjectID).
		Distinct().
		Order("modality").
		Pluck("modality", &modalities).Error
	return modalities, Error.Wrap(err)
}

func (s *Store) ListSubjectModalityFiles(ctx context.Context, key models.SubjectKey, modality string) ([]models.FileRecord, error) {
	var records []models.FileRecord
	err := s.fileRecords(ctx).
		Where("phoenix_file.study_id = ? AND phoenix_file.subject_id = ? AND phoenix_file.modality = ?",
			key.StudyID, key.SubjectID, modality).
		Scan(&records).Error
	return records, Error.Wrap(err)
}

func (s *Store) ListSubjectModalityFilesByMetadata(ctx context.Context, query MetadataQuery) ([]models.FileRecord, error) {
	var records []models.FileRecord
	err := s.fileRecords(ctx).
		Where("phoenix_file.study_id = ? AND phoenix_file.subject_id = ? AND phoenix_file.modality = ?",
			query.Subject.StudyID, query.Subject.SubjectID, query.Modality).
		Where("phoenix_file.is_protected = ? AND phoenix_file.is_raw = ?", query.IsProtected, query.IsRaw).
		Where(datatypes.JSONQuery("phoenix_file.metadata").Equals(query.Value, query.Key)).
		Scan(&records).Error
	return records, Error.Wrap(err)
}

func (s *Store) fileRecords(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("phoenix_file").
		Select("phoenix_file.file_path, phoenix_file.modality, phoenix_file.is_raw, " +
			"phoenix_file.is_protected, phoenix_file.metadata, files.file_size_bytes").
		Joins("JOIN files ON files.file_path = phoenix_file.file_path")
}

// Statistics operations

// InsertStatistics appends one generation. Rows are never updated; a batch
// that reuses a stored timestamp fails as a whole.
func (s *Store) InsertStatistics(ctx context.Context, rows []models.VolumeStatistics) error {
	if len(rows) == 0 {
		return nil
	}

	timestamps := make(map[time.Time]bool)
	for i := range rows {
		rows[i].StatisticsTimestamp = normalizeTime(rows[i].StatisticsTimestamp)
		timestamps[rows[i].StatisticsTimestamp] = true
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for ts := range timestamps {
			var existing int64
			err := tx.Model(&models.VolumeStatistics{}).
				Where("statistics_timestamp = ?", ts).
				Count(&existing).Error
			if err != nil {
				return Error.Wrap(err)
			}
			if existing > 0 {
				return ErrGenerationExists.New("%s already holds %d rows", ts.Format(time.RFC3339Nano), existing)
			}
		}

		if err := tx.Omit(clause.Associations).CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return Error.Wrap(err)
		}
		return nil
	})

	return err
}

func (s *Store) LatestStatisticsTimestamp(ctx context.Context) (time.Time, error) {
	var row models.VolumeStatistics
	err := s.db.WithContext(ctx).
		Order("statistics_timestamp DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrNotFound.New("no statistics generation")
	}
	if err != nil {
		return time.Time{}, Error.Wrap(err)
	}
	return row.StatisticsTimestamp.UTC(), nil
}

func (s *Store) StatisticsTimestampBefore(ctx context.Context, before time.Time) (time.Time, error) {
	var row models.VolumeStatistics
	err := s.db.WithContext(ctx).
		Where("statistics_timestamp < ?", normalizeTime(before)).
		Order("statistics_timestamp DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrNotFound.New("no statistics generation before %s", before.Format(time.RFC3339))
	}
	if err != nil {
		return time.Time{}, Error.Wrap(err)
	}
	return row.StatisticsTimestamp.UTC(), nil
}

// SumStatistics totals one partition of a generation across every subject
// and study of a network.
func (s *Store) SumStatistics(ctx context.Context, filter StatisticsFilter) (models.Totals, error) {
	var totals models.Totals
	err := s.db.WithContext(ctx).
		Model(&models.VolumeStatistics{}).
		Select("COALESCE(SUM(volume_statistics.files_count), 0) AS files_count, "+
			"COALESCE(SUM(volume_statistics.files_size_mb), 0) AS files_size_mb").
		Joins("JOIN study ON study.study_id = volume_statistics.study_id").
		Where("volume_statistics.statistics_timestamp = ?", normalizeTime(filter.Timestamp)).
		Where("volume_statistics.modality = ? AND study.network_id = ?", filter.Modality, filter.NetworkID).
		Where("volume_statistics.is_raw = ? AND volume_statistics.is_protected = ?", filter.IsRaw, filter.IsProtected).
		Scan(&totals).Error
	return totals, Error.Wrap(err)
}

// ListStatisticsModalities returns the modalities, sub-types included, that
// have rows in any of the given generations, or in any generation when none
// is given.
func (s *Store) ListStatisticsModalities(ctx context.Context, timestamps ...time.Time) ([]string, error) {
	query := s.db.WithContext(ctx).Model(&models.VolumeStatistics{})
	if len(timestamps) > 0 {
		normalized := make([]time.Time, 0, len(timestamps))
		for _, ts := range timestamps {
			normalized = append(normalized, normalizeTime(ts))
		}
		query = query.Where("statistics_timestamp IN ?", normalized)
	}

	var modalities []string
	err := query.Distinct().Order("modality").Pluck("modality", &modalities).Error
	return modalities, Error.Wrap(err)
}

// Run operations

func (s *Store) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	return Error.Wrap(s.db.WithContext(ctx).Create(run).Error)
}

func (s *Store) UpdateRun(ctx context.Context, run *models.PipelineRun) error {
	return Error.Wrap(s.db.WithContext(ctx).Save(run).Error)
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	var runs []models.PipelineRun
	query := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, Error.Wrap(err)
}

// normalizeTime keeps timestamps comparable across drivers.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Microsecond)
}
