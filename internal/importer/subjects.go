package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gorm.io/datatypes"

	"github.com/mwantia/phoenix-tracker/internal/phoenix"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

const (
	columnSubjectID = "Subject ID"
	columnActive    = "Active"
	columnConsent   = "Consent"
	columnStudy     = "Study"

	consentLayout = "2006-01-02"
)

var requiredColumns = []string{columnSubjectID, columnActive, columnConsent, columnStudy}

// SubjectStore receives the subjects of a study.
type SubjectStore interface {
	ListStudies(ctx context.Context) ([]models.Study, error)
	UpsertSubjects(ctx context.Context, subjects []models.Subject) (store.BatchResult, error)
}

type SubjectsResult struct {
	Studies  int
	Missing  int
	Written  int
	Skipped  int
	Rejected int
}

type SubjectImporter struct {
	store     SubjectStore
	fs        afero.Fs
	dataRoots []string
	log       log.LoggerService
}

func NewSubjectImporter(st SubjectStore, fs afero.Fs, dataRoots []string, logger log.LoggerService) *SubjectImporter {
	return &SubjectImporter{
		store:     st,
		fs:        fs,
		dataRoots: dataRoots,
		log:       logger,
	}
}

// Import reads the metadata CSV of every study, or of the named study only.
// A study without a CSV is logged and counted as missing.
func (si *SubjectImporter) Import(ctx context.Context, studyID string) (SubjectsResult, error) {
	layout, err := phoenix.NewLayout(si.fs, si.dataRoots)
	if err != nil {
		return SubjectsResult{}, err
	}

	studies, err := si.store.ListStudies(ctx)
	if err != nil {
		return SubjectsResult{}, err
	}

	result := SubjectsResult{}
	for _, study := range studies {
		if studyID != "" && study.StudyID != studyID {
			continue
		}
		result.Studies++

		if err := layout.Resolve(study); err != nil {
			if phoenix.ErrNotFound.Has(err) {
				si.log.Warn("Study %s: %v", study.StudyID, err)
				result.Missing++
				continue
			}
			return result, err
		}

		path, err := layout.MetadataFile(study)
		if err != nil {
			return result, err
		}

		subjects, skipped, err := si.read(study.StudyID, path)
		if errors.Is(err, os.ErrNotExist) {
			si.log.Warn("Study %s has no metadata file at %s", study.StudyID, path)
			result.Missing++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to read %s: %w", path, err)
		}
		result.Skipped += skipped

		written, err := si.store.UpsertSubjects(ctx, subjects)
		if err != nil {
			return result, err
		}
		for _, failed := range written.Failed {
			si.log.Warn("Rejected subject %s: %v", failed.Key, failed.Err)
		}
		result.Written += written.Written
		result.Rejected += len(written.Failed)

		si.log.Info("Study %s: %d subjects imported", study.StudyID, written.Written)
	}

	if studyID != "" && result.Studies == 0 {
		return result, phoenix.ErrUnknownEntity.New("study %q", studyID)
	}
	return result, nil
}

func (si *SubjectImporter) read(studyID, path string) ([]models.Subject, int, error) {
	f, err := si.fs.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	return ParseSubjects(studyID, f)
}

// ParseSubjects reads a study metadata CSV. Rows missing any required column
// value are skipped and counted; every other non-empty column is kept as an
// optional note.
func ParseSubjects(studyID string, r io.Reader) ([]models.Subject, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", column)
		}
	}

	var subjects []models.Subject
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, err
		}

		subject, ok := parseSubject(studyID, header, index, record)
		if !ok {
			skipped++
			continue
		}
		subjects = append(subjects, subject)
	}

	return subjects, skipped, nil
}

func parseSubject(studyID string, header []string, index map[string]int, record []string) (models.Subject, bool) {
	field := func(column string) string {
		i := index[column]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	for _, column := range requiredColumns {
		if field(column) == "" {
			return models.Subject{}, false
		}
	}

	active, ok := parseActive(field(columnActive))
	if !ok {
		return models.Subject{}, false
	}
	consent, err := time.Parse(consentLayout, field(columnConsent))
	if err != nil {
		return models.Subject{}, false
	}

	notes := datatypes.JSONMap{}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if isRequired(name) || i >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[i])
		if value == "" {
			continue
		}
		notes[name] = noteValue(value)
	}

	return models.Subject{
		StudyID:       studyID,
		SubjectID:     field(columnSubjectID),
		IsActive:      active,
		ConsentDate:   consent,
		OptionalNotes: notes,
	}, true
}

// parseActive accepts booleans and numbers, where any non-zero number is
// active.
func parseActive(value string) (bool, bool) {
	if b, err := strconv.ParseBool(value); err == nil {
		return b, true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f != 0, true
	}
	return false, false
}

// noteValue keeps booleans and numbers typed, everything else as a string.
func noteValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func isRequired(column string) bool {
	for _, required := range requiredColumns {
		if column == required {
			return true
		}
	}
	return false
}
