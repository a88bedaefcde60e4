package phoenix

import (
	"context"
	"sort"

	"github.com/spf13/afero"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

// Directory is the part of the metadata store a run reads its work from.
type Directory interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	ListStudies(ctx context.Context) ([]models.Study, error)
}

// Catalog is the per-run view of known subjects and where their studies live.
// It is filled before workers start and only read afterwards.
type Catalog struct {
	Layout   *Layout
	Subjects []models.SubjectKey

	studies    map[string]models.Study
	unresolved map[string]error
	known      map[models.SubjectKey]bool
}

// LoadCatalog reads every subject and study once and resolves each study's
// data root. A study missing from all data roots is recorded, not fatal; its
// subjects simply have no partitions.
func LoadCatalog(ctx context.Context, dir Directory, fs afero.Fs, dataRoots []string, logger log.LoggerService) (*Catalog, error) {
	layout, err := NewLayout(fs, dataRoots)
	if err != nil {
		return nil, err
	}

	subjects, err := dir.ListSubjects(ctx)
	if err != nil {
		return nil, ErrTransientIO.Wrap(err)
	}
	studies, err := dir.ListStudies(ctx)
	if err != nil {
		return nil, ErrTransientIO.Wrap(err)
	}

	c := &Catalog{
		Layout:     layout,
		studies:    make(map[string]models.Study, len(studies)),
		unresolved: make(map[string]error),
		known:      make(map[models.SubjectKey]bool, len(subjects)),
	}
	for _, study := range studies {
		c.studies[study.StudyID] = study
	}

	wanted := make(map[string]bool)
	for _, subject := range subjects {
		key := subject.Key()
		c.Subjects = append(c.Subjects, key)
		c.known[key] = true
		wanted[key.StudyID] = true
	}

	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		study, ok := c.studies[id]
		if !ok {
			c.unresolved[id] = ErrUnknownEntity.New("study %q", id)
			continue
		}

		err := layout.Resolve(study)
		switch {
		case err == nil:
		case ErrNotFound.Has(err), ErrTransientIO.Has(err):
			logger.Warn("Study %s: %v", id, err)
			c.unresolved[id] = err
		default:
			return nil, err
		}
	}

	return c, nil
}

// Study returns the resolved study of a subject. The error is ErrUnknownEntity
// when the store does not know the study, or the resolution error otherwise.
func (c *Catalog) Study(studyID string) (models.Study, error) {
	if err, ok := c.unresolved[studyID]; ok {
		return models.Study{}, err
	}
	study, ok := c.studies[studyID]
	if !ok {
		return models.Study{}, ErrUnknownEntity.New("study %q", studyID)
	}
	return study, nil
}

// Known reports whether the subject exists in the store.
func (c *Catalog) Known(key models.SubjectKey) bool {
	return c.known[key]
}
