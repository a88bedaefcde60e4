// Package storetest provides migrated SQLite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
)

// New opens a migrated store in a temporary directory. It is closed when the
// test ends.
func New(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "phoenix.db"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// Seed writes a network, one study and its subjects.
func Seed(t testing.TB, st store.MetadataStore, networkID, studyID string, subjectIDs ...string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.UpsertNetwork(ctx, &models.Network{NetworkID: networkID}))
	require.NoError(t, st.UpsertStudy(ctx, &models.Study{
		StudyID:   studyID,
		StudyName: studyID,
		NetworkID: networkID,
	}))

	subjects := make([]models.Subject, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		subjects = append(subjects, models.Subject{
			StudyID:     studyID,
			SubjectID:   id,
			IsActive:    true,
			ConsentDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		})
	}

	result, err := st.UpsertSubjects(ctx, subjects)
	require.NoError(t, err)
	require.Empty(t, result.Failed)
}

// File builds a classified file of the given size.
func File(key models.SubjectKey, path, modality string, protected, raw bool, size int64) models.ClassifiedFile {
	return models.ClassifiedFile{
		File: models.File{
			FilePath:      path,
			FileName:      filepath.Base(path),
			FileType:      filepath.Ext(path),
			FileSizeBytes: size,
			FileSizeMB:    models.SizeMB(size),
			ModifiedAt:    time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
		},
		Phoenix: models.PhoenixFile{
			FilePath:           path,
			StudyID:            key.StudyID,
			SubjectID:          key.SubjectID,
			Modality:           modality,
			IsProtected:        protected,
			IsRaw:              raw,
			ExtractedTimestamp: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
		},
	}
}
