package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/internal/phoenix"
	"github.com/mwantia/phoenix-tracker/internal/phoenix/phoenixtest"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/db/store/storetest"
	"github.com/mwantia/phoenix-tracker/pkg/log"
	"github.com/mwantia/phoenix-tracker/pkg/progress"
)

var (
	first  = models.SubjectKey{StudyID: "YA", SubjectID: "YA00001"}
	second = models.SubjectKey{StudyID: "YA", SubjectID: "YA00002"}
	third  = models.SubjectKey{StudyID: "YA", SubjectID: "YA00003"}
)

// buildTree lays out seven files across three subjects.
func buildTree(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()

	files := []struct {
		path string
		size int
	}{
		{"/data/PROTECTED/PronetYA/raw/YA00001/mri/a.dcm", 1024},
		{"/data/PROTECTED/PronetYA/raw/YA00001/mri/run1/b.dcm", 2048},
		{"/data/PROTECTED/PronetYA/processed/YA00001/mri/c.nii", 4096},
		{"/data/GENERAL/PronetYA/processed/YA00001/interviews/transcript.txt", 300},
		{"/data/PROTECTED/PronetYA/raw/YA00002/phone/1.json", 10},
		{"/data/PROTECTED/PronetYA/raw/YA00002/phone/2.json", 20},
		{"/data/PROTECTED/PronetYA/raw/YA00003/eeg/e.edf", 500},
	}
	for _, f := range files {
		phoenixtest.WriteFile(t, fs, f.path, f.size)
	}
	return fs
}

func newCrawler(t *testing.T, fs afero.Fs) (*Crawler, *store.Store) {
	t.Helper()

	st := storetest.New(t)
	storetest.Seed(t, st, "PRONET", "YA", first.SubjectID, second.SubjectID, third.SubjectID)

	cfg := config.PipelineServerConfig{
		DataRoots: []string{"/data"},
		Workers:   2,
	}
	return New(st, fs, cfg, log.NewNopLogger(), nil), st
}

func TestCrawlFindsEveryFile(t *testing.T) {
	ctx := context.Background()
	c, st := newCrawler(t, buildTree(t))

	result, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Subjects)
	assert.Zero(t, result.SubjectsFailed)
	assert.Equal(t, 7, result.FilesFound)
	assert.Equal(t, 7, result.FilesReconciled)
	assert.Zero(t, result.FilesFailed)
	assert.NotEmpty(t, result.RunID)

	mri, err := st.ListSubjectModalityFiles(ctx, first, "mri")
	require.NoError(t, err)
	require.Len(t, mri, 3)

	partitions := map[phoenix.Partition]int{}
	for _, record := range mri {
		partitions[phoenix.Partition{Protected: record.IsProtected, Raw: record.IsRaw}]++
	}
	assert.Equal(t, 2, partitions[phoenix.Partition{Protected: true, Raw: true}])
	assert.Equal(t, 1, partitions[phoenix.Partition{Protected: true, Raw: false}])

	interviews, err := st.ListSubjectModalityFiles(ctx, first, "interviews")
	require.NoError(t, err)
	require.Len(t, interviews, 1)
	assert.False(t, interviews[0].IsProtected)
	assert.False(t, interviews[0].IsRaw)

	runs, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, int64(7), runs[0].Processed)
}

func TestCrawlIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, st := newCrawler(t, buildTree(t))

	now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })

	_, err := c.Run(ctx)
	require.NoError(t, err)
	before, err := st.ListSubjectModalityFiles(ctx, second, "phone")
	require.NoError(t, err)

	again, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, again.FilesReconciled)

	count, err := st.CountPhoenixFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	after, err := st.ListSubjectModalityFiles(ctx, second, "phone")
	require.NoError(t, err)
	assert.ElementsMatch(t, before, after)
}

func TestCrawlIsolatesUnreadableSubject(t *testing.T) {
	ctx := context.Background()
	fs := &phoenixtest.DenyFs{
		Fs:     buildTree(t),
		Prefix: "/data/PROTECTED/PronetYA/raw/YA00001",
	}
	c, st := newCrawler(t, fs)

	result, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SubjectsFailed)
	assert.Equal(t, 3, result.FilesReconciled)

	failed, err := st.ListSubjectModalities(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, failed)

	phone, err := st.ListSubjectModalityFiles(ctx, second, "phone")
	require.NoError(t, err)
	assert.Len(t, phone, 2)

	eeg, err := st.ListSubjectModalityFiles(ctx, third, "eeg")
	require.NoError(t, err)
	assert.Len(t, eeg, 1)
}

func TestCrawlSkipsStudyWithoutDirectory(t *testing.T) {
	ctx := context.Background()
	c, st := newCrawler(t, afero.NewMemMapFs())
	storetest.Seed(t, st, "PRESCIENT", "ME", "ME00001")

	recorder := &progress.Recorder{}
	c.sink = recorder

	result, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Subjects)
	assert.Zero(t, result.SubjectsFailed)
	assert.Zero(t, result.FilesReconciled)
	assert.Equal(t, 4, recorder.Total)
	assert.True(t, recorder.Done)
}

func TestCrawlRejectsMissingDataRoots(t *testing.T) {
	c, _ := newCrawler(t, afero.NewMemMapFs())
	c.cfg.DataRoots = nil

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, config.ErrFatalConfig.Has(err))
}

func TestReconcilerDropsUnknownSubjects(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	storetest.Seed(t, st, "PRONET", "YA", first.SubjectID)

	unknown := models.SubjectKey{StudyID: "YA", SubjectID: "YA09999"}
	known := func(key models.SubjectKey) bool { return key == first }

	result, err := NewReconciler(st, log.NewNopLogger()).Reconcile(ctx, known, []models.ClassifiedFile{
		storetest.File(first, "/a", "mri", true, true, 1),
		storetest.File(unknown, "/b", "mri", true, true, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, result.Unknown)
	assert.Equal(t, 1, result.Failed())

	// Without the pre-filter the store rejects the row itself.
	result, err = NewReconciler(st, log.NewNopLogger()).Reconcile(ctx, nil, []models.ClassifiedFile{
		storetest.File(unknown, "/c", "mri", true, true, 1),
	})
	require.NoError(t, err)
	assert.Zero(t, result.Written)
	assert.Equal(t, 1, result.Rejected)
}
