package statistics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
	"github.com/mwantia/phoenix-tracker/pkg/db/store"
	"github.com/mwantia/phoenix-tracker/pkg/db/store/storetest"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

const mb = 1024 * 1024

var (
	phoneSubject = models.SubjectKey{StudyID: "YA", SubjectID: "YA00001"}
	mriSubject   = models.SubjectKey{StudyID: "YA", SubjectID: "YA00002"}

	phoneRules = []config.SubTypeConfig{
		{Modality: "phone", Key: "mindlamp_type", Values: []string{"sensor", "activity"}},
		{Modality: "surveys", Key: "redcap_instance"},
	}
)

func tagged(key models.SubjectKey, path, modality string, protected, raw bool, size int64, metadata datatypes.JSONMap) models.ClassifiedFile {
	f := storetest.File(key, path, modality, protected, raw, size)
	f.Phoenix.Metadata = metadata
	return f
}

func seed(t *testing.T) *store.Store {
	t.Helper()

	st := storetest.New(t)
	storetest.Seed(t, st, "PRONET", "YA", phoneSubject.SubjectID, mriSubject.SubjectID)

	sensor := datatypes.JSONMap{"mindlamp_type": "sensor"}
	activity := datatypes.JSONMap{"mindlamp_type": "activity"}

	result, err := st.UpsertFiles(context.Background(), []models.ClassifiedFile{
		tagged(phoneSubject, "/p/YA00001/phone/s1.json", "phone", true, true, 1*mb, sensor),
		tagged(phoneSubject, "/p/YA00001/phone/s2.json", "phone", true, true, 1*mb, sensor),
		tagged(phoneSubject, "/p/YA00001/phone/a1.json", "phone", true, true, 2*mb, activity),
		tagged(phoneSubject, "/p/YA00001/phone/u1.json", "phone", true, true, 4*mb, nil),
		tagged(phoneSubject, "/pp/YA00001/phone/s3.json", "phone", true, false, 8*mb, sensor),
		tagged(phoneSubject, "/p/YA00001/surveys/1.csv", "surveys", true, true, mb, datatypes.JSONMap{"redcap_instance": "UPENN"}),
		tagged(phoneSubject, "/p/YA00001/surveys/2.csv", "surveys", true, true, mb, datatypes.JSONMap{"redcap_instance": "MGB"}),
		tagged(phoneSubject, "/p/YA00001/surveys/3.csv", "surveys", true, true, mb, datatypes.JSONMap{"redcap_instance": "MGB"}),
		tagged(mriSubject, "/p/YA00002/mri/a.dcm", "mri", true, true, 3*mb, nil),
		tagged(mriSubject, "/p/YA00002/mri/b.dcm", "mri", true, true, 3*mb, nil),
	})
	require.NoError(t, err)
	require.Empty(t, result.Failed)

	return st
}

func byModality(rows []models.VolumeStatistics) map[string][]models.VolumeStatistics {
	out := map[string][]models.VolumeStatistics{}
	for _, row := range rows {
		out[row.Modality] = append(out[row.Modality], row)
	}
	return out
}

func TestAggregatorIsSparse(t *testing.T) {
	ts := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	aggregator := NewAggregator(seed(t), phoneRules)

	rows, err := aggregator.Subject(context.Background(), mriSubject, ts)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "mri", row.Modality)
	assert.True(t, row.IsProtected)
	assert.True(t, row.IsRaw)
	assert.Equal(t, int64(2), row.FilesCount)
	assert.InDelta(t, 6.0, row.FilesSizeMB, 1e-9)
	assert.Equal(t, ts, row.StatisticsTimestamp)
}

func TestAggregatorSplitsSubTypes(t *testing.T) {
	ts := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	aggregator := NewAggregator(seed(t), phoneRules)

	rows, err := aggregator.Subject(context.Background(), phoneSubject, ts)
	require.NoError(t, err)
	modalities := byModality(rows)

	require.Len(t, modalities["phone"], 2)
	for _, row := range modalities["phone"] {
		if row.IsRaw {
			assert.Equal(t, int64(4), row.FilesCount)
			assert.InDelta(t, 8.0, row.FilesSizeMB, 1e-9)
		} else {
			assert.Equal(t, int64(1), row.FilesCount)
			assert.InDelta(t, 8.0, row.FilesSizeMB, 1e-9)
		}
	}

	require.Len(t, modalities["phone_sensor"], 1)
	require.Len(t, modalities["phone_activity"], 1)
	sensor := modalities["phone_sensor"][0]
	activity := modalities["phone_activity"][0]

	assert.Equal(t, int64(2), sensor.FilesCount)
	assert.InDelta(t, 2.0, sensor.FilesSizeMB, 1e-9)
	assert.True(t, sensor.IsProtected && sensor.IsRaw)
	assert.Equal(t, int64(1), activity.FilesCount)
	assert.LessOrEqual(t, sensor.FilesCount+activity.FilesCount, int64(4))

	// A rule without values uses the values present in the data.
	require.Len(t, modalities["surveys_MGB"], 1)
	require.Len(t, modalities["surveys_UPENN"], 1)
	assert.Equal(t, int64(2), modalities["surveys_MGB"][0].FilesCount)
}

func TestAggregatorWithoutRules(t *testing.T) {
	rows, err := NewAggregator(seed(t), nil).Subject(context.Background(), phoneSubject, time.Now())
	require.NoError(t, err)

	modalities := byModality(rows)
	assert.Len(t, modalities, 2)
	assert.Contains(t, modalities, "phone")
	assert.Contains(t, modalities, "surveys")
}

func TestServiceWritesOneGeneration(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	cfg := config.PipelineServerConfig{Workers: 2, SubTypes: phoneRules}
	service := NewService(st, cfg, log.NewNopLogger(), nil)

	ts := time.Date(2024, 3, 1, 6, 0, 0, 123456789, time.UTC)
	result, err := service.RunAt(ctx, ts)
	require.NoError(t, err)

	// phone x2, phone_sensor, phone_activity, surveys, surveys_MGB,
	// surveys_UPENN and mri.
	assert.Equal(t, 8, result.RowsWritten)
	assert.Equal(t, 2, result.Subjects)
	assert.Zero(t, result.SubjectsFailed)
	assert.True(t, result.Timestamp.Equal(ts.Truncate(time.Microsecond)))

	latest, err := st.LatestStatisticsTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Equal(result.Timestamp))

	totals, err := st.SumStatistics(ctx, store.StatisticsFilter{
		Timestamp:   result.Timestamp,
		NetworkID:   "PRONET",
		Modality:    "mri",
		IsProtected: true,
		IsRaw:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.FilesCount)
}

func TestServiceRejectsReusedTimestamp(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	service := NewService(st, config.PipelineServerConfig{Workers: 1}, log.NewNopLogger(), nil)

	ts := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	_, err := service.RunAt(ctx, ts)
	require.NoError(t, err)

	_, err = service.RunAt(ctx, ts)
	require.Error(t, err)
	assert.True(t, store.ErrGenerationExists.Has(err))

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	statuses := map[string]int{}
	for _, run := range runs {
		statuses[run.Status]++
	}
	assert.Equal(t, 1, statuses[models.RunStatusCompleted])
	assert.Equal(t, 1, statuses[models.RunStatusFailed])
}

// unreadableSubject fails every file listing of one subject.
type unreadableSubject struct {
	*store.Store
	key models.SubjectKey
}

func (u unreadableSubject) ListSubjectModalityFiles(ctx context.Context, key models.SubjectKey, modality string) ([]models.FileRecord, error) {
	if key == u.key {
		return nil, errors.New("connection reset")
	}
	return u.Store.ListSubjectModalityFiles(ctx, key, modality)
}

func TestServiceIsolatesFailingSubject(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	failing := unreadableSubject{Store: st, key: phoneSubject}
	service := NewService(failing, config.PipelineServerConfig{Workers: 2, SubTypes: phoneRules}, log.NewNopLogger(), nil)

	result, err := service.RunAt(ctx, time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Subjects)
	assert.Equal(t, 1, result.SubjectsFailed)
	assert.Equal(t, 1, result.RowsWritten)

	mri, err := st.SumStatistics(ctx, store.StatisticsFilter{
		Timestamp:   result.Timestamp,
		NetworkID:   "PRONET",
		Modality:    "mri",
		IsProtected: true,
		IsRaw:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mri.FilesCount)

	phone, err := st.SumStatistics(ctx, store.StatisticsFilter{
		Timestamp:   result.Timestamp,
		NetworkID:   "PRONET",
		Modality:    "phone",
		IsProtected: true,
		IsRaw:       true,
	})
	require.NoError(t, err)
	assert.Zero(t, phone.FilesCount)

	runs, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, int64(1), runs[0].Failed)
}
