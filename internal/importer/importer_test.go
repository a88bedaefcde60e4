package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/phoenix-tracker/internal/phoenix"
	"github.com/mwantia/phoenix-tracker/pkg/db/store/storetest"
	"github.com/mwantia/phoenix-tracker/pkg/log"
)

const sites = `[
	{"id": "YA", "name": "Yale", "country": "United States", "country_code": "US", "network": "PRONET"},
	{"id": "LA", "name": "UCLA", "country": "United States", "country_code": "US", "network": "PRONET"},
	{"id": "ME", "name": "Melbourne", "country": "Australia", "country_code": "AU", "network": "PRESCIENT"},
	{"id": "", "name": "Broken", "network": "PRONET"}
]`

const metadataCSV = `Subject ID,Active,Consent,Study,Cohort,Age,Recruited
YA00001,1,2023-05-01,YA,CHR,19,true
YA00002,0,2023-06-12,YA,HC,,false
YA00003,1,,YA,CHR,22,true
YA00004,yes,2023-07-01,YA,CHR,22,true
`

func TestImportSites(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)

	result, err := ImportSites(ctx, st, strings.NewReader(sites), log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Networks)
	assert.Equal(t, 3, result.Studies)
	assert.Equal(t, 1, result.Skipped)

	study, err := st.GetStudy(ctx, "ME")
	require.NoError(t, err)
	assert.Equal(t, "Melbourne", study.StudyName)
	assert.Equal(t, "AU", study.StudyCountryCode)
	assert.Equal(t, "PRESCIENT", study.NetworkID)

	// Importing twice updates in place.
	_, err = ImportSites(ctx, st, strings.NewReader(sites), log.NewNopLogger())
	require.NoError(t, err)
	studies, err := st.ListStudies(ctx)
	require.NoError(t, err)
	assert.Len(t, studies, 3)
}

func TestImportSitesRejectsInvalidJSON(t *testing.T) {
	_, err := ImportSites(context.Background(), storetest.New(t), strings.NewReader("{"), log.NewNopLogger())
	assert.Error(t, err)
}

func TestParseSubjects(t *testing.T) {
	subjects, skipped, err := ParseSubjects("YA", strings.NewReader(metadataCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, subjects, 2)

	first := subjects[0]
	assert.Equal(t, "YA", first.StudyID)
	assert.Equal(t, "YA00001", first.SubjectID)
	assert.True(t, first.IsActive)
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), first.ConsentDate)
	assert.Equal(t, "CHR", first.OptionalNotes["Cohort"])
	assert.Equal(t, 19.0, first.OptionalNotes["Age"])
	assert.Equal(t, true, first.OptionalNotes["Recruited"])
	assert.NotContains(t, first.OptionalNotes, "Study")

	second := subjects[1]
	assert.False(t, second.IsActive)
	assert.NotContains(t, second.OptionalNotes, "Age")
	assert.Equal(t, false, second.OptionalNotes["Recruited"])
}

func TestParseSubjectsRequiresColumns(t *testing.T) {
	_, _, err := ParseSubjects("YA", strings.NewReader("Subject ID,Active\nYA00001,1\n"))
	assert.Error(t, err)
}

func TestImportSubjects(t *testing.T) {
	ctx := context.Background()
	st := storetest.New(t)
	_, err := ImportSites(ctx, st, strings.NewReader(sites), log.NewNopLogger())
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data/PROTECTED/PronetYA", 0o755))
	require.NoError(t, fs.MkdirAll("/data/PROTECTED/PronetLA", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/PROTECTED/PronetYA/PronetYA_metadata.csv", []byte(metadataCSV), 0o644))

	importer := NewSubjectImporter(st, fs, []string{"/data"}, log.NewNopLogger())

	result, err := importer.Import(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Studies)
	// LA has no CSV and ME has no directory.
	assert.Equal(t, 2, result.Missing)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 2, result.Skipped)

	subjects, err := st.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "CHR", subjects[0].OptionalNotes["Cohort"])

	result, err = importer.Import(ctx, "YA")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Studies)
	assert.Equal(t, 2, result.Written)

	_, err = importer.Import(ctx, "ZZ")
	assert.True(t, phoenix.ErrUnknownEntity.Has(err))
}
