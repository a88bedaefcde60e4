package phoenix

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"

	config "github.com/mwantia/phoenix-tracker/internal/config/server"
	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

// NetworkDirName converts a network id into its directory spelling, e.g.
// "PRONET" becomes "Pronet".
func NetworkDirName(networkID string) string {
	lower := strings.ToLower(networkID)
	r, size := utf8.DecodeRuneInString(lower)
	if r == utf8.RuneError {
		return lower
	}
	return string(unicode.ToUpper(r)) + lower[size:]
}

// StudyDirName is the directory of a study below PROTECTED or GENERAL.
func StudyDirName(networkID, studyID string) string {
	return NetworkDirName(networkID) + studyID
}

// Layout maps studies onto their directories in the configured data roots.
// It is built once per run and only read while workers are active.
type Layout struct {
	fs        afero.Fs
	dataRoots []string
	studies   map[string]studyRoot
}

type studyRoot struct {
	dataRoot string
	dirName  string
}

func NewLayout(fs afero.Fs, dataRoots []string) (*Layout, error) {
	if len(dataRoots) == 0 {
		return nil, config.ErrFatalConfig.New("no data roots configured")
	}

	return &Layout{
		fs:        fs,
		dataRoots: dataRoots,
		studies:   make(map[string]studyRoot),
	}, nil
}

// Resolve finds the data root holding a study. The first root containing
// PROTECTED/<Network><Study> wins. A study without a network is a
// configuration error; a study without a directory is NotFound.
func (l *Layout) Resolve(study models.Study) error {
	if _, ok := l.studies[study.StudyID]; ok {
		return nil
	}
	if study.NetworkID == "" {
		return config.ErrFatalConfig.New("study %q has no network", study.StudyID)
	}

	name := StudyDirName(study.NetworkID, study.StudyID)
	for _, root := range l.dataRoots {
		ok, err := afero.DirExists(l.fs, filepath.Join(root, protectedDir, name))
		if err != nil && !os.IsNotExist(err) {
			return ErrTransientIO.Wrap(err)
		}
		if ok {
			l.studies[study.StudyID] = studyRoot{dataRoot: root, dirName: name}
			return nil
		}
	}

	return ErrNotFound.New("study root for %s in %s", name, strings.Join(l.dataRoots, ","))
}

// StudyRoot returns <root>/<PROTECTED|GENERAL>/<Network><Study>.
func (l *Layout) StudyRoot(studyID string, protected bool) (string, error) {
	sr, ok := l.studies[studyID]
	if !ok {
		return "", ErrNotFound.New("study %q is not resolved", studyID)
	}

	level := generalDir
	if protected {
		level = protectedDir
	}
	return filepath.Join(sr.dataRoot, level, sr.dirName), nil
}

// SubjectDir returns the directory of one subject partition.
func (l *Layout) SubjectDir(key models.SubjectKey, p Partition) (string, error) {
	root, err := l.StudyRoot(key.StudyID, p.Protected)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, p.StageDir(), key.SubjectID), nil
}

// MetadataFile is the registry CSV a study keeps in its protected root.
func (l *Layout) MetadataFile(study models.Study) (string, error) {
	root, err := l.StudyRoot(study.StudyID, true)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, l.studies[study.StudyID].dirName+"_metadata.csv"), nil
}
