package phoenix

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gorm.io/datatypes"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

// Enumerator lists every regular file below a modality directory.
type Enumerator struct {
	fs   afero.Fs
	hash bool
	now  func() time.Time
}

func NewEnumerator(fs afero.Fs, hash bool) *Enumerator {
	return &Enumerator{
		fs:   fs,
		hash: hash,
		now:  time.Now,
	}
}

// SetNow overrides the clock used for extracted timestamps.
func (e *Enumerator) SetNow(now func() time.Time) {
	e.now = now
}

// Enumerate walks a modality directory recursively. A modality directory that
// is itself a link is walked through its target, with paths kept below the
// link. Symlinks to files are included, linked directories further down are
// not descended. The order of the result is unspecified.
func (e *Enumerator) Enumerate(key models.SubjectKey, p Partition, modality Modality) ([]models.ClassifiedFile, error) {
	roots, err := e.roots(modality.Path)
	if err != nil {
		return nil, ErrTransientIO.Wrap(err)
	}

	var files []models.ClassifiedFile
	visit := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := e.fs.Stat(path)
			if err != nil {
				// Dangling link.
				return nil
			}
			info = target
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		file, err := e.file(path, info)
		if err != nil {
			return err
		}

		files = append(files, models.ClassifiedFile{
			File: file,
			Phoenix: models.PhoenixFile{
				FilePath:           file.FilePath,
				StudyID:            key.StudyID,
				SubjectID:          key.SubjectID,
				Modality:           modality.Name,
				IsRaw:              p.Raw,
				IsProtected:        p.Protected,
				ExtractedTimestamp: e.now(),
				Metadata:           datatypes.JSONMap{},
			},
		})
		return nil
	}

	for _, root := range roots {
		if err := afero.Walk(e.fs, root, visit); err != nil {
			return nil, ErrTransientIO.Wrap(err)
		}
	}

	return files, nil
}

// roots returns the paths to walk for a modality directory. afero.Walk does
// not descend a linked root, so a link is replaced by its entries.
func (e *Enumerator) roots(dir string) ([]string, error) {
	lstater, ok := e.fs.(afero.Lstater)
	if !ok {
		return []string{dir}, nil
	}
	info, lstatCalled, err := lstater.LstatIfPossible(dir)
	if err != nil {
		return nil, err
	}
	if !lstatCalled || info.Mode()&os.ModeSymlink == 0 {
		return []string{dir}, nil
	}

	entries, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return nil, err
	}
	roots := make([]string, 0, len(entries))
	for _, entry := range entries {
		roots = append(roots, filepath.Join(dir, entry.Name()))
	}
	return roots, nil
}

func (e *Enumerator) file(path string, info os.FileInfo) (models.File, error) {
	abs := filepath.Clean(path)
	file := models.File{
		FilePath:      abs,
		FileName:      info.Name(),
		FileType:      strings.TrimPrefix(strings.ToLower(filepath.Ext(abs)), "."),
		FileSizeBytes: info.Size(),
		FileSizeMB:    models.SizeMB(info.Size()),
		ModifiedAt:    info.ModTime(),
	}

	if e.hash {
		sum, err := e.md5(abs)
		if err != nil {
			return models.File{}, err
		}
		file.MD5Hash = sum
	}

	return file, nil
}

func (e *Enumerator) md5(path string) (string, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
