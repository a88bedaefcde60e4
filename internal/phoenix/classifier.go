package phoenix

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mwantia/phoenix-tracker/pkg/db/models"
)

// Classifier locates the partitions of a subject and the modality directories
// inside them. It only reads the filesystem.
type Classifier struct {
	fs     afero.Fs
	layout *Layout
}

func NewClassifier(fs afero.Fs, layout *Layout) *Classifier {
	return &Classifier{fs: fs, layout: layout}
}

// Modality is one modality directory found in a subject partition.
type Modality struct {
	Name string
	Path string
}

// Modalities lists the immediate subdirectories of a subject partition.
// A missing partition yields ErrNotFound; anything else that prevents the
// listing yields ErrTransientIO.
func (c *Classifier) Modalities(key models.SubjectKey, p Partition) ([]Modality, error) {
	dir, err := c.layout.SubjectDir(key, p)
	if err != nil {
		return nil, err
	}

	info, err := c.fs.Stat(dir)
	if os.IsNotExist(err) {
		return nil, ErrNotFound.New("%s has no %s data at %s", key, p, dir)
	}
	if err != nil {
		return nil, ErrTransientIO.Wrap(err)
	}
	if !info.IsDir() {
		return nil, ErrNotFound.New("%s is not a directory", dir)
	}

	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, ErrTransientIO.Wrap(err)
	}

	var modalities []Modality
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Mode()&os.ModeSymlink != 0 {
			// Follow links so a linked modality directory still counts.
			target, err := c.fs.Stat(path)
			isDir = err == nil && target.IsDir()
		}
		if !isDir {
			continue
		}

		modalities = append(modalities, Modality{Name: entry.Name(), Path: path})
	}

	return modalities, nil
}
