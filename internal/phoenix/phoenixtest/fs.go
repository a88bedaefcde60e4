// Package phoenixtest builds PHOENIX trees on in-memory filesystems.
package phoenixtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// WriteFile creates a file of size bytes, creating parent directories.
func WriteFile(t testing.TB, fs afero.Fs, path string, size int) {
	t.Helper()

	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, make([]byte, size), 0o644))
}

// Mkdir creates a directory and its parents.
func Mkdir(t testing.TB, fs afero.Fs, path string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(path, 0o755))
}

// DenyFs fails every access below Prefix with os.ErrPermission.
type DenyFs struct {
	afero.Fs
	Prefix string
}

func (d *DenyFs) denied(name string) bool {
	name = filepath.Clean(name)
	return name == d.Prefix || strings.HasPrefix(name, d.Prefix+string(filepath.Separator))
}

func (d *DenyFs) deny(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
}

func (d *DenyFs) Open(name string) (afero.File, error) {
	if d.denied(name) {
		return nil, d.deny("open", name)
	}
	return d.Fs.Open(name)
}

func (d *DenyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if d.denied(name) {
		return nil, d.deny("open", name)
	}
	return d.Fs.OpenFile(name, flag, perm)
}

func (d *DenyFs) Stat(name string) (os.FileInfo, error) {
	if d.denied(name) {
		return nil, d.deny("stat", name)
	}
	return d.Fs.Stat(name)
}

func (d *DenyFs) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	if d.denied(name) {
		return nil, false, d.deny("lstat", name)
	}
	if lstater, ok := d.Fs.(afero.Lstater); ok {
		return lstater.LstatIfPossible(name)
	}
	info, err := d.Fs.Stat(name)
	return info, false, err
}
