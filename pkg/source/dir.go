package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir reads *.bz2 files directly inside a local directory.
type Dir struct {
	path string
}

// NewDir returns a Dir for path, which must be an existing directory.
func NewDir(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %s is not a directory", path)
	}
	return &Dir{path: path}, nil
}

// List returns the matching file paths. Subdirectories are not searched.
func (d *Dir) List(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.path, "*"+Ext))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.path, err)
	}

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	return files, nil
}

// Open opens a path returned by List.
func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(name)
}

func (d *Dir) String() string { return d.path }
