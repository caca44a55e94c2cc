package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to make content dir: %w", err)
	}

	return &File{
		Dir: dir,
	}, nil
}

// File serves objects from a local directory.
type File struct {
	Dir string
}

func (f *File) Get(ctx context.Context, name string) (*Object, error) {
	fullPath := filepath.Join(f.Dir, filepath.FromSlash(name))

	info, err := os.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, err
	}

	return &Object{
		Body:    file,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
