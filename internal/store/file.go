package store

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// File keeps one file per key inside a directory. Writes go through a temp
// file and a rename so a reader never sees a half-written value.
type File struct {
	dir string
}

var _ KV = (*File)(nil)

// NewFile creates the directory if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *File) Remove(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ping checks the directory is still there and writable.
func (f *File) Ping(context.Context) error {
	fi, err := os.Stat(f.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", f.dir)
	}
	return nil
}

func (f *File) Close() error { return nil }
