package kv

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	perr "dayonme/internal/platform/errors"
)

// File keeps one file per key under dir
// Writes go to a temp file in the same dir and are renamed over the target, so readers never see a torn value
type File struct {
	dir string
}

// NewFile creates dir if needed
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, perr.InvalidArgf("kv: file driver needs a directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeStore, "kv: create dir")
	}
	return &File{dir: dir}, nil
}

func (s *File) path(key string) string { return filepath.Join(s.dir, key+".kv") }

func (s *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeStore, "kv: read %s", key)
	}
	return b, true, nil
}

func (s *File) Set(ctx context.Context, key string, val []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStore, "kv: temp for %s", key)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(val); err != nil {
		_ = tmp.Close()
		cleanup()
		return perr.Wrapf(err, perr.ErrorCodeStore, "kv: write %s", key)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return perr.Wrapf(err, perr.ErrorCodeStore, "kv: sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return perr.Wrapf(err, perr.ErrorCodeStore, "kv: close %s", key)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		cleanup()
		return perr.Wrapf(err, perr.ErrorCodeStore, "kv: rename %s", key)
	}
	return nil
}

func (s *File) Remove(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return perr.Wrapf(err, perr.ErrorCodeStore, "kv: remove %s", key)
	}
	return nil
}
