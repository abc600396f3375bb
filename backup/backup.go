// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backup guards the rewrite of a file: a pristine copy is kept
// next to it before the first change, and new content replaces the file
// atomically.
package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultSuffix is appended to a file path to obtain its backup path.
const DefaultSuffix = ".backup"

// ErrBackup is reported when the backup of a file cannot be established.
var ErrBackup = errors.New("backup failed")

// Guard creates backups and commits new file contents.
//
// A Guard holds no state about the files it handled: whether a backup
// exists is always checked on disk. Callers must not commit to the same
// path concurrently.
type Guard struct {
	suffix string
	logger *zap.Logger
}

// Option allows to configure a Guard.
type Option func(*Guard)

// WithSuffix sets the suffix of backup files. An empty value keeps
// DefaultSuffix.
func WithSuffix(suffix string) Option {
	return func(g *Guard) {
		if suffix != "" {
			g.suffix = suffix
		}
	}
}

// WithLogger sets the logger. A nil value keeps the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a new Guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		suffix: DefaultSuffix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Path returns the backup path of the given file.
func (g *Guard) Path(path string) string {
	return path + g.suffix
}

// Ensure copies the file at path to its backup path, unless a backup
// already exists. It reports whether a new backup was created.
//
// An existing backup is never overwritten, so it always holds the content
// preceding the first change. Errors wrap ErrBackup.
func (g *Guard) Ensure(path string) (created bool, err error) {
	dst := g.Path(path)
	switch _, err = os.Lstat(dst); {
	case err == nil:
		return false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("%w: %w", ErrBackup, err)
	}

	if err = g.copyFile(dst, path); err != nil {
		return false, fmt.Errorf("%w: %w", ErrBackup, err)
	}
	g.logger.Info("backup created", zap.String("path", path), zap.String("backup", dst))
	return true, nil
}

func (g *Guard) copyFile(dst, src string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, in.Close()) }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	return writeAtomically(dst, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// Commit replaces the content of the file at path with the data produced
// by write, after making sure a backup exists.
//
// If the backup cannot be established, write is never called and the
// error wraps ErrBackup. The new content is written to a temporary file in
// the same directory, which is renamed over path only on success: on
// failure the original file is left untouched.
func (g *Guard) Commit(path string, write func(io.Writer) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if _, err = g.Ensure(path); err != nil {
		return err
	}

	cw := &countingWriter{}
	err = writeAtomically(path, info.Mode().Perm(), func(w io.Writer) error {
		cw.w = w
		return write(cw)
	})
	if err != nil {
		return err
	}
	g.logger.Info("file committed", zap.String("path", path), zap.Int64("bytes", cw.n))
	return nil
}

// writeAtomically writes a temporary sibling of path and renames it over
// path once fully written and synced.
func writeAtomically(path string, perm fs.FileMode, write func(io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			err = multierr.Append(err, tmp.Close())
		}
		err = multierr.Append(err, os.Remove(tmpName))
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
