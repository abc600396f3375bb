// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sanyexieai/safetensors-viewer/backup"
	"github.com/sanyexieai/safetensors-viewer/dtype"
	"github.com/sanyexieai/safetensors-viewer/header"
)

// Editor changes safetensors files.
//
// Every change loads the whole archive from disk, applies the change in
// memory, and writes a new archive with freshly computed data offsets.
// Before the first change to a file, a backup of its original content is
// created next to it (see backup.Guard). If a change fails, the file is
// left as it was.
//
// An Editor holds no state about the files it changed. Callers must not
// change the same file concurrently.
type Editor struct {
	opts  options
	guard *backup.Guard
}

// NewEditor creates a new Editor.
func NewEditor(opts ...Option) *Editor {
	o := newOptions(opts)
	return &Editor{
		opts: o,
		guard: backup.New(
			backup.WithSuffix(o.backupSuffix),
			backup.WithLogger(o.logger),
		),
	}
}

// BackupPath returns the path of the backup of the archive at path.
func (e *Editor) BackupPath(path string) string {
	return e.guard.Path(path)
}

// errUnchanged is returned by a change which leaves the archive as it is.
var errUnchanged = errors.New("archive unchanged")

// EditValue replaces all the values of the named tensor. Values are
// converted to the tensor's DType (see DecodeValues); its shape never
// changes.
//
// The number of values must match the number of elements of the tensor,
// otherwise the error wraps ErrShapeMismatch.
func (e *Editor) EditValue(path, name string, values []float64) error {
	return e.mutate("edit", path, name, func(st *RawST) error {
		i, err := indexOf(st.Tensors, name)
		if err != nil {
			return err
		}
		rt := st.Tensors[i]

		n, err := header.Shape(rt.Shape()).NumElements()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if limit := e.opts.editLimit; limit > 0 && n > limit {
			return fmt.Errorf("%w: %d elements, limit is %d", ErrTooLarge, n, limit)
		}
		if len(values) != n {
			return fmt.Errorf("%w: got %d values, shape %v requires %d", ErrShapeMismatch, len(values), rt.Shape(), n)
		}

		data, err := EncodeValues(rt.DType(), values)
		if err != nil {
			return err
		}
		st.Tensors[i] = rt.withData(data)
		return nil
	})
}

// Rename changes the name of a tensor.
//
// The error wraps ErrNotFound if oldName does not exist, and
// ErrNameConflict if newName is the name of another tensor. Renaming a
// tensor to its own name leaves the file untouched.
func (e *Editor) Rename(path, oldName, newName string) error {
	return e.mutate("rename", path, oldName, func(st *RawST) error {
		i, err := indexOf(st.Tensors, oldName)
		if err != nil {
			return err
		}
		if newName == oldName {
			return errUnchanged
		}
		if err = checkNewName(st.Tensors, newName); err != nil {
			return err
		}
		st.Tensors[i] = st.Tensors[i].withName(newName)
		return nil
	})
}

// Delete removes a tensor. Removing the last tensor produces a valid
// archive with no tensors.
func (e *Editor) Delete(path, name string) error {
	return e.mutate("delete", path, name, func(st *RawST) error {
		i, err := indexOf(st.Tensors, name)
		if err != nil {
			return err
		}
		st.Tensors = slices.Delete(st.Tensors, i, i+1)
		return nil
	})
}

// AddTensor adds a new tensor.
//
// If fill is nil, the tensor is filled with zero values. Otherwise fill
// provides all the values, as for EditValue.
//
// The error wraps ErrNameConflict if the name is taken, ErrInvalidShape if
// the shape has a negative dimension, and ErrUnsupportedDType if the size
// of the DType is not known.
func (e *Editor) AddTensor(path, name string, dt dtype.DType, shape []int, fill []float64) error {
	return e.mutate("add", path, name, func(st *RawST) error {
		if err := checkNewName(st.Tensors, name); err != nil {
			return err
		}
		if !dt.Known() {
			return fmt.Errorf("%w: %q", ErrUnsupportedDType, dt)
		}
		n, err := header.Shape(shape).NumElements()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidShape, err)
		}

		var data []byte
		if fill == nil {
			byteSize, err := header.ByteSize(header.Tensor{DType: dt, Shape: shape})
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidShape, err)
			}
			data = make([]byte, byteSize)
		} else {
			if len(fill) != n {
				return fmt.Errorf("%w: got %d values, shape %v requires %d", ErrShapeMismatch, len(fill), shape, n)
			}
			if data, err = EncodeValues(dt, fill); err != nil {
				return err
			}
		}

		st.Tensors = append(st.Tensors, NewRawTensor(name, dt, header.Shape(shape).Clone(), data))
		return nil
	})
}

func indexOf(tensors []RawTensor, name string) (int, error) {
	i := slices.IndexFunc(tensors, func(rt RawTensor) bool { return rt.Name() == name })
	if i < 0 {
		return -1, ErrNotFound
	}
	return i, nil
}

func checkNewName(tensors []RawTensor, name string) error {
	if name == header.MetadataKey {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidName, name)
	}
	if _, err := indexOf(tensors, name); err == nil {
		return fmt.Errorf("%w: %q", ErrNameConflict, name)
	}
	return nil
}

// mutate loads the archive at path, applies the change, and commits the
// result.
func (e *Editor) mutate(op, path, tensor string, change func(*RawST) error) error {
	log := e.opts.logger.With(zap.String("op", op), zap.String("path", path), zap.String("tensor", tensor))

	st, err := ReadAllRaw(path, e.opts.headerSizeLimit)
	if err != nil {
		return wrapErr(op, path, tensor, ioError(err))
	}
	log.Debug("archive loaded", zap.Int("tensors", len(st.Tensors)))

	switch err = change(&st); {
	case errors.Is(err, errUnchanged):
		log.Debug("archive unchanged")
		return nil
	case err != nil:
		return wrapErr(op, path, tensor, err)
	}

	p, err := prepare(st.Tensors, st.Metadata)
	if err != nil {
		return wrapErr(op, path, tensor, err)
	}

	var written int64
	err = e.guard.Commit(path, func(w io.Writer) error {
		var err error
		written, err = p.writeTo(w)
		return err
	})
	if err != nil {
		return wrapErr(op, path, tensor, ioError(err))
	}
	log.Info("archive rewritten", zap.Int("tensors", len(st.Tensors)), zap.Int64("bytes", written))
	return nil
}
