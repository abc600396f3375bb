// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package safetensors inspects and edits archives in safetensors format.
//
// An Archive gives read access to the header and to the data of an
// archive on disk. An Editor changes an archive: every change rewrites the
// whole file, recomputing all data offsets, after keeping a backup of the
// original content.
package safetensors

import (
	"fmt"
	"maps"
	"os"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sanyexieai/safetensors-viewer/header"
	"github.com/sanyexieai/safetensors-viewer/naming"
)

// Archive is a safetensors file opened for reading.
//
// The file is memory-mapped read-only until Close is called. An Archive is
// safe for concurrent use by multiple readers, but it must not be used
// while an Editor changes the same file.
type Archive struct {
	path      string
	file      *os.File
	data      mmap.MMap
	head      header.Header
	separator string
}

// Open opens the safetensors file at path and decodes its header.
//
// The error wraps ErrFormat if the header is malformed, or if the data of
// any tensor lies beyond the end of the file.
func Open(path string, opts ...Option) (_ *Archive, err error) {
	o := newOptions(opts)
	defer func() { err = wrapErr("open", path, "", err) }()

	f, err := os.Open(path)
	if err != nil {
		return nil, ioError(err)
	}
	a := &Archive{path: path, file: f, separator: o.separator}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, ioError(err)
	}
	// an empty file cannot be mapped, and is rejected by header.Decode
	if info.Size() > 0 {
		if a.data, err = mmap.Map(f, mmap.RDONLY, 0); err != nil {
			return nil, ioError(fmt.Errorf("mmap file: %w", err))
		}
	}

	if a.head, err = header.Decode(a.data); err != nil {
		return nil, err
	}
	if size := a.head.ByteBufferOffset - 8; size > o.headerSizeLimit {
		return nil, fmt.Errorf("%w: header size too large: %d", ErrFormat, size)
	}

	o.logger.Debug("archive opened",
		zap.String("path", path),
		zap.Int("tensors", a.head.Tensors.Len()),
		zap.Int64("bytes", info.Size()))
	return a, nil
}

// Close releases the memory mapping and the file.
// Data returned by RawData must not be used afterwards.
func (a *Archive) Close() error {
	var err error
	if a.data != nil {
		err = multierr.Append(err, a.data.Unmap())
		a.data = nil
	}
	if a.file != nil {
		err = multierr.Append(err, a.file.Close())
		a.file = nil
	}
	return err
}

// Path returns the path of the archive file.
func (a *Archive) Path() string {
	return a.path
}

// Metadata returns a copy of the free-form metadata of the archive.
// It is nil if the archive has no metadata.
func (a *Archive) Metadata() header.Metadata {
	return maps.Clone(a.head.Metadata)
}

// Directory returns the tensors directory, in header order.
func (a *Archive) Directory() *header.Directory {
	return a.head.Tensors
}

// Tree groups the tensor names of the archive.
func (a *Archive) Tree() *naming.Tree {
	return naming.Build(a.head.Tensors, naming.WithSeparator(a.separator))
}

// Describe returns the header description of the named tensor.
func (a *Archive) Describe(name string) (header.Tensor, error) {
	t, err := a.head.Tensors.Lookup(name)
	if err != nil {
		return header.Tensor{}, wrapErr("describe", a.path, name, err)
	}
	return t, nil
}

// RawData returns the raw bytes of the named tensor.
//
// The returned slice refers to read-only mapped memory: it must not be
// modified, and it is valid only until the Archive is closed.
func (a *Archive) RawData(name string) ([]byte, error) {
	t, err := a.head.Tensors.Lookup(name)
	if err != nil {
		return nil, wrapErr("read", a.path, name, err)
	}
	return a.rawData(t), nil
}

func (a *Archive) rawData(t header.Tensor) []byte {
	begin := a.head.ByteBufferOffset + t.DataOffsets.Begin
	end := a.head.ByteBufferOffset + t.DataOffsets.End
	return a.data[begin:end:end]
}

// ReadValues returns the values of the named tensor, converted to float64.
//
// If limit is positive and the tensor has more elements than limit, the
// error wraps ErrTooLarge. Zero or a negative value means no limit.
func (a *Archive) ReadValues(name string, limit int) (_ []float64, err error) {
	defer func() { err = wrapErr("read", a.path, name, err) }()

	t, err := a.head.Tensors.Lookup(name)
	if err != nil {
		return nil, err
	}
	n, err := t.NumElements()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if limit > 0 && n > limit {
		return nil, fmt.Errorf("%w: %d elements, limit is %d", ErrTooLarge, n, limit)
	}

	values, err := DecodeValues(t.DType, a.rawData(t))
	if err != nil {
		return nil, err
	}
	if len(values) != n {
		return nil, fmt.Errorf("%w: data holds %d values, shape %v requires %d", ErrFormat, len(values), []int(t.Shape), n)
	}
	return values, nil
}

// Validate performs the full format validation of the header (see
// header.Header.Validate). Opening an archive does not require it.
func (a *Archive) Validate() error {
	if err := a.head.Validate(); err != nil {
		return wrapErr("validate", a.path, "", fmt.Errorf("%w: %w", ErrFormat, err))
	}
	if end, size := a.head.Tensors.TotalSize(), len(a.data)-a.head.ByteBufferOffset; end != size {
		return wrapErr("validate", a.path, "", fmt.Errorf("%w: tensors cover %d bytes, byte-buffer size is %d", ErrFormat, end, size))
	}
	return nil
}
