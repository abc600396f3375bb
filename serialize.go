// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/sanyexieai/safetensors-viewer/dtype"
	"github.com/sanyexieai/safetensors-viewer/header"
)

// SerializableTensor is implemented by any tensor object whose data can be
// serialized to safetensors format.
type SerializableTensor interface {
	Name() string
	DType() dtype.DType
	Shape() []int
	// DataLen returns the length of the data in bytes.
	DataLen() int
	io.WriterTo
}

// Serialize the given tensors and additional metadata to safetensors format,
// writing the result to "w".
//
// Data offsets are computed from scratch. Tensors are laid out by
// descending DType alignment, then by name, so that the same set of
// tensors is always serialized the same way.
func Serialize[T SerializableTensor](w io.Writer, tensors []T, metadata header.Metadata) error {
	p, err := prepare(tensors, metadata)
	if err != nil {
		return err
	}
	_, err = p.writeTo(w)
	return err
}

type prepared[T SerializableTensor] struct {
	head    header.Header
	tensors []T
}

func prepare[T SerializableTensor](tensors []T, metadata header.Metadata) (prepared[T], error) {
	// Make sure we're sorting by descending dtype alignment,
	// then by name.
	sorted := make([]T, len(tensors))
	copy(sorted, tensors)
	sort.SliceStable(sorted, func(i, j int) bool {
		l, r := sorted[i], sorted[j]
		la, ra := l.DType().Alignment(), r.DType().Alignment()
		return la > ra || (la == ra && l.Name() < r.Name())
	})

	headerTensors := make([]header.Tensor, len(sorted))
	offset := 0
	for i, t := range sorted {
		var err error
		if headerTensors[i], offset, err = newHeaderTensor(t, offset); err != nil {
			return prepared[T]{}, fmt.Errorf("failed to generate a valid header: %w", err)
		}
	}

	dir, err := header.NewDirectory(headerTensors...)
	if err != nil {
		return prepared[T]{}, fmt.Errorf("failed to generate a valid header: %w", err)
	}
	return prepared[T]{
		head:    header.Header{Tensors: dir, Metadata: metadata},
		tensors: sorted,
	}, nil
}

// newHeaderTensor describes the tensor placed at beginOffset. For known
// data types, the data length must match the shape.
func newHeaderTensor(t SerializableTensor, beginOffset int) (_ header.Tensor, endOffset int, _ error) {
	endOffset = beginOffset + t.DataLen()
	ht := header.Tensor{
		Name:  t.Name(),
		DType: t.DType(),
		Shape: header.Shape(t.Shape()).Clone(),
		DataOffsets: header.DataOffsets{
			Begin: beginOffset,
			End:   endOffset,
		},
	}
	if ht.Name == header.MetadataKey {
		return header.Tensor{}, 0, fmt.Errorf("%w: %q is reserved", ErrInvalidName, ht.Name)
	}
	if !utf8.ValidString(ht.Name) {
		return header.Tensor{}, 0, fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidName, ht.Name)
	}
	if ht.DType.Known() {
		byteSize, err := header.ByteSize(ht)
		if err != nil {
			return header.Tensor{}, 0, fmt.Errorf("%w: invalid tensor %q: %w", ErrFormat, ht.Name, err)
		}
		if byteSize != t.DataLen() {
			return header.Tensor{}, 0, fmt.Errorf("%w: invalid tensor %q: byte size computed from shape (%d) differs from data size (%d)",
				ErrFormat, ht.Name, byteSize, t.DataLen())
		}
	}
	return ht, endOffset, nil
}

func (p prepared[T]) writeTo(w io.Writer) (int64, error) {
	n, err := header.Encode(w, p.head)
	written := int64(n)
	if err != nil {
		return written, err
	}

	// the directory holds the tensors in the same order
	for i, ht := range p.head.Tensors.Tensors() {
		m, err := writeTensor(w, p.tensors[i], ht)
		written += m
		if err != nil {
			return written, fmt.Errorf("failed to write data of tensor %q: %w", ht.Name, err)
		}
	}
	return written, nil
}

func writeTensor(w io.Writer, t io.WriterTo, ht header.Tensor) (int64, error) {
	n, err := t.WriteTo(w)
	if err != nil {
		return n, err
	}

	expected := int64(ht.DataOffsets.Size())
	if n != expected {
		return n, fmt.Errorf("expected %d written bytes, actual %d", expected, n)
	}
	return n, nil
}
