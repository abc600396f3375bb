// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
)

const maxInt = uint(math.MaxInt)

// Validate checks whether the content of a Header is valid according to
// safetensors format, returning an error if a problem is encountered,
// otherwise nil.
//
// Decoding does not call Validate: archives with gaps or unknown data
// types can still be opened, inspected and rewritten. Validate is the
// strict check on top of that.
//
// The Header is checked against the following rules:
//
//   - ByteBufferOffset must not be negative
//   - the union of DataOffsets of all Tensors must cover an entire contiguous
//     area of the byte-buffer, starting from offset 0
//   - DataOffsets of any pair of tensors must not overlap
//   - for each Tensor, its DataOffsets.Begin must be <= DataOffsets.End
//   - each Tensor's DType must be known
//   - each Tensor's Shape must not contain negative values
//   - for each Tensor, its explicit byte size described by DataOffsets
//     (End - Begin) must coincide with the implicit byte size computed
//     from Shape and DType (product of all Shape items * DType size; an empty
//     shape counts as 1 scalar value)
//   - no overflow must occur during calculations at any step, making sure
//     that all computed values fit within the "int" type
func (h Header) Validate() error {
	if h.ByteBufferOffset < 0 {
		return fmt.Errorf("invalid byte-buffer offset negative value %d", h.ByteBufferOffset)
	}
	return validateTensors(h.Tensors)
}

func validateTensors(d *Directory) error {
	ts := d.TensorSlice()
	sort.Sort(TensorSliceByDataOffsets{ts})

	expectedBegin := 0
	for _, t := range ts {
		if err := validateTensor(t, expectedBegin); err != nil {
			return fmt.Errorf("invalid tensor %q: %w", t.Name, err)
		}
		expectedBegin = t.DataOffsets.End
	}
	return nil
}

func validateTensor(t Tensor, expectedBegin int) error {
	if t.DataOffsets.Begin != expectedBegin {
		return fmt.Errorf("expected data-offsets begin %d, actual %d", expectedBegin, t.DataOffsets.Begin)
	}
	if t.DataOffsets.End < t.DataOffsets.Begin {
		return fmt.Errorf("expected data-offsets end >= %d (begin), actual %d", t.DataOffsets.Begin, t.DataOffsets.End)
	}

	byteSize, err := ByteSize(t)
	if err != nil {
		return err
	}
	if offSize := t.DataOffsets.Size(); offSize != byteSize {
		return fmt.Errorf("byte size computed from shape (%d) differs from data-offsets size (%d)", byteSize, offSize)
	}
	return nil
}

// ByteSize computes the number of bytes required by the tensor data from
// its Shape and DType, regardless of its DataOffsets.
func ByteSize(t Tensor) (int, error) {
	if err := t.DType.Validate(); err != nil {
		return 0, err
	}

	tensorSize, err := t.Shape.NumElements()
	if err != nil {
		return 0, err
	}

	hi, byteSize := bits.Mul(uint(tensorSize), uint(t.DType.Size()))
	if hi != 0 {
		return 0, fmt.Errorf("int overflow computing tensor byte size from shape")
	}
	if byteSize > maxInt {
		return 0, fmt.Errorf("tensor byte size computed from shape is too large for int type: %d", byteSize)
	}
	return int(byteSize), nil
}
