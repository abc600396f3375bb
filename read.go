// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"

	"go.uber.org/multierr"

	"github.com/sanyexieai/safetensors-viewer/header"
)

// RawST (short for "SafeTensors") is the result of reading the full content
// of a safetensors file, loading full RawTensor objects in memory.
type RawST struct {
	// Tensors are in header order.
	Tensors  []RawTensor
	Metadata header.Metadata
}

// ReadAllRaw reads the header of a safetensors file, and then the data of
// all tensors, loading them in memory.
//
// If headerSizeLimit is set to a positive number, its value is used to
// limit the reading of safetensors header. This can be useful to guard
// against attacks or tampered/garbage data, avoiding giant memory allocations
// to hold header information. A value of zero, or a negative number, falls
// back to header.DefaultSizeLimit.
//
// The header is not validated (see header.Header.Validate), but the data of
// every tensor must lie within the file.
func ReadAllRaw(path string, headerSizeLimit int) (st RawST, err error) {
	f, err := os.Open(path)
	if err != nil {
		return RawST{}, err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	info, err := f.Stat()
	if err != nil {
		return RawST{}, err
	}

	head, err := header.Read(f, headerSizeLimit)
	if err != nil {
		return RawST{}, err
	}
	if err = head.CheckBounds(int(info.Size() - int64(head.ByteBufferOffset))); err != nil {
		return RawST{}, err
	}

	tensors, err := readAllRawTensorsAt(f, head)
	if err != nil {
		return RawST{}, err
	}
	return RawST{Tensors: tensors, Metadata: head.Metadata}, nil
}

func readAllRawTensorsAt(r io.ReaderAt, head header.Header) ([]RawTensor, error) {
	out := make([]RawTensor, 0, head.Tensors.Len())
	for _, ht := range head.Tensors.Tensors() {
		rt, err := readRawTensorAt(r, int64(head.ByteBufferOffset), ht)
		if err != nil {
			return nil, fmt.Errorf("failed to read data of tensor %q: %w", ht.Name, err)
		}
		out = append(out, rt)
	}
	return out, nil
}

func readRawTensorAt(r io.ReaderAt, dataOffset int64, ht header.Tensor) (RawTensor, error) {
	rt := RawTensor{
		name:  ht.Name,
		dType: ht.DType,
		shape: ht.Shape,
		data:  nil,
	}

	size := ht.DataOffsets.Size()
	if size == 0 {
		return rt, nil
	}

	offset, err := checkedAddNonNegInt64(dataOffset, int64(ht.DataOffsets.Begin))
	if err != nil {
		return RawTensor{}, fmt.Errorf("failed to calculate tensor data offset: %w", err)
	}

	rt.data = make([]byte, size)
	// A complete read at the end of the input may still report io.EOF.
	if n, err := r.ReadAt(rt.data, offset); n < size {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return RawTensor{}, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return rt, nil
}

var errInt64SumOverflow = errors.New("int64 sum overflow")

func checkedAddNonNegInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("unexpected negative number")
	}
	if a == 0 || b == 0 {
		return a + b, nil
	}
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 || sum > math.MaxInt64 {
		return 0, errInt64SumOverflow
	}
	return int64(sum), nil
}
