// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"io"

	"github.com/sanyexieai/safetensors-viewer/dtype"
	"github.com/sanyexieai/safetensors-viewer/header"
)

// RawTensor is a tensor with data fully loaded in memory.
//
// Data is provided in its raw format, as it is read from a safetensors
// stream (or file), without being interpreted and converted to a
// specifically typed slice.
type RawTensor struct {
	name  string
	dType dtype.DType
	shape header.Shape
	data  []byte
}

// NewRawTensor creates a new RawTensor. Neither the shape nor the data are
// copied.
func NewRawTensor(name string, dType dtype.DType, shape []int, data []byte) RawTensor {
	return RawTensor{
		name:  name,
		dType: dType,
		shape: shape,
		data:  data,
	}
}

// The Name of the tensor.
func (rt RawTensor) Name() string {
	return rt.name
}

// DType returns the data type of the tensor.
func (rt RawTensor) DType() dtype.DType {
	return rt.dType
}

// The Shape of the tensor. It can be nil.
func (rt RawTensor) Shape() []int {
	return rt.shape
}

// Data returns the raw data of the tensor.
// It is expected to be little-endian and row-major ("C") ordered.
// There is no striding.
func (rt RawTensor) Data() []byte {
	return rt.data
}

// DataLen returns the length of the data in bytes.
func (rt RawTensor) DataLen() int {
	return len(rt.data)
}

// WriteTo writes the raw data to w.
// It satisfies io.WriterTo interface.
func (rt RawTensor) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(rt.data)
	return int64(n), err
}

func (rt RawTensor) withName(name string) RawTensor {
	rt.name = name
	return rt
}

func (rt RawTensor) withData(data []byte) RawTensor {
	rt.data = data
	return rt
}
