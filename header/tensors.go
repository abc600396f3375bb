// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"fmt"

	"github.com/sanyexieai/safetensors-viewer/dtype"
)

// Tensor provides properties of a tensor, as described within a
// safetensors header.
type Tensor struct {
	Name        string
	DType       dtype.DType
	Shape       Shape
	DataOffsets DataOffsets
}

// Size returns the number of bytes occupied by the tensor data, as
// declared by its DataOffsets.
func (t Tensor) Size() int {
	return t.DataOffsets.Size()
}

// NumElements returns the number of elements described by the tensor's Shape.
func (t Tensor) NumElements() (int, error) {
	return t.Shape.NumElements()
}

func (t Tensor) clone() Tensor {
	t.Shape = t.Shape.Clone()
	return t
}

// Directory is an ordered set of Tensor objects, indexed by name.
//
// The order is the one in which tensors were added, which for a decoded
// header is the order of the keys in the JSON object. A nil *Directory is
// a valid empty directory.
type Directory struct {
	tensors []Tensor
	index   map[string]int
}

// NewDirectory creates a Directory holding the given tensors, in order.
// It fails if two tensors have the same name.
func NewDirectory(tensors ...Tensor) (*Directory, error) {
	d := &Directory{
		tensors: make([]Tensor, 0, len(tensors)),
		index:   make(map[string]int, len(tensors)),
	}
	for _, t := range tensors {
		if err := d.add(t); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Directory) add(t Tensor) error {
	if _, ok := d.index[t.Name]; ok {
		return fmt.Errorf("duplicate tensor name %q", t.Name)
	}
	d.index[t.Name] = len(d.tensors)
	d.tensors = append(d.tensors, t)
	return nil
}

func (d *Directory) all() []Tensor {
	if d == nil {
		return nil
	}
	return d.tensors
}

// Len returns the number of tensors.
func (d *Directory) Len() int {
	return len(d.all())
}

// Names returns the tensor names, in directory order.
func (d *Directory) Names() []string {
	ts := d.all()
	if len(ts) == 0 {
		return nil
	}
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}

// Tensors returns a copy of all tensors, in directory order.
func (d *Directory) Tensors() []Tensor {
	ts := d.all()
	if len(ts) == 0 {
		return nil
	}
	out := make([]Tensor, len(ts))
	for i, t := range ts {
		out[i] = t.clone()
	}
	return out
}

// Has reports whether a tensor with the given name exists.
func (d *Directory) Has(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.index[name]
	return ok
}

// Lookup returns the Tensor with the given name. If the tensor does not
// exist, the error wraps ErrNotFound.
func (d *Directory) Lookup(name string) (Tensor, error) {
	if d == nil {
		return Tensor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	i, ok := d.index[name]
	if !ok {
		return Tensor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d.tensors[i].clone(), nil
}

// SizeOf returns the data size in bytes of the named tensor.
func (d *Directory) SizeOf(name string) (int, error) {
	t, err := d.Lookup(name)
	if err != nil {
		return 0, err
	}
	return t.Size(), nil
}

// TotalSize returns the sum of the data sizes of all tensors.
func (d *Directory) TotalSize() int {
	total := 0
	for _, t := range d.all() {
		total += t.Size()
	}
	return total
}

// TensorSlice creates a slice of Tensor objects, in directory order.
func (d *Directory) TensorSlice() TensorSlice {
	return d.Tensors()
}

// TensorSlice is a slice of Tensor objects.
type TensorSlice []Tensor

// TensorSliceByDataOffsets implements sort.Interface allowing to sort a
// TensorSlice by ascending DataOffsets values.
// It provides Less, while using Len and Swap methods of the embedded
// TensorSlice value.
type TensorSliceByDataOffsets struct{ TensorSlice }

// Len is the number of elements in the collection.
// This function partially satisfies sort.Interface.
func (ts TensorSlice) Len() int {
	return len(ts)
}

// Swap swaps the elements with indexes i and j.
// This function partially satisfies sort.Interface.
func (ts TensorSlice) Swap(i, j int) {
	ts[i], ts[j] = ts[j], ts[i]
}

// Less reports whether the Tensor with index i must sort before the Tensor
// with index j, according to their DataOffsets.
func (t TensorSliceByDataOffsets) Less(i, j int) bool {
	return t.TensorSlice[i].DataOffsets.Less(t.TensorSlice[j].DataOffsets)
}
