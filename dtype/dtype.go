// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dtype provides the scalar type tags used by safetensors headers.
package dtype

import (
	"errors"
	"fmt"
)

// DType is a safetensors data type tag, as written in the "dtype" field of
// a header entry.
//
// Tags are kept verbatim: a DType is not restricted to the constants below,
// so that archives using newer or exotic tags can still be inspected,
// renamed and deleted. Only operations which need to interpret tensor
// content require a known tag (see Known).
type DType string

const (
	// Bool represents an 8-bit boolean data type.
	Bool DType = "BOOL"
	// U8 represents an 8-bit unsigned integer data type.
	U8 DType = "U8"
	// I8 represents an 8-bit signed integer data type.
	I8 DType = "I8"
	// F8E4M3 represents an 8-bit floating point data type (4-bit exponent).
	F8E4M3 DType = "F8_E4M3"
	// F8E5M2 represents an 8-bit floating point data type (5-bit exponent).
	F8E5M2 DType = "F8_E5M2"
	// U16 represents a 16-bit unsigned integer data type.
	U16 DType = "U16"
	// I16 represents a 16-bit signed integer data type.
	I16 DType = "I16"
	// F16 represents a 16-bit half-precision floating point data type.
	F16 DType = "F16"
	// BF16 represents a 16-bit brain floating point data type.
	BF16 DType = "BF16"
	// U32 represents a 32-bit unsigned integer data type.
	U32 DType = "U32"
	// I32 represents a 32-bit signed integer data type.
	I32 DType = "I32"
	// F32 represents a 32-bit floating point data type.
	F32 DType = "F32"
	// U64 represents a 64-bit unsigned integer data type.
	U64 DType = "U64"
	// I64 represents a 64-bit signed integer data type.
	I64 DType = "I64"
	// F64 represents a 64-bit floating point data type.
	F64 DType = "F64"
)

var dTypeToSize = map[DType]int{
	Bool:   1,
	U8:     1,
	I8:     1,
	F8E4M3: 1,
	F8E5M2: 1,
	U16:    2,
	I16:    2,
	F16:    2,
	BF16:   2,
	U32:    4,
	I32:    4,
	F32:    4,
	U64:    8,
	I64:    8,
	F64:    8,
}

// ErrEmpty is returned when parsing an empty data type tag.
var ErrEmpty = errors.New("empty DType")

// Parse interprets s as a DType. Any non-empty tag is accepted.
func Parse(s string) (DType, error) {
	if s == "" {
		return "", ErrEmpty
	}
	return DType(s), nil
}

// Known reports whether the element size of the DType is known.
func (dt DType) Known() bool {
	_, ok := dTypeToSize[dt]
	return ok
}

// Validate returns an error if the DType is not one of the known tags,
// otherwise nil.
func (dt DType) Validate() error {
	if dt == "" {
		return ErrEmpty
	}
	if !dt.Known() {
		return fmt.Errorf("unknown DType %q", string(dt))
	}
	return nil
}

// String returns the tag of the DType.
func (dt DType) String() string {
	return string(dt)
}

// Size returns the size in bytes of one element of this data type,
// or -1 if the DType is not known.
func (dt DType) Size() int {
	if size, ok := dTypeToSize[dt]; ok {
		return size
	}
	return -1
}

// Alignment returns the element size used to order tensors within the
// byte-buffer. Unknown data types have alignment 0 and sort last.
func (dt DType) Alignment() int {
	if size := dt.Size(); size > 0 {
		return size
	}
	return 0
}

// MarshalText satisfies encoding.TextMarshaler interface.
func (dt DType) MarshalText() ([]byte, error) {
	if dt == "" {
		return nil, ErrEmpty
	}
	return []byte(dt), nil
}

// UnmarshalText satisfies encoding.TextUnmarshaler interface.
func (dt *DType) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return fmt.Errorf("failed to text-unmarshal DType: %w", err)
	}
	*dt = parsed
	return nil
}
