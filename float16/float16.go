// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package float16 converts 16-bit floating point values, stored as raw
// bits, to and from float32.
package float16

import (
	"math"

	"github.com/x448/float16"
)

// F16 is a 16-bit half-precision floating-point value,
// represented as raw bits (uint16).
type F16 uint16

// BF16 is a 16-bit brain floating-point value,
// represented as raw bits (uint16).
type BF16 uint16

// F16FromFloat32 converts f to the nearest half-precision value.
func F16FromFloat32(f float32) F16 {
	return F16(float16.Fromfloat32(f).Bits())
}

// Float32 returns the float32 value of h.
func (h F16) Float32() float32 {
	return float16.Frombits(uint16(h)).Float32()
}

// BF16FromFloat32 converts f to bfloat16, rounding to nearest even.
// NaN values stay NaN.
func BF16FromFloat32(f float32) BF16 {
	bits := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return BF16(bits>>16 | 0x0040)
	}
	rounding := uint32(0x7fff) + (bits>>16)&1
	return BF16((bits + rounding) >> 16)
}

// Float32 returns the float32 value of b.
func (b BF16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}
