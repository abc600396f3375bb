// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package float16

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestF16(t *testing.T) {
	testCases := []struct {
		f    float32
		bits F16
	}{
		{0, 0x0000},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.5, 0x3800},
		{65504, 0x7bff},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.bits, F16FromFloat32(tc.f), tc.f)
		assert.Equal(t, tc.f, tc.bits.Float32(), tc.f)
	}
	assert.True(t, math.IsInf(float64(F16(0x7c00).Float32()), 1))
}

func TestBF16(t *testing.T) {
	testCases := []struct {
		f    float32
		bits BF16
	}{
		{0, 0x0000},
		{1, 0x3f80},
		{-2, 0xc000},
		{0.5, 0x3f00},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.bits, BF16FromFloat32(tc.f), tc.f)
		assert.Equal(t, tc.f, tc.bits.Float32(), tc.f)
	}

	// 1 + 2^-8 is exactly halfway between two bfloat16 values: ties to even.
	assert.Equal(t, BF16(0x3f80), BF16FromFloat32(1+1.0/256))
	assert.True(t, math.IsNaN(float64(BF16FromFloat32(float32(math.NaN())).Float32())))
}
