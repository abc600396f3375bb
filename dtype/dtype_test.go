// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dtype

import (
	"encoding"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ encoding.TextMarshaler   = DType("")
	_ encoding.TextUnmarshaler = new(DType)
)

var knownDTypes = []struct {
	dt   DType
	str  string
	size int
}{
	{Bool, "BOOL", 1},
	{U8, "U8", 1},
	{I8, "I8", 1},
	{F8E4M3, "F8_E4M3", 1},
	{F8E5M2, "F8_E5M2", 1},
	{U16, "U16", 2},
	{I16, "I16", 2},
	{F16, "F16", 2},
	{BF16, "BF16", 2},
	{U32, "U32", 4},
	{I32, "I32", 4},
	{F32, "F32", 4},
	{U64, "U64", 8},
	{I64, "I64", 8},
	{F64, "F64", 8},
}

func TestDType_Known(t *testing.T) {
	for _, tc := range knownDTypes {
		t.Run(tc.str, func(t *testing.T) {
			assert.True(t, tc.dt.Known())
			assert.NoError(t, tc.dt.Validate())
			assert.Equal(t, tc.str, tc.dt.String())
			assert.Equal(t, tc.size, tc.dt.Size())
			assert.Equal(t, tc.size, tc.dt.Alignment())
		})
	}
}

func TestDType_Unknown(t *testing.T) {
	dt := DType("C64")
	assert.False(t, dt.Known())
	assert.EqualError(t, dt.Validate(), `unknown DType "C64"`)
	assert.Equal(t, -1, dt.Size())
	assert.Equal(t, 0, dt.Alignment())
	assert.Equal(t, "C64", dt.String())

	assert.ErrorIs(t, DType("").Validate(), ErrEmpty)
}

func TestParse(t *testing.T) {
	dt, err := Parse("F32")
	require.NoError(t, err)
	assert.Equal(t, F32, dt)

	dt, err = Parse("X9")
	require.NoError(t, err)
	assert.Equal(t, DType("X9"), dt)

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDType_JSON(t *testing.T) {
	b, err := json.Marshal(BF16)
	require.NoError(t, err)
	assert.Equal(t, `"BF16"`, string(b))

	var dt DType
	require.NoError(t, json.Unmarshal([]byte(`"I64"`), &dt))
	assert.Equal(t, I64, dt)

	assert.Error(t, json.Unmarshal([]byte(`""`), &dt))
	assert.Error(t, json.Unmarshal([]byte(`1`), &dt))

	_, err = json.Marshal(DType(""))
	assert.Error(t, err)
}
