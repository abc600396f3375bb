// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sanyexieai/safetensors-viewer/dtype"
	"github.com/sanyexieai/safetensors-viewer/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32Bytes(values ...float32) []byte {
	out := make([]byte, 0, len(values)*4)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

// writeArchive serializes the tensors to a new file in a temporary directory.
func writeArchive(t *testing.T, metadata header.Metadata, tensors ...RawTensor) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, tensors, metadata))
	return writeRaw(t, buf.Bytes())
}

func writeRaw(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// makeData builds an archive from a literal JSON header.
func makeData(json string, byteBufferSize int) []byte {
	out := make([]byte, 8, 8+len(json)+byteBufferSize)
	binary.LittleEndian.PutUint64(out, uint64(len(json)))
	out = append(out, json...)
	return append(out, make([]byte, byteBufferSize)...)
}

func layer0Tensors() []RawTensor {
	return []RawTensor{
		NewRawTensor("layer0.weight", dtype.F32, []int{2, 2}, f32Bytes(1, 2, 3, 4)),
		NewRawTensor("layer0.bias", dtype.F32, []int{2}, f32Bytes(5, 6)),
	}
}

func TestReadAllRaw(t *testing.T) {
	path := writeArchive(t, header.Metadata{"format": "pt"}, layer0Tensors()...)

	st, err := ReadAllRaw(path, 0)
	require.NoError(t, err)
	assert.Equal(t, header.Metadata{"format": "pt"}, st.Metadata)
	require.Len(t, st.Tensors, 2)

	// same alignment: ordered by name
	assert.Equal(t, "layer0.bias", st.Tensors[0].Name())
	assert.Equal(t, f32Bytes(5, 6), st.Tensors[0].Data())
	assert.Equal(t, []int{2}, st.Tensors[0].Shape())

	assert.Equal(t, "layer0.weight", st.Tensors[1].Name())
	assert.Equal(t, f32Bytes(1, 2, 3, 4), st.Tensors[1].Data())
	assert.Equal(t, []int{2, 2}, st.Tensors[1].Shape())
}

func TestReadAllRaw_HeaderOrder(t *testing.T) {
	data := makeData(`{"b":{"dtype":"U8","shape":[1],"data_offsets":[1,2]},"a":{"dtype":"U8","shape":[1],"data_offsets":[0,1]}}`, 2)
	data[len(data)-2] = 0xaa
	data[len(data)-1] = 0xbb

	st, err := ReadAllRaw(writeRaw(t, data), 0)
	require.NoError(t, err)
	require.Len(t, st.Tensors, 2)
	assert.Equal(t, "b", st.Tensors[0].Name())
	assert.Equal(t, []byte{0xbb}, st.Tensors[0].Data())
	assert.Equal(t, "a", st.Tensors[1].Name())
	assert.Equal(t, []byte{0xaa}, st.Tensors[1].Data())
}

func TestReadAllRaw_Failure(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadAllRaw(filepath.Join(t.TempDir(), "missing"), 0)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("data beyond end of file", func(t *testing.T) {
		data := makeData(`{"a":{"dtype":"U8","shape":[4],"data_offsets":[0,4]}}`, 3)
		_, err := ReadAllRaw(writeRaw(t, data), 0)
		assert.ErrorIs(t, err, ErrFormat)
		assert.EqualError(t, err, `malformed header: tensor "a": data-offsets end 4 exceeds byte-buffer size 3`)
	})

	t.Run("header size limit", func(t *testing.T) {
		data := makeData(`{"a":{"dtype":"U8","shape":[1],"data_offsets":[0,1]}}`, 1)
		_, err := ReadAllRaw(writeRaw(t, data), 10)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated header", func(t *testing.T) {
		_, err := ReadAllRaw(writeRaw(t, []byte{1, 2, 3, 4}), 0)
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestCheckedAddNonNegInt64(t *testing.T) {
	testCases := []struct {
		a, b     int64
		expected int64
		errMsg   string
	}{
		{0, 0, 0, ""},
		{1, 2, 3, ""},
		{math.MaxInt64, 0, math.MaxInt64, ""},
		{math.MaxInt64 - 1, 1, math.MaxInt64, ""},
		{math.MaxInt64, 1, 0, "int64 sum overflow"},
		{-1, 1, 0, "unexpected negative number"},
	}
	for _, tc := range testCases {
		actual, err := checkedAddNonNegInt64(tc.a, tc.b)
		if tc.errMsg != "" {
			assert.EqualError(t, err, tc.errMsg)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}
}
