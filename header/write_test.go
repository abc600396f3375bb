// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/sanyexieai/safetensors-viewer/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_MarshalJSON(t *testing.T) {
	testCases := []struct {
		name     string
		h        Header
		expected string
	}{
		{"empty", Header{}, `{}`},
		{
			"metadata first, tensors in directory order",
			Header{
				Metadata: Metadata{"format": "pt"},
				Tensors: mustDirectory(t,
					Tensor{Name: "z", DType: dtype.U8, Shape: Shape{2}, DataOffsets: DataOffsets{0, 2}},
					Tensor{Name: "a", DType: dtype.F32, Shape: nil, DataOffsets: DataOffsets{4, 8}},
				),
			},
			`{"__metadata__":{"format":"pt"},"z":{"dtype":"U8","shape":[2],"data_offsets":[0,2]},"a":{"dtype":"F32","shape":[],"data_offsets":[4,8]}}`,
		},
		{
			"no HTML escaping",
			Header{Tensors: mustDirectory(t,
				Tensor{Name: "a<b>&c", DType: dtype.U8, Shape: Shape{1}, DataOffsets: DataOffsets{0, 1}},
			)},
			`{"a<b>&c":{"dtype":"U8","shape":[1],"data_offsets":[0,1]}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := tc.h.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(actual))
		})
	}
}

func TestEncode(t *testing.T) {
	h := Header{
		Metadata: Metadata{"k": "v"},
		Tensors: mustDirectory(t,
			Tensor{Name: "layer0.weight", DType: dtype.F32, Shape: Shape{2, 2}, DataOffsets: DataOffsets{0, 16}},
			Tensor{Name: "layer0.bias", DType: dtype.F32, Shape: Shape{2}, DataOffsets: DataOffsets{16, 24}},
		),
	}

	var buf bytes.Buffer
	n, err := Encode(&buf, h)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), n)
	assert.Zero(t, n%8)

	size := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	assert.Equal(t, uint64(n-8), size)
	assert.Equal(t, byte(' '), buf.Bytes()[n-1])

	// Round-trip through Decode, with an empty byte-buffer large enough.
	data := append(buf.Bytes(), make([]byte, 24)...)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, n, decoded.ByteBufferOffset)
	assert.Equal(t, h.Metadata, decoded.Metadata)
	assert.Equal(t, h.Tensors.Tensors(), decoded.Tensors.Tensors())
}

func TestEncode_WriteFailure(t *testing.T) {
	_, err := Encode(failingWriter{}, Header{})
	assert.EqualError(t, err, "failed to write header size: boom")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("boom")
}
