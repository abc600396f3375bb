// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sanyexieai/safetensors-viewer/dtype"
	"github.com/sanyexieai/safetensors-viewer/float16"
)

// Values are exchanged as float64 regardless of the tensor's DType:
//
//	DType          | Decoded as                | Encoded from
//	---------------+---------------------------+--------------------------------
//	BOOL           | 0 or 1                    | non-zero is true
//	U8 ... I64     | the integer value         | truncated toward zero, in range
//	F16, BF16, F32 | the floating point value  | nearest representable value
//	F64            | the value                 | the value
//
// 64-bit integers beyond 2^53 lose precision. F8 types are not supported.
type valueCodec struct {
	decode func(b []byte) float64
	encode func(b []byte, v float64) error
}

var le = binary.LittleEndian

var valueCodecs = map[dtype.DType]valueCodec{
	dtype.Bool: {
		decode: func(b []byte) float64 {
			if b[0] != 0 {
				return 1
			}
			return 0
		},
		encode: func(b []byte, v float64) error {
			b[0] = 0
			if v != 0 {
				b[0] = 1
			}
			return nil
		},
	},
	dtype.U8: {
		decode: func(b []byte) float64 { return float64(b[0]) },
		encode: intEncoder(dtype.U8, 0, 1<<8, func(b []byte, v float64) { b[0] = uint8(v) }),
	},
	dtype.I8: {
		decode: func(b []byte) float64 { return float64(int8(b[0])) },
		encode: intEncoder(dtype.I8, -1<<7, 1<<7, func(b []byte, v float64) { b[0] = byte(int8(v)) }),
	},
	dtype.U16: {
		decode: func(b []byte) float64 { return float64(le.Uint16(b)) },
		encode: intEncoder(dtype.U16, 0, 1<<16, func(b []byte, v float64) { le.PutUint16(b, uint16(v)) }),
	},
	dtype.I16: {
		decode: func(b []byte) float64 { return float64(int16(le.Uint16(b))) },
		encode: intEncoder(dtype.I16, -1<<15, 1<<15, func(b []byte, v float64) { le.PutUint16(b, uint16(int16(v))) }),
	},
	dtype.U32: {
		decode: func(b []byte) float64 { return float64(le.Uint32(b)) },
		encode: intEncoder(dtype.U32, 0, 1<<32, func(b []byte, v float64) { le.PutUint32(b, uint32(v)) }),
	},
	dtype.I32: {
		decode: func(b []byte) float64 { return float64(int32(le.Uint32(b))) },
		encode: intEncoder(dtype.I32, -1<<31, 1<<31, func(b []byte, v float64) { le.PutUint32(b, uint32(int32(v))) }),
	},
	dtype.U64: {
		decode: func(b []byte) float64 { return float64(le.Uint64(b)) },
		encode: intEncoder(dtype.U64, 0, 1<<64, func(b []byte, v float64) { le.PutUint64(b, uint64(v)) }),
	},
	dtype.I64: {
		decode: func(b []byte) float64 { return float64(int64(le.Uint64(b))) },
		encode: intEncoder(dtype.I64, -1<<63, 1<<63, func(b []byte, v float64) { le.PutUint64(b, uint64(int64(v))) }),
	},
	dtype.F16: {
		decode: func(b []byte) float64 { return float64(float16.F16(le.Uint16(b)).Float32()) },
		encode: floatEncoder(dtype.F16, func(b []byte, v float32) float32 {
			h := float16.F16FromFloat32(v)
			le.PutUint16(b, uint16(h))
			return h.Float32()
		}),
	},
	dtype.BF16: {
		decode: func(b []byte) float64 { return float64(float16.BF16(le.Uint16(b)).Float32()) },
		encode: floatEncoder(dtype.BF16, func(b []byte, v float32) float32 {
			h := float16.BF16FromFloat32(v)
			le.PutUint16(b, uint16(h))
			return h.Float32()
		}),
	},
	dtype.F32: {
		decode: func(b []byte) float64 { return float64(math.Float32frombits(le.Uint32(b))) },
		encode: floatEncoder(dtype.F32, func(b []byte, v float32) float32 {
			le.PutUint32(b, math.Float32bits(v))
			return v
		}),
	},
	dtype.F64: {
		decode: func(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) },
		encode: func(b []byte, v float64) error {
			le.PutUint64(b, math.Float64bits(v))
			return nil
		},
	},
}

// intEncoder converts values truncated toward zero, which must lie within
// [lo, hi).
func intEncoder(dt dtype.DType, lo, hi float64, put func([]byte, float64)) func([]byte, float64) error {
	return func(b []byte, v float64) error {
		t := math.Trunc(v)
		if math.IsNaN(t) || t < lo || t >= hi {
			return fmt.Errorf("%w: %v does not fit %s", ErrValueRange, v, dt)
		}
		put(b, t)
		return nil
	}
}

// floatEncoder converts values through float32. Finite values which
// become infinite are out of range.
func floatEncoder(dt dtype.DType, put func([]byte, float32) float32) func([]byte, float64) error {
	return func(b []byte, v float64) error {
		stored := put(b, float32(v))
		if !math.IsInf(v, 0) && math.IsInf(float64(stored), 0) {
			return fmt.Errorf("%w: %v does not fit %s", ErrValueRange, v, dt)
		}
		return nil
	}
}

func lookupValueCodec(dt dtype.DType) (valueCodec, error) {
	c, ok := valueCodecs[dt]
	if !ok {
		return valueCodec{}, fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
	return c, nil
}

// DecodeValues interprets raw little-endian tensor data of the given DType,
// returning one float64 per element.
func DecodeValues(dt dtype.DType, data []byte) ([]float64, error) {
	c, err := lookupValueCodec(dt)
	if err != nil {
		return nil, err
	}
	size := dt.Size()
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: data size %d is not a multiple of %s size %d", ErrFormat, len(data), dt, size)
	}

	out := make([]float64, len(data)/size)
	for i := range out {
		out[i] = c.decode(data[i*size : (i+1)*size])
	}
	return out, nil
}

// EncodeValues converts the values to raw little-endian tensor data of
// the given DType. It fails with ErrValueRange if a value cannot be
// represented.
func EncodeValues(dt dtype.DType, values []float64) ([]byte, error) {
	c, err := lookupValueCodec(dt)
	if err != nil {
		return nil, err
	}
	size := dt.Size()

	out := make([]byte, len(values)*size)
	for i, v := range values {
		if err = c.encode(out[i*size:(i+1)*size], v); err != nil {
			return nil, fmt.Errorf("value at index %d: %w", i, err)
		}
	}
	return out, nil
}
