// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/sanyexieai/safetensors-viewer/dtype"
)

// DefaultSizeLimit is the default maximum size of the JSON header accepted
// by Read.
const DefaultSizeLimit = 100_000_000

// Decode parses the header found at the beginning of buf, which is expected
// to hold a whole safetensors archive.
//
// It fails with an error wrapping ErrFormat if buf is too small to hold the
// 8-byte size prefix, if the declared size exceeds the remaining bytes, if
// the JSON object is malformed, or if any tensor's data lies outside the
// byte-buffer that follows the header. Bytes beyond the end of buf are
// never read.
func Decode(buf []byte) (Header, error) {
	if len(buf) < 8 {
		return Header{}, formatError(fmt.Errorf("buffer too small to read header size: %d bytes", len(buf)))
	}
	size := binary.LittleEndian.Uint64(buf[:8])
	if avail := uint64(len(buf) - 8); size > avail {
		return Header{}, formatError(fmt.Errorf("header size %d exceeds available %d bytes", size, avail))
	}
	if size < 2 { // a bare minimum header is "{}"
		return Header{}, formatError(fmt.Errorf("header size too small: %d", size))
	}

	stop := 8 + int(size)
	h, err := decodeJSON(buf[8:stop])
	if err != nil {
		return Header{}, formatError(err)
	}
	h.ByteBufferOffset = stop
	if err = h.CheckBounds(len(buf) - stop); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Read reads and parses from "r" the initial part of a safetensors
// data stream.
//
// If sizeLimit is positive, headers declaring a larger JSON size are
// rejected before any allocation takes place. A value of zero, or a
// negative number, falls back to DefaultSizeLimit.
//
// Only the header is consumed: the byte-buffer is left unread, and its
// bounds are not checked (see Header.CheckBounds). A stream ending before
// the end of the header is reported as ErrFormat.
func Read(r io.Reader, sizeLimit int) (Header, error) {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	size, err := readHeaderSize(r)
	switch {
	case err != nil:
		return Header{}, err
	case size < 2:
		return Header{}, formatError(fmt.Errorf("header size too small: %d", size))
	case size > uint64(sizeLimit) || size > math.MaxInt-8:
		return Header{}, formatError(fmt.Errorf("header size too large: %d", size))
	}

	data := make([]byte, size)
	if _, err = io.ReadFull(r, data); err != nil {
		return Header{}, streamError("failed to read header", err)
	}

	h, err := decodeJSON(data)
	if err != nil {
		return Header{}, formatError(err)
	}
	h.ByteBufferOffset = 8 + int(size) // take into account "size" uint64 bytes
	return h, nil
}

func readHeaderSize(r io.Reader) (uint64, error) {
	var arr [8]byte
	b := arr[:]
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, streamError("failed to read header size", err)
	}
	return binary.LittleEndian.Uint64(b), nil
}

// streamError marks a premature end of the stream as a format problem, while
// any other read failure is reported as it is.
func streamError(msg string, err error) error {
	err = fmt.Errorf("%s: %w", msg, err)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return formatError(err)
	}
	return err
}

func decodeJSON(data []byte) (Header, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Header{}, fmt.Errorf("failed to JSON-decode header: %w", err)
	}
	if probe[0] != '{' {
		return Header{}, errors.New("failed to JSON-decode header: not a JSON object")
	}

	h := Header{Tensors: &Directory{index: make(map[string]int)}}
	seenMetadata := false
	// jsonparser walks the keys in document order, which a Go map would lose.
	err := jsonparser.ObjectEach(probe, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		name := string(key)
		if name == MetadataKey {
			if seenMetadata {
				return fmt.Errorf("duplicate key %q", MetadataKey)
			}
			seenMetadata = true
			var err error
			h.Metadata, err = convertRawMetadata(value, vt)
			return err
		}
		t, err := convertRawTensor(name, value, vt)
		if err != nil {
			return fmt.Errorf("failed to interpret header tensor %q: %w", name, err)
		}
		return h.Tensors.add(t)
	})
	if err != nil {
		return Header{}, err
	}
	if h.Tensors.Len() == 0 {
		h.Tensors = nil
	}
	return h, nil
}

func decodeObject(value []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func convertRawMetadata(value []byte, vt jsonparser.ValueType) (Metadata, error) {
	switch vt {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
	default:
		return nil, errors.New("failed to interpret header metadata: found non-object value")
	}
	raw, err := decodeObject(value)
	if err != nil {
		return nil, fmt.Errorf("failed to interpret header metadata: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	metadata := make(Metadata, len(raw))
	for key, rawVal := range raw {
		var ok bool
		if metadata[key], ok = rawVal.(string); !ok {
			return nil, fmt.Errorf("failed to interpret header metadata: found non-string value for key %q", key)
		}
	}
	return metadata, nil
}

func convertRawTensor(name string, value []byte, vt jsonparser.ValueType) (t Tensor, err error) {
	if vt != jsonparser.Object {
		err = errors.New("found non-object value")
		return
	}
	raw, err := decodeObject(value)
	if err != nil {
		return
	}
	t.Name = name
	if t.DType, err = convertRawTensorDType(raw); err != nil {
		return
	}
	if t.Shape, err = convertRawTensorShape(raw); err != nil {
		return
	}
	if t.DataOffsets, err = convertRawDataOffsets(raw); err != nil {
		return
	}
	if len(raw) != 3 {
		err = errors.New("JSON object contains unknown keys")
	}
	return
}

func convertRawTensorDType(raw map[string]any) (dtype.DType, error) {
	rawDType, ok := raw["dtype"]
	if !ok {
		return "", errors.New(`"dtype" is missing`)
	}
	strDType, ok := rawDType.(string)
	if !ok {
		return "", errors.New(`found non-string "dtype" value`)
	}
	var dt dtype.DType
	if err := dt.UnmarshalText([]byte(strDType)); err != nil {
		return "", fmt.Errorf(`invalid "dtype" value: %q`, strDType)
	}
	return dt, nil
}

func convertRawTensorShape(raw map[string]any) (Shape, error) {
	rawShape, ok := raw["shape"]
	if !ok {
		return nil, errors.New(`"shape" is missing`)
	}
	rawSlice, ok := rawShape.([]any)
	if !ok {
		return nil, errors.New(`found non-array "shape" value`)
	}
	if len(rawSlice) == 0 {
		return nil, nil
	}
	shape := make(Shape, len(rawSlice))
	for i, rawItem := range rawSlice {
		var err error
		if shape[i], err = convertNonNegInt(rawItem); err != nil {
			return nil, fmt.Errorf(`failed to interpret "shape" value at index %d: %w`, i, err)
		}
	}
	return shape, nil
}

func convertRawDataOffsets(raw map[string]any) (DataOffsets, error) {
	rawDataOffsets, ok := raw["data_offsets"]
	if !ok {
		return DataOffsets{}, errors.New(`"data_offsets" is missing`)
	}
	rawSlice, ok := rawDataOffsets.([]any)
	if !ok {
		return DataOffsets{}, errors.New(`found non-array "data_offsets" value`)
	}
	if l := len(rawSlice); l != 2 {
		return DataOffsets{}, fmt.Errorf(`bad "data_offsets" length: expected 2, actual %d`, l)
	}
	var parsed [2]int
	for i, rawItem := range rawSlice {
		var err error
		if parsed[i], err = convertNonNegInt(rawItem); err != nil {
			return DataOffsets{}, fmt.Errorf(`failed to interpret "data_offsets" value at index %d: %w`, i, err)
		}
	}
	return DataOffsets{Begin: parsed[0], End: parsed[1]}, nil
}

func convertNonNegInt(value any) (int, error) {
	jNum, ok := value.(json.Number)
	if !ok {
		return 0, errors.New("value is not a number")
	}
	num, err := strconv.ParseInt(jNum.String(), 10, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("failed to convert value %q to int: %w", jNum.String(), err)
	}
	if num < 0 {
		return 0, fmt.Errorf("value is negative: %d", num)
	}
	return int(num), nil
}
