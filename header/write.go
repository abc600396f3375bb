// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sanyexieai/safetensors-viewer/dtype"
)

type jsonTensor struct {
	DType       dtype.DType `json:"dtype"`
	Shape       Shape       `json:"shape"`
	DataOffsets DataOffsets `json:"data_offsets"`
}

// MarshalJSON serializes the Header to a JSON object.
//
// The metadata, if any, comes first, followed by tensors in directory
// order. Re-decoding the result yields an equivalent Header.
func (h Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	first := true
	writeEntry := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := enc.Encode(key); err != nil {
			return err
		}
		trimNewline(&buf)
		buf.WriteByte(':')
		if err := enc.Encode(value); err != nil {
			return err
		}
		trimNewline(&buf)
		return nil
	}

	if len(h.Metadata) > 0 {
		if err := writeEntry(MetadataKey, h.Metadata); err != nil {
			return nil, fmt.Errorf("failed to JSON-encode header metadata: %w", err)
		}
	}
	for _, t := range h.Tensors.all() {
		v := jsonTensor{DType: t.DType, Shape: t.Shape, DataOffsets: t.DataOffsets}
		if err := writeEntry(t.Name, v); err != nil {
			return nil, fmt.Errorf("failed to JSON-encode header tensor %q: %w", t.Name, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// json.Encoder terminates each value with a newline.
func trimNewline(buf *bytes.Buffer) {
	if b := buf.Bytes(); len(b) > 0 && b[len(b)-1] == '\n' {
		buf.Truncate(len(b) - 1)
	}
}

var headerPadding = [8]byte{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

// Encode writes the Header in safetensors format to "w": the 8-byte
// little-endian size, followed by the JSON object padded with spaces to a
// multiple of 8 bytes.
//
// It returns the number of bytes written, which is also the offset at
// which the byte-buffer is expected to start.
func Encode(w io.Writer, h Header) (int, error) {
	jsonHeader, err := h.MarshalJSON()
	if err != nil {
		return 0, err
	}

	jsonLen := len(jsonHeader)
	// forcing 8-byte alignment
	toAlign := (8 - jsonLen%8) % 8

	if err = writeHeaderSize(w, jsonLen+toAlign); err != nil {
		return 0, err
	}
	if _, err = w.Write(jsonHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	if toAlign > 0 {
		if _, err = w.Write(headerPadding[:toAlign]); err != nil {
			return 0, fmt.Errorf("failed to write header padding: %w", err)
		}
	}
	return 8 + jsonLen + toAlign, nil
}

func writeHeaderSize(w io.Writer, n int) error {
	var arr [8]byte
	buf := arr[:]
	binary.LittleEndian.PutUint64(buf, uint64(n))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	return nil
}
