// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package header decodes and encodes the length-prefixed JSON header of a
// safetensors archive.
package header

import (
	"errors"
	"fmt"
)

// MetadataKey is the reserved header key holding free-form metadata.
const MetadataKey = "__metadata__"

var (
	// ErrFormat is reported for malformed header data.
	ErrFormat = errors.New("malformed header")
	// ErrNotFound is reported when looking up a tensor which is not
	// part of a Directory.
	ErrNotFound = errors.New("tensor not found")
)

// Header provides tensors information and metadata, as defined by
// the safetensors format.
type Header struct {
	Tensors  *Directory
	Metadata Metadata
	// ByteBufferOffset indicates the byte index position where the byte-buffer
	// is expected to start, relative to the beginning of the whole
	// safetensors data stream (or file).
	ByteBufferOffset int
}

// Metadata is a set of free-form key/value string pairs.
type Metadata map[string]string

// CheckBounds verifies that the data of every tensor lies within a
// byte-buffer of the given size. It does not require the offsets to be
// contiguous (see Validate).
func (h Header) CheckBounds(byteBufferSize int) error {
	for _, t := range h.Tensors.all() {
		if t.DataOffsets.End < t.DataOffsets.Begin {
			return formatError(fmt.Errorf("tensor %q: data-offsets end %d is before begin %d",
				t.Name, t.DataOffsets.End, t.DataOffsets.Begin))
		}
		if t.DataOffsets.End > byteBufferSize {
			return formatError(fmt.Errorf("tensor %q: data-offsets end %d exceeds byte-buffer size %d",
				t.Name, t.DataOffsets.End, byteBufferSize))
		}
	}
	return nil
}

func formatError(err error) error {
	return fmt.Errorf("%w: %w", ErrFormat, err)
}
