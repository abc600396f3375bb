// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sanyexieai/safetensors-viewer/backup"
	"github.com/sanyexieai/safetensors-viewer/header"
)

var (
	// ErrFormat is reported for malformed archives.
	ErrFormat = header.ErrFormat
	// ErrNotFound is reported when a referenced tensor does not exist.
	ErrNotFound = header.ErrNotFound
	// ErrBackup is reported when the backup preceding a change cannot be
	// established. The archive is left untouched.
	ErrBackup = backup.ErrBackup

	// ErrNameConflict is reported when renaming or adding a tensor to a
	// name which is already taken.
	ErrNameConflict = errors.New("tensor name already exists")
	// ErrInvalidName is reported for tensor names reserved by the format.
	ErrInvalidName = errors.New("invalid tensor name")
	// ErrShapeMismatch is reported when a number of values does not match
	// the number of elements of a tensor.
	ErrShapeMismatch = errors.New("values do not match tensor shape")
	// ErrInvalidShape is reported for shapes with negative dimensions.
	ErrInvalidShape = errors.New("invalid shape")
	// ErrUnsupportedDType is reported when tensor values cannot be
	// converted from or to a data type.
	ErrUnsupportedDType = errors.New("unsupported DType")
	// ErrValueRange is reported when a value does not fit the data type
	// of a tensor.
	ErrValueRange = errors.New("value out of range")
	// ErrTooLarge is reported when a tensor has more elements than allowed
	// for reading or editing its values.
	ErrTooLarge = errors.New("tensor too large")
	// ErrIO is reported for failures of the underlying file access.
	ErrIO = errors.New("I/O error")
)

// Error describes a failed operation on an archive.
//
// It unwraps to the cause, which in turn wraps one of the package's
// sentinel errors.
type Error struct {
	// Op is the name of the operation, such as "open" or "rename".
	Op string
	// Path of the archive.
	Path string
	// Tensor is the name of the tensor involved, if any.
	Tensor string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Path != "" {
		sb.WriteByte(' ')
		sb.WriteString(e.Path)
	}
	if e.Tensor != "" {
		fmt.Fprintf(&sb, ": tensor %q", e.Tensor)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(op, path, tensor string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Tensor: tensor, Err: err}
}

// ioError marks a file-system failure with ErrIO, unless it is already
// classified.
func ioError(err error) error {
	if err == nil || errors.Is(err, ErrIO) || errors.Is(err, ErrBackup) || errors.Is(err, ErrFormat) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}
