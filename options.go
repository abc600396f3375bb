// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors

import (
	"go.uber.org/zap"

	"github.com/sanyexieai/safetensors-viewer/backup"
	"github.com/sanyexieai/safetensors-viewer/header"
	"github.com/sanyexieai/safetensors-viewer/naming"
)

// Option allows to configure Open and NewEditor.
// Options which do not apply to an operation are ignored.
type Option func(*options)

type options struct {
	logger          *zap.Logger
	separator       string
	headerSizeLimit int
	editLimit       int
	backupSuffix    string
}

func newOptions(opts []Option) options {
	o := options{
		logger:          zap.NewNop(),
		separator:       naming.DefaultSeparator,
		headerSizeLimit: header.DefaultSizeLimit,
		backupSuffix:    backup.DefaultSuffix,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. A nil value disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}

// WithSeparator sets the separator used to group tensor names
// (see Archive.Tree). An empty value keeps naming.DefaultSeparator.
func WithSeparator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.separator = sep
		}
	}
}

// WithHeaderSizeLimit limits the size of the JSON header accepted when
// reading an archive. Zero or a negative value keeps
// header.DefaultSizeLimit.
func WithHeaderSizeLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.headerSizeLimit = n
		}
	}
}

// WithEditLimit rejects value edits of tensors having more than n
// elements, with ErrTooLarge. Zero or a negative value disables the limit.
func WithEditLimit(n int) Option {
	return func(o *options) {
		o.editLimit = n
	}
}

// WithBackupSuffix sets the suffix appended to an archive path to obtain
// its backup path. An empty value keeps backup.DefaultSuffix.
func WithBackupSuffix(suffix string) Option {
	return func(o *options) {
		if suffix != "" {
			o.backupSuffix = suffix
		}
	}
}
