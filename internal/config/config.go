// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the settings of the stview command.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	safetensors "github.com/sanyexieai/safetensors-viewer"
	"github.com/sanyexieai/safetensors-viewer/backup"
	"github.com/sanyexieai/safetensors-viewer/header"
	"github.com/sanyexieai/safetensors-viewer/naming"
)

// Config holds all stview settings.
type Config struct {
	// Separator splits tensor names into groups.
	Separator string `yaml:"separator"`
	// PreviewLimit is the maximum number of elements of a tensor whose
	// values are shown. Zero shows every tensor.
	PreviewLimit int `yaml:"preview_limit"`
	// EditLimit is the maximum number of elements of a tensor whose values
	// can be edited. Zero lifts the limit.
	EditLimit int `yaml:"edit_limit"`
	// BackupSuffix is appended to an archive path to name its backup.
	BackupSuffix string `yaml:"backup_suffix"`
	// HeaderSizeLimit is the maximum accepted size of an archive header.
	HeaderSizeLimit int `yaml:"header_size_limit"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Separator:       naming.DefaultSeparator,
		PreviewLimit:    100,
		EditLimit:       100,
		BackupSuffix:    backup.DefaultSuffix,
		HeaderSizeLimit: header.DefaultSizeLimit,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. An empty path returns the
// default configuration. Settings missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("STVIEW_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// applyDefaults replaces empty values with defaults. Limits are left
// alone, since zero disables them; a limit missing from the file keeps the
// default set before decoding.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Separator == "" {
		c.Separator = def.Separator
	}
	if c.BackupSuffix == "" {
		c.BackupSuffix = def.BackupSuffix
	}
	if c.HeaderSizeLimit == 0 {
		c.HeaderSizeLimit = def.HeaderSizeLimit
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Separator == "" {
		return fmt.Errorf("separator must not be empty")
	}
	if c.PreviewLimit < 0 {
		return fmt.Errorf("invalid preview_limit: %d", c.PreviewLimit)
	}
	if c.EditLimit < 0 {
		return fmt.Errorf("invalid edit_limit: %d", c.EditLimit)
	}
	if c.HeaderSizeLimit < 0 {
		return fmt.Errorf("invalid header_size_limit: %d", c.HeaderSizeLimit)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the logging level.
func (c *Config) LogLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return level, fmt.Errorf("invalid logging level: %w", err)
	}
	return level, nil
}

// Options returns the archive options matching the configuration.
func (c *Config) Options(logger *zap.Logger) []safetensors.Option {
	return []safetensors.Option{
		safetensors.WithLogger(logger),
		safetensors.WithSeparator(c.Separator),
		safetensors.WithHeaderSizeLimit(c.HeaderSizeLimit),
		safetensors.WithEditLimit(c.EditLimit),
		safetensors.WithBackupSuffix(c.BackupSuffix),
	}
}
