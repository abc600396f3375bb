// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	safetensors "github.com/sanyexieai/safetensors-viewer"
	"github.com/sanyexieai/safetensors-viewer/internal/config"
)

// app holds the state shared by all commands.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "stview",
		Short: "Inspect and edit safetensors archives",
		Long: `stview shows the tensors of a safetensors archive grouped by name
prefix, and changes them: values can be edited, tensors renamed, deleted
or added. Before the first change, a backup of the archive is kept
next to it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		a.newInfoCmd(),
		a.newTreeCmd(),
		a.newShowCmd(),
		a.newCheckCmd(),
		a.newEditCmd(),
		a.newRenameCmd(),
		a.newDeleteCmd(),
		a.newAddCmd(),
	)
	return rootCmd
}

func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	if a.verbose {
		level = zap.DebugLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Encoding = "console"
	if a.logger, err = zcfg.Build(); err != nil {
		return err
	}
	return nil
}

func (a *app) options() []safetensors.Option {
	return a.cfg.Options(a.logger)
}

func (a *app) open(path string) (*safetensors.Archive, error) {
	return safetensors.Open(path, a.options()...)
}

func (a *app) editor() *safetensors.Editor {
	return safetensors.NewEditor(a.options()...)
}
