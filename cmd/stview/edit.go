// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanyexieai/safetensors-viewer/dtype"
)

func (a *app) newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <file> <tensor> <values>",
		Short: "Replace all the values of a tensor",
		Long: `Replace all the values of a tensor. Values are given as a comma
separated list, for example "0.5,1,-2", and must match the number of
elements of the tensor.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseValues(args[2])
			if err != nil {
				return err
			}
			if err = a.editor().EditValue(args[0], args[1], values); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "edited %q\n", args[1])
			return nil
		},
	}
}

func (a *app) newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <file> <old> <new>",
		Short: "Rename a tensor",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.editor().Rename(args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %q to %q\n", args[1], args[2])
			return nil
		},
	}
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file> <tensor>",
		Short: "Delete a tensor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.editor().Delete(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", args[1])
			return nil
		},
	}
}

func (a *app) newAddCmd() *cobra.Command {
	var (
		dtypeFlag  string
		shapeFlag  string
		valuesFlag string
	)
	cmd := &cobra.Command{
		Use:   "add <file> <tensor>",
		Short: "Add a new tensor",
		Long: `Add a new tensor with the given data type and shape. The tensor is
filled with zeros, unless values are given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := dtype.Parse(dtypeFlag)
			if err != nil {
				return err
			}
			shape, err := parseShape(shapeFlag)
			if err != nil {
				return err
			}
			var fill []float64
			if cmd.Flags().Changed("values") {
				if fill, err = parseValues(valuesFlag); err != nil {
					return err
				}
			}
			if err = a.editor().AddTensor(args[0], args[1], dt, shape, fill); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q\n", args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&dtypeFlag, "dtype", string(dtype.F32), "data type of the tensor")
	cmd.Flags().StringVar(&shapeFlag, "shape", "", `comma separated dimensions, for example "2,3" (empty for a scalar)`)
	cmd.Flags().StringVar(&valuesFlag, "values", "", "comma separated values")
	return cmd
}

// parseValues parses a comma separated list of numbers.
func parseValues(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []float64{}, nil
	}
	fields := strings.Split(s, ",")
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value at index %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// parseShape parses a comma separated list of dimensions.
func parseShape(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	shape := make([]int, len(fields))
	for i, f := range fields {
		d, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid dimension at index %d: %w", i, err)
		}
		shape[i] = d
	}
	return shape, nil
}
