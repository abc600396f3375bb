// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	safetensors "github.com/sanyexieai/safetensors-viewer"
	"github.com/sanyexieai/safetensors-viewer/header"
)

func (a *app) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Show the metadata and a summary of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer ar.Close()
			printInfo(cmd.OutOrStdout(), ar)
			return nil
		},
	}
}

func printInfo(w io.Writer, ar *safetensors.Archive) {
	dir := ar.Directory()
	fmt.Fprintf(w, "File:    %s\n", ar.Path())
	fmt.Fprintf(w, "Tensors: %d\n", dir.Len())
	fmt.Fprintf(w, "Size:    %s\n", humanize.IBytes(uint64(dir.TotalSize())))

	md := ar.Metadata()
	if len(md) == 0 {
		return
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Metadata:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, md[k])
	}
}

func (a *app) newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <file>",
		Short: "List the tensors of an archive, grouped by name prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer ar.Close()
			return printTree(cmd.OutOrStdout(), ar)
		},
	}
}

func printTree(w io.Writer, ar *safetensors.Archive) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSHAPE\tDTYPE\tSIZE")
	for _, g := range ar.Tree().Groups {
		fmt.Fprintf(tw, "%s\t%d tensors, %s elements\t\t%s\n",
			g.Label(), g.Len(), humanize.Comma(int64(g.NumElements())), humanize.IBytes(uint64(g.Size())))
		for _, l := range g.Leaves {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
				l.Name, formatShape(l.Tensor.Shape), l.Tensor.DType, humanize.IBytes(uint64(l.Tensor.Size())))
		}
	}
	return tw.Flush()
}

func formatShape(s header.Shape) string {
	dims := make([]string, len(s))
	for i, d := range s {
		dims[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(dims, ", ") + "]"
}

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file> <tensor>",
		Short: "Describe a tensor and preview its values",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer ar.Close()
			return a.printTensor(cmd.OutOrStdout(), ar, args[1])
		},
	}
}

func (a *app) printTensor(w io.Writer, ar *safetensors.Archive, name string) error {
	t, err := ar.Describe(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Name:   %s\n", t.Name)
	fmt.Fprintf(w, "DType:  %s\n", t.DType)
	fmt.Fprintf(w, "Shape:  %s\n", formatShape(t.Shape))
	fmt.Fprintf(w, "Size:   %s\n", humanize.IBytes(uint64(t.Size())))

	values, err := ar.ReadValues(name, a.cfg.PreviewLimit)
	switch {
	case errors.Is(err, safetensors.ErrTooLarge):
		fmt.Fprintln(w, "Values: too large to preview")
		return nil
	case errors.Is(err, safetensors.ErrUnsupportedDType):
		fmt.Fprintf(w, "Values: cannot preview %s data\n", t.DType)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(w, "Values: %s\n", formatValues(values))
	return nil
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Fully validate the header of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer ar.Close()
			if err = ar.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", ar.Path())
			return nil
		},
	}
}
