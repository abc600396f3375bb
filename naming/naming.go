// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package naming groups the flat tensor names of a safetensors archive into
// a two-level tree, splitting each name on the last occurrence of a
// separator.
package naming

import (
	"strings"

	"github.com/sanyexieai/safetensors-viewer/header"
)

// DefaultSeparator is the separator used by Build when none is given.
const DefaultSeparator = "."

// TopLevelLabel is the label displayed for the group of tensors whose name
// contains no separator.
const TopLevelLabel = "root"

// Tree is a two-level view over a header.Directory.
type Tree struct {
	Separator string
	// Groups are sorted by first insertion of any of their members.
	Groups []*Group
}

// Group is a set of tensors sharing the same name prefix.
type Group struct {
	// Name is the common prefix. It is empty for the top-level group.
	Name string
	// TopLevel marks the group of tensors whose name has no separator.
	TopLevel bool
	// Leaves are in directory order.
	Leaves []Leaf

	sep string
}

// Leaf is a single tensor within a Group.
type Leaf struct {
	// Name is the part of the tensor name following the last separator,
	// or the whole name for top-level tensors.
	Name   string
	Tensor header.Tensor
}

// Option allows to configure Build.
type Option func(*options)

type options struct {
	separator string
}

// WithSeparator sets the separator used to split tensor names.
// An empty value keeps DefaultSeparator.
func WithSeparator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.separator = sep
		}
	}
}

// Build creates a Tree from the tensors of the directory. The result only
// depends on the directory content and order: building twice yields the
// same tree.
func Build(dir *header.Directory, opts ...Option) *Tree {
	o := options{separator: DefaultSeparator}
	for _, opt := range opts {
		opt(&o)
	}

	tree := &Tree{Separator: o.separator}
	var topLevel *Group
	groups := make(map[string]*Group)

	for _, t := range dir.Tensors() {
		prefix, leaf, ok := split(t.Name, o.separator)

		var g *Group
		if !ok {
			if topLevel == nil {
				topLevel = &Group{TopLevel: true, sep: o.separator}
				tree.Groups = append(tree.Groups, topLevel)
			}
			g = topLevel
		} else if g = groups[prefix]; g == nil {
			g = &Group{Name: prefix, sep: o.separator}
			groups[prefix] = g
			tree.Groups = append(tree.Groups, g)
		}
		g.Leaves = append(g.Leaves, Leaf{Name: leaf, Tensor: t})
	}
	return tree
}

func split(name, sep string) (prefix, leaf string, ok bool) {
	i := strings.LastIndex(name, sep)
	if i < 0 {
		return "", name, false
	}
	return name[:i], name[i+len(sep):], true
}

// Locate finds the group and the leaf of the tensor with the given full name.
func (t *Tree) Locate(fullName string) (*Group, Leaf, bool) {
	prefix, leafName, ok := split(fullName, t.Separator)
	for _, g := range t.Groups {
		if g.TopLevel == ok || (ok && g.Name != prefix) {
			continue
		}
		for _, l := range g.Leaves {
			if l.Name == leafName {
				return g, l, true
			}
		}
	}
	return nil, Leaf{}, false
}

// Len returns the number of tensors in the tree.
func (t *Tree) Len() int {
	n := 0
	for _, g := range t.Groups {
		n += len(g.Leaves)
	}
	return n
}

// FullName reconstructs the full tensor name of a leaf of this group.
func (g *Group) FullName(leaf string) string {
	if g.TopLevel {
		return leaf
	}
	return g.Name + g.sep + leaf
}

// Label returns the name to display for the group.
func (g *Group) Label() string {
	if g.TopLevel {
		return TopLevelLabel
	}
	return g.Name
}

// Size returns the total number of data bytes of the group's tensors.
func (g *Group) Size() int {
	n := 0
	for _, l := range g.Leaves {
		n += l.Tensor.Size()
	}
	return n
}

// Len returns the number of tensors in the group.
func (g *Group) Len() int {
	return len(g.Leaves)
}

// NumElements returns the total number of elements of the group's tensors.
// Tensors with an invalid shape are not counted.
func (g *Group) NumElements() int {
	n := 0
	for _, l := range g.Leaves {
		if c, err := l.Tensor.NumElements(); err == nil {
			n += c
		}
	}
	return n
}
