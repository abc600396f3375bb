// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package safetensors_test

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	safetensors "github.com/sanyexieai/safetensors-viewer"
	"github.com/sanyexieai/safetensors-viewer/dtype"
)

func float32Data(values ...float32) []byte {
	data := make([]byte, 0, len(values)*4)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	return data
}

func Example() {
	dir, err := os.MkdirTemp("", "safetensors-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "model.safetensors")

	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	tensors := []safetensors.RawTensor{
		safetensors.NewRawTensor("layer0.weight", dtype.F32, []int{2, 2}, float32Data(1, 2, 3, 4)),
		safetensors.NewRawTensor("layer0.bias", dtype.F32, []int{2}, float32Data(0.5, -0.5)),
	}
	if err = safetensors.Serialize(f, tensors, map[string]string{"format": "pt"}); err != nil {
		log.Fatal(err)
	}
	if err = f.Close(); err != nil {
		log.Fatal(err)
	}

	editor := safetensors.NewEditor()
	if err = editor.EditValue(path, "layer0.bias", []float64{0, 0}); err != nil {
		log.Fatal(err)
	}
	if err = editor.Rename(path, "layer0.weight", "layer0.kernel"); err != nil {
		log.Fatal(err)
	}

	archive, err := safetensors.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer archive.Close()

	fmt.Printf("metadata = %v\n", archive.Metadata())
	for _, g := range archive.Tree().Groups {
		fmt.Printf("group %s: %d tensors, %d elements, %d bytes\n", g.Label(), g.Len(), g.NumElements(), g.Size())
		for _, l := range g.Leaves {
			values, err := archive.ReadValues(g.FullName(l.Name), 100)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Printf("  %s %s %v %v\n", l.Name, l.Tensor.DType, []int(l.Tensor.Shape), values)
		}
	}

	// Output:
	// metadata = map[format:pt]
	// group layer0: 2 tensors, 6 elements, 24 bytes
	//   bias F32 [2] [0 0]
	//   kernel F32 [2 2] [1 2 3 4]
}
