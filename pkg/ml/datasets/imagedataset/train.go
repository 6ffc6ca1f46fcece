// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imagedataset

import (
	"io"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// TrainDataset adapts a Loader to a gomlx train.Dataset, yielding batches of examples as tensors.
//
// Inputs are one float32 tensor shaped [batchSize, ...imageShape] per input view, followed by an int64
// tensor with the indices of the examples in the batch. Labels are one float32 tensor per label view.
type TrainDataset struct {
	name                   string
	loader                 *Loader
	batchSize              int
	inputViews, labelViews []string
	dropIncompleteBatch    bool
}

var _ train.Dataset = (*TrainDataset)(nil)

// NewTrainDataset creates a train.Dataset that batches the examples of a started loader.
// The views used as inputs and labels are given by name.
func NewTrainDataset(name string, loader *Loader, batchSize int, inputViews, labelViews []string) (*TrainDataset, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("NewTrainDataset(%q): invalid batch size %d", name, batchSize)
	}
	known := loader.ds.ViewNames()
	for _, view := range slices.Concat(inputViews, labelViews) {
		if !slices.Contains(known, view) {
			return nil, errors.Errorf("NewTrainDataset(%q): unknown view %q, dataset has views %v", name, view, known)
		}
	}
	return &TrainDataset{
		name:       name,
		loader:     loader,
		batchSize:  batchSize,
		inputViews: slices.Clone(inputViews),
		labelViews: slices.Clone(labelViews),
	}, nil
}

// DropIncompleteBatch drops the last batch of an epoch if it has fewer than batchSize examples.
// The default is to yield it.
//
// It returns the TrainDataset, so calls can be cascaded.
func (td *TrainDataset) DropIncompleteBatch(drop bool) *TrainDataset {
	td.dropIncompleteBatch = drop
	return td
}

// Name implements train.Dataset.
func (td *TrainDataset) Name() string { return td.name }

// Reset implements train.Dataset, and starts a new epoch of the loader.
func (td *TrainDataset) Reset() { td.loader.Reset() }

// Yield implements train.Dataset. The spec returned is the TrainDataset itself.
func (td *TrainDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	examples := make([]*Example, 0, td.batchSize)
	for len(examples) < td.batchSize {
		var example *Example
		example, err = td.loader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return
		}
		examples = append(examples, example)
	}
	if len(examples) == 0 || (td.dropIncompleteBatch && len(examples) < td.batchSize) {
		err = io.EOF
		return
	}
	err = nil
	spec = td
	for _, view := range td.inputViews {
		var t *tensors.Tensor
		if t, err = stackView(examples, view); err != nil {
			return
		}
		inputs = append(inputs, t)
	}
	indices := make([]int64, len(examples))
	for ii, example := range examples {
		indices[ii] = int64(example.Index)
	}
	inputs = append(inputs, tensors.FromFlatDataAndDimensions(indices, len(indices)))
	for _, view := range td.labelViews {
		var t *tensors.Tensor
		if t, err = stackView(examples, view); err != nil {
			return
		}
		labels = append(labels, t)
	}
	return
}

// stackView concatenates the images of one view into a tensor with a leading batch axis.
// All images must have the same shape.
func stackView(examples []*Example, view string) (*tensors.Tensor, error) {
	var shape []int
	var data []float32
	for _, example := range examples {
		img, found := example.Views.Get(view)
		if !found {
			return nil, errors.Errorf("example %d has no view %q", example.Index, view)
		}
		if shape == nil {
			shape = img.Shape()
			data = make([]float32, 0, len(examples)*len(img.Data))
		} else if !slices.Equal(shape, img.Shape()) {
			return nil, errors.Wrapf(ErrShapeMismatch, "view %q: example %d has shape %v, batch has shape %v",
				view, example.Index, img.Shape(), shape)
		}
		data = append(data, img.Data...)
	}
	dims := append([]int{len(examples)}, shape...)
	return tensors.FromFlatDataAndDimensions(data, dims...), nil
}
