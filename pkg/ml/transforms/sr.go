// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

// NewSRTransform returns the chain used for super-resolution training and evaluation.
//
// For training it crops a random patchSize window (in pixels of the smallest view), converts to
// channels-first values in [-1, 1] and randomly flips the views horizontally. For evaluation it takes the
// center window instead, and doesn't flip. If patchSize <= 0, the views are not cropped.
func NewSRTransform(train bool, patchSize int) *Chain {
	var steps []Step
	if patchSize > 0 {
		if train {
			steps = append(steps, RandomCrop{Size: patchSize})
		} else {
			steps = append(steps, CenterCrop{Size: patchSize})
		}
	}
	steps = append(steps, ToTensor{}, Normalize{Mean: []float32{0.5}, Std: []float32{0.5}})
	if train {
		steps = append(steps, NewRandomHorizontalFlip())
	}
	return &Chain{steps: steps}
}
