// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"fmt"

	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/pkg/errors"
)

// ToTensor converts an image to the layout fed to models: channels first, with values scaled to [0, 1].
type ToTensor struct{}

var _ IndependentStep = ToTensor{}

// Kind implements Step.
func (ToTensor) Kind() Kind { return Independent }

// String implements fmt.Stringer.
func (ToTensor) String() string { return "ToTensor()" }

// Apply implements IndependentStep.
// The result has layout pixels.ChannelsFirst and MaxValue 1.
func (ToTensor) Apply(img *pixels.Array) (*pixels.Array, error) {
	if img.MaxValue <= 0 {
		return nil, errors.Errorf("ToTensor: invalid MaxValue %g for %s", img.MaxValue, img)
	}
	out := img.ToLayout(pixels.ChannelsFirst)
	if out == img {
		out = img.Clone()
	}
	scale := 1 / img.MaxValue
	for ii, v := range out.Data {
		out.Data[ii] = v * scale
	}
	out.MaxValue = 1
	return out, nil
}

// Normalize maps each channel value x to (x - Mean) / Std.
//
// Mean and Std hold either one value per channel, or a single value used for all channels.
// MaxValue of the image is kept as is.
type Normalize struct {
	Mean, Std []float32
}

var _ IndependentStep = Normalize{}

// Kind implements Step.
func (Normalize) Kind() Kind { return Independent }

// String implements fmt.Stringer.
func (t Normalize) String() string { return fmt.Sprintf("Normalize(mean=%v, std=%v)", t.Mean, t.Std) }

// perChannel broadcasts values to the number of channels.
func perChannel(name string, values []float32, channels int) ([]float32, error) {
	switch len(values) {
	case channels:
		return values, nil
	case 1:
		out := make([]float32, channels)
		for ii := range out {
			out[ii] = values[0]
		}
		return out, nil
	}
	return nil, errors.Errorf("Normalize: %s has %d values, image has %d channels", name, len(values), channels)
}

// Apply implements IndependentStep.
func (t Normalize) Apply(img *pixels.Array) (*pixels.Array, error) {
	mean, err := perChannel("mean", t.Mean, img.Channels)
	if err != nil {
		return nil, err
	}
	std, err := perChannel("std", t.Std, img.Channels)
	if err != nil {
		return nil, err
	}
	for c, s := range std {
		if s == 0 {
			return nil, errors.Errorf("Normalize: std of channel %d is zero", c)
		}
	}
	out := img.Clone()
	for y := range img.Height {
		for x := range img.Width {
			for c := range img.Channels {
				idx := out.Index(y, x, c)
				out.Data[idx] = (out.Data[idx] - mean[c]) / std[c]
			}
		}
	}
	return out, nil
}
