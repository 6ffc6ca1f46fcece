// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"fmt"
	"math/rand/v2"

	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/gomlx/superres/pkg/support/ordered"
)

// DefaultFlipProbability is the flip probability used by NewRandomHorizontalFlip.
const DefaultFlipProbability = 0.5

// RandomHorizontalFlip mirrors all views horizontally with probability P, or leaves them all unchanged.
type RandomHorizontalFlip struct {
	P float64
}

var _ PairedStep = RandomHorizontalFlip{}

// NewRandomHorizontalFlip returns a RandomHorizontalFlip with DefaultFlipProbability.
func NewRandomHorizontalFlip() RandomHorizontalFlip {
	return RandomHorizontalFlip{P: DefaultFlipProbability}
}

// Kind implements Step.
func (RandomHorizontalFlip) Kind() Kind { return Paired }

// String implements fmt.Stringer.
func (t RandomHorizontalFlip) String() string { return fmt.Sprintf("RandomHorizontalFlip(p=%g)", t.P) }

// ApplyPaired implements PairedStep. It draws one value from rng per call.
func (t RandomHorizontalFlip) ApplyPaired(rng *rand.Rand, views *Views) (*Views, error) {
	if rng.Float64() >= t.P {
		return views.Clone(), nil
	}
	out := ordered.New[string, *pixels.Array](views.Len())
	for name, img := range views.All() {
		out.Set(name, img.FlipH())
	}
	return out, nil
}
