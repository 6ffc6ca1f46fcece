// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transforms implements transformations applied jointly to the views of one example:
// the same random crop window or flip is applied to the low and high resolution images, so they stay aligned.
//
// A transformation is a Step, that declares its Kind:
//
//   - Paired steps (PairedStep) receive all the views of an example at once, and share any random decision.
//   - Independent steps (IndependentStep) are applied to each view separately, e.g.: ToTensor and Normalize.
//
// Steps are composed with a Chain, which is itself a Paired step. Steps never modify their inputs: they
// return new Views.
package transforms

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/gomlx/superres/pkg/support/ordered"
	"github.com/pkg/errors"
)

// Views maps the view name (e.g. "hr", "lr") to the image of an example, in a fixed order.
type Views = ordered.Map[string, *pixels.Array]

// Kind of Step.
type Kind int

const (
	// Paired steps are applied to all views at once: see PairedStep.
	Paired Kind = iota

	// Independent steps are applied to each view separately: see IndependentStep.
	Independent
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Paired:
		return "Paired"
	case Independent:
		return "Independent"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Step is a transformation that can be added to a Chain.
// It must also implement PairedStep or IndependentStep, according to its Kind.
type Step interface {
	fmt.Stringer
	Kind() Kind
}

// PairedStep transforms all the views of an example at once.
type PairedStep interface {
	Step

	// ApplyPaired returns the transformed views. It must not modify views or its images.
	// Random decisions must be drawn from rng.
	ApplyPaired(rng *rand.Rand, views *Views) (*Views, error)
}

// IndependentStep transforms one image.
type IndependentStep interface {
	Step

	// Apply returns the transformed image. It must not modify img.
	Apply(img *pixels.Array) (*pixels.Array, error)
}

// Chain applies a sequence of steps, in order. Create it with NewChain.
//
// It is immutable, and safe for concurrent use if its steps are.
type Chain struct {
	steps []Step
}

var _ PairedStep = (*Chain)(nil)

// NewChain creates a chain with the given steps.
// It fails if a step doesn't implement the interface corresponding to its Kind.
func NewChain(steps ...Step) (*Chain, error) {
	for ii, step := range steps {
		if step == nil {
			return nil, errors.Errorf("transforms.NewChain(): step #%d is nil", ii)
		}
		switch step.Kind() {
		case Paired:
			if _, ok := step.(PairedStep); !ok {
				return nil, errors.Errorf("transforms.NewChain(): step #%d (%s) is declared Paired but doesn't implement ApplyPaired", ii, step)
			}
		case Independent:
			if _, ok := step.(IndependentStep); !ok {
				return nil, errors.Errorf("transforms.NewChain(): step #%d (%s) is declared Independent but doesn't implement Apply", ii, step)
			}
		default:
			return nil, errors.Errorf("transforms.NewChain(): step #%d (%s) has unknown kind %s", ii, step, step.Kind())
		}
	}
	return &Chain{steps: append([]Step(nil), steps...)}, nil
}

// Kind implements Step.
func (c *Chain) Kind() Kind { return Paired }

// Len returns the number of steps in the chain.
func (c *Chain) Len() int { return len(c.steps) }

// Steps returns a copy of the steps of the chain.
func (c *Chain) Steps() []Step { return append([]Step(nil), c.steps...) }

// String implements fmt.Stringer, listing one step per line.
func (c *Chain) String() string {
	var sb strings.Builder
	sb.WriteString("Chain(")
	for _, step := range c.steps {
		sb.WriteString("\n    ")
		sb.WriteString(step.String())
	}
	sb.WriteString("\n)")
	return sb.String()
}

// ApplyPaired implements PairedStep: it runs every step in order.
func (c *Chain) ApplyPaired(rng *rand.Rand, views *Views) (*Views, error) {
	var err error
	for _, step := range c.steps {
		if step.Kind() == Paired {
			views, err = step.(PairedStep).ApplyPaired(rng, views)
			if err != nil {
				return nil, errors.WithMessagef(err, "in step %s", step)
			}
			continue
		}
		indep := step.(IndependentStep)
		out := ordered.New[string, *pixels.Array](views.Len())
		for name, img := range views.All() {
			transformed, err := indep.Apply(img)
			if err != nil {
				return nil, errors.WithMessagef(err, "in step %s applied to view %q", step, name)
			}
			out.Set(name, transformed)
		}
		views = out
	}
	return views, nil
}
