// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/gomlx/superres/pkg/support/ordered"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidCropSize is returned when the crop window doesn't fit in the smallest view.
	ErrInvalidCropSize = errors.New("invalid crop size")

	// ErrInconsistentScale is returned when the size of a view is not an integer multiple of the smallest view.
	ErrInconsistentScale = errors.New("inconsistent scale between views")
)

// reference is the common coordinate system of the views: the size of the smallest view, and the
// integer scale of each view with respect to it.
type reference struct {
	height, width int
	scales        []int
}

// newReference measures the views.
//
// The scale of a view is its height divided by the smallest height, rounded. Views of scale 1 may be up to
// one pixel larger than the smallest view in each dimension. Views of larger scales must be exactly scale
// times the size of the smallest view.
func newReference(views *Views) (*reference, error) {
	ref := &reference{height: math.MaxInt, width: math.MaxInt}
	for _, img := range views.All() {
		ref.height = min(ref.height, img.Height)
		ref.width = min(ref.width, img.Width)
	}
	if ref.height <= 0 || ref.width <= 0 {
		return nil, errors.Wrapf(ErrInvalidCropSize, "view with empty size (%dx%d)", ref.height, ref.width)
	}
	for name, img := range views.All() {
		scale := int(math.Round(float64(img.Height) / float64(ref.height)))
		tolerance := 0
		if scale == 1 {
			tolerance = 1
		}
		if scale < 1 ||
			abs(img.Height-scale*ref.height) > tolerance ||
			abs(img.Width-scale*ref.width) > tolerance {
			return nil, errors.Wrapf(ErrInconsistentScale,
				"view %q has size %dx%d, which is not a multiple of the smallest view size %dx%d",
				name, img.Height, img.Width, ref.height, ref.width)
		}
		ref.scales = append(ref.scales, scale)
	}
	return ref, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// crop slices every view to the window given in reference coordinates, scaled to the view.
func (ref *reference) crop(views *Views, y, x, height, width int) (*Views, error) {
	out := ordered.New[string, *pixels.Array](views.Len())
	ii := 0
	for name, img := range views.All() {
		scale := ref.scales[ii]
		ii++
		cropped, err := img.Crop(scale*y, scale*x, scale*height, scale*width)
		if err != nil {
			return nil, errors.WithMessagef(err, "cropping view %q", name)
		}
		out.Set(name, cropped)
	}
	return out, nil
}

// checkSize verifies that a square window of the given size fits in the reference.
func (ref *reference) checkSize(size int) error {
	if size <= 0 || size > ref.height || size > ref.width {
		return errors.Wrapf(ErrInvalidCropSize, "crop size %d for smallest view of size %dx%d",
			size, ref.height, ref.width)
	}
	return nil
}

// RandomCrop crops a square window at a random position of the smallest view, and the corresponding
// scaled window of the other views.
type RandomCrop struct {
	// Size of the window, in pixels of the smallest view.
	Size int
}

var _ PairedStep = RandomCrop{}

// Kind implements Step.
func (RandomCrop) Kind() Kind { return Paired }

// String implements fmt.Stringer.
func (t RandomCrop) String() string { return fmt.Sprintf("RandomCrop(size=%d)", t.Size) }

// ApplyPaired implements PairedStep.
func (t RandomCrop) ApplyPaired(rng *rand.Rand, views *Views) (*Views, error) {
	if views.Len() == 0 {
		return views.Clone(), nil
	}
	ref, err := newReference(views)
	if err != nil {
		return nil, err
	}
	if err = ref.checkSize(t.Size); err != nil {
		return nil, err
	}
	iy := rng.IntN(ref.height - t.Size + 1)
	ix := rng.IntN(ref.width - t.Size + 1)
	return ref.crop(views, iy, ix, t.Size, t.Size)
}

// CenterCrop crops the centered square window of the smallest view, and the corresponding scaled window of
// the other views. When the margin is odd, the extra pixel goes before the window.
type CenterCrop struct {
	// Size of the window, in pixels of the smallest view.
	Size int
}

var _ PairedStep = CenterCrop{}

// Kind implements Step.
func (CenterCrop) Kind() Kind { return Paired }

// String implements fmt.Stringer.
func (t CenterCrop) String() string { return fmt.Sprintf("CenterCrop(size=%d)", t.Size) }

// ApplyPaired implements PairedStep.
func (t CenterCrop) ApplyPaired(_ *rand.Rand, views *Views) (*Views, error) {
	if views.Len() == 0 {
		return views.Clone(), nil
	}
	ref, err := newReference(views)
	if err != nil {
		return nil, err
	}
	if err = ref.checkSize(t.Size); err != nil {
		return nil, err
	}
	iy := (ref.height - t.Size + 1) / 2
	ix := (ref.width - t.Size + 1) / 2
	return ref.crop(views, iy, ix, t.Size, t.Size)
}

// ModCrop crops the views so the smallest view dimensions are multiples of Modulo, keeping the center.
type ModCrop struct {
	Modulo int
}

var _ PairedStep = ModCrop{}

// Kind implements Step.
func (ModCrop) Kind() Kind { return Paired }

// String implements fmt.Stringer.
func (t ModCrop) String() string { return fmt.Sprintf("ModCrop(modulo=%d)", t.Modulo) }

// ApplyPaired implements PairedStep.
func (t ModCrop) ApplyPaired(_ *rand.Rand, views *Views) (*Views, error) {
	if views.Len() == 0 {
		return views.Clone(), nil
	}
	ref, err := newReference(views)
	if err != nil {
		return nil, err
	}
	if t.Modulo <= 0 || ref.height < t.Modulo || ref.width < t.Modulo {
		return nil, errors.Wrapf(ErrInvalidCropSize, "modulo %d for smallest view of size %dx%d",
			t.Modulo, ref.height, ref.width)
	}
	sizeH := (ref.height / t.Modulo) * t.Modulo
	sizeW := (ref.width / t.Modulo) * t.Modulo
	iy := (ref.height - sizeH + 1) / 2
	ix := (ref.width - sizeW + 1) / 2
	return ref.crop(views, iy, ix, sizeH, sizeW)
}
