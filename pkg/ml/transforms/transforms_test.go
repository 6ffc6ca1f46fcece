// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/gomlx/superres/pkg/support/ordered"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid returns an image whose value at (y, x) is y*1000+x, in every channel.
func grid(height, width int) *pixels.Array {
	a := pixels.New(height, width, 3, pixels.ChannelsLast, 255)
	for y := range height {
		for x := range width {
			for c := range 3 {
				a.Set(y, x, c, float32(y*1000+x))
			}
		}
	}
	return a
}

// scaledViews returns views "x1", "x2", ... with the reference size height x width times the scale.
func scaledViews(height, width int, scales ...int) *Views {
	views := ordered.New[string, *pixels.Array]()
	for _, s := range scales {
		views.Set(fmt.Sprintf("x%d", s), grid(s*height, s*width))
	}
	return views
}

func origin(img *pixels.Array) (y, x int) {
	v := int(img.At(0, 0, 0))
	return v / 1000, v % 1000
}

func TestRandomCrop(t *testing.T) {
	const patch = 8
	rng := rand.New(rand.NewPCG(42, 0))
	views := scaledViews(30, 40, 1, 2, 3, 4)
	for range 20 {
		out, err := RandomCrop{Size: patch}.ApplyPaired(rng, views)
		require.NoError(t, err)
		require.Equal(t, views.Keys(), out.Keys())
		ref, _ := out.Get("x1")
		iy, ix := origin(ref)
		assert.LessOrEqual(t, iy, 30-patch)
		assert.LessOrEqual(t, ix, 40-patch)
		for s := 1; s <= 4; s++ {
			img, _ := out.Get(fmt.Sprintf("x%d", s))
			assert.Equal(t, s*patch, img.Height)
			assert.Equal(t, s*patch, img.Width)
			y, x := origin(img)
			assert.Equal(t, s*iy, y, "scale %d", s)
			assert.Equal(t, s*ix, x, "scale %d", s)
		}
	}

	// Inputs are not modified.
	img, _ := views.Get("x2")
	assert.Equal(t, 60, img.Height)

	// Same seed, same crops.
	a := must.M1(RandomCrop{Size: patch}.ApplyPaired(rand.New(rand.NewPCG(7, 7)), views))
	b := must.M1(RandomCrop{Size: patch}.ApplyPaired(rand.New(rand.NewPCG(7, 7)), views))
	imgA, _ := a.Get("x3")
	imgB, _ := b.Get("x3")
	assert.True(t, imgA.Equal(imgB))
}

func TestRandomCropFullSize(t *testing.T) {
	views := scaledViews(10, 10, 1, 2)
	out, err := RandomCrop{Size: 10}.ApplyPaired(rand.New(rand.NewPCG(1, 2)), views)
	require.NoError(t, err)
	img, _ := out.Get("x2")
	assert.Equal(t, 20, img.Height)
	y, x := origin(img)
	assert.Equal(t, 0, y)
	assert.Equal(t, 0, x)
}

func TestCenterCrop(t *testing.T) {
	for _, size := range []int{50, 51} {
		out, err := CenterCrop{Size: size}.ApplyPaired(nil, scaledViews(100, 100, 1, 2))
		require.NoError(t, err)
		img, _ := out.Get("x1")
		assert.Equal(t, size, img.Height)
		y, x := origin(img)
		assert.Equal(t, 25, y, "size=%d", size)
		assert.Equal(t, 25, x, "size=%d", size)
		img, _ = out.Get("x2")
		assert.Equal(t, 2*size, img.Width)
		y, x = origin(img)
		assert.Equal(t, 50, y)
		assert.Equal(t, 50, x)
	}
}

func TestModCrop(t *testing.T) {
	views := ordered.New[string, *pixels.Array]().Set("lr", grid(101, 103))
	out, err := ModCrop{Modulo: 8}.ApplyPaired(nil, views)
	require.NoError(t, err)
	img, _ := out.Get("lr")
	assert.Equal(t, 96, img.Height)
	assert.Equal(t, 96, img.Width)
	y, x := origin(img)
	assert.Equal(t, 3, y)
	assert.Equal(t, 4, x)

	_, err = ModCrop{Modulo: 128}.ApplyPaired(nil, views)
	require.ErrorIs(t, err, ErrInvalidCropSize)
}

func TestCropErrors(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, 0))
	views := scaledViews(10, 12, 1, 2)
	_, err := RandomCrop{Size: 11}.ApplyPaired(rng, views)
	require.ErrorIs(t, err, ErrInvalidCropSize)
	_, err = CenterCrop{Size: 0}.ApplyPaired(rng, views)
	require.ErrorIs(t, err, ErrInvalidCropSize)

	// 25 is not within one pixel of 2*10.
	views = ordered.New[string, *pixels.Array]().
		Set("lr", grid(10, 10)).
		Set("hr", grid(25, 20))
	_, err = CenterCrop{Size: 4}.ApplyPaired(rng, views)
	require.ErrorIs(t, err, ErrInconsistentScale)

	// Width doesn't follow the scale of the height.
	views = ordered.New[string, *pixels.Array]().
		Set("lr", grid(10, 10)).
		Set("hr", grid(20, 30))
	_, err = CenterCrop{Size: 4}.ApplyPaired(rng, views)
	require.ErrorIs(t, err, ErrInconsistentScale)

	// Larger scales must be exact: 199/100 and 397/100 are not whole ratios.
	for _, size := range [][2]int{{199, 199}, {397, 400}, {200, 201}, {150, 150}} {
		views = ordered.New[string, *pixels.Array]().
			Set("lr", grid(100, 100)).
			Set("hr", grid(size[0], size[1]))
		_, err = CenterCrop{Size: 50}.ApplyPaired(rng, views)
		require.ErrorIs(t, err, ErrInconsistentScale, "hr of size %dx%d", size[0], size[1])
	}
	views = ordered.New[string, *pixels.Array]().
		Set("lr", grid(100, 100)).
		Set("hr", grid(200, 200))
	_, err = CenterCrop{Size: 50}.ApplyPaired(rng, views)
	require.NoError(t, err)
}

func TestCropOffByOne(t *testing.T) {
	// Views of the same resolution may differ by one pixel: the window is taken from the smallest.
	views := ordered.New[string, *pixels.Array]().
		Set("lr", grid(10, 10)).
		Set("lr_upsampled", grid(11, 11)).
		Set("hr", grid(20, 20))
	_, err := CenterCrop{Size: 11}.ApplyPaired(nil, views)
	require.ErrorIs(t, err, ErrInvalidCropSize)
	out, err := CenterCrop{Size: 9}.ApplyPaired(nil, views)
	require.NoError(t, err)
	lr, _ := out.Get("lr")
	up, _ := out.Get("lr_upsampled")
	hr, _ := out.Get("hr")
	assert.Equal(t, 9, lr.Height)
	assert.Equal(t, 9, up.Height)
	assert.Equal(t, 9, up.Width)
	assert.Equal(t, 18, hr.Height)
	assert.Equal(t, 18, hr.Width)
	_, lx := origin(lr)
	_, ux := origin(up)
	_, hx := origin(hr)
	assert.Equal(t, 1, lx)
	assert.Equal(t, 1, ux)
	assert.Equal(t, 2, hx)
}

func TestRandomHorizontalFlip(t *testing.T) {
	views := scaledViews(4, 5, 1, 2)
	rng := rand.New(rand.NewPCG(3, 4))

	same := must.M1(RandomHorizontalFlip{P: 0}.ApplyPaired(rng, views))
	flipped := must.M1(RandomHorizontalFlip{P: 1}.ApplyPaired(rng, views))
	twice := must.M1(RandomHorizontalFlip{P: 1}.ApplyPaired(rng, flipped))
	for name, img := range views.All() {
		s, _ := same.Get(name)
		assert.True(t, img.Equal(s))
		f, _ := flipped.Get(name)
		assert.Equal(t, img.At(0, img.Width-1, 0), f.At(0, 0, 0))
		assert.Equal(t, img.At(2, 0, 1), f.At(2, img.Width-1, 1))
		tw, _ := twice.Get(name)
		assert.True(t, img.Equal(tw))
	}

	// All views are flipped together.
	for range 20 {
		out := must.M1(NewRandomHorizontalFlip().ApplyPaired(rng, views))
		lr, _ := out.Get("x1")
		hr, _ := out.Get("x2")
		_, lx := origin(lr)
		_, hx := origin(hr)
		assert.Equal(t, lx != 0, hx != 0)
	}
}

func TestToTensorAndNormalize(t *testing.T) {
	img := pixels.New(2, 3, 3, pixels.ChannelsLast, 255)
	img.Set(1, 2, 0, 255)
	img.Set(0, 1, 2, 51)
	tensor, err := ToTensor{}.Apply(img)
	require.NoError(t, err)
	assert.Equal(t, pixels.ChannelsFirst, tensor.Layout)
	assert.Equal(t, float32(1), tensor.MaxValue)
	assert.Equal(t, []int{3, 2, 3}, tensor.Shape())
	assert.InDelta(t, 1.0, tensor.At(1, 2, 0), 1e-6)
	assert.InDelta(t, 0.2, tensor.At(0, 1, 2), 1e-6)
	assert.Equal(t, float32(255), img.At(1, 2, 0), "input modified")

	norm, err := Normalize{Mean: []float32{0.5}, Std: []float32{0.5}}.Apply(tensor)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm.At(1, 2, 0), 1e-6)
	assert.InDelta(t, -1.0, norm.At(0, 0, 0), 1e-6)
	assert.InDelta(t, -0.6, norm.At(0, 1, 2), 1e-6)

	perChan, err := Normalize{Mean: []float32{0, 0, 1}, Std: []float32{1, 2, 1}}.Apply(tensor)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, perChan.At(1, 2, 0), 1e-6)
	assert.InDelta(t, -0.8, perChan.At(0, 1, 2), 1e-6)

	_, err = Normalize{Mean: []float32{0, 0}, Std: []float32{1}}.Apply(tensor)
	require.Error(t, err)
	_, err = Normalize{Mean: []float32{0}, Std: []float32{0}}.Apply(tensor)
	require.Error(t, err)
}

type badStep struct{}

func (badStep) Kind() Kind     { return Paired }
func (badStep) String() string { return "badStep" }

func TestNewChain(t *testing.T) {
	_, err := NewChain(ToTensor{}, badStep{})
	require.Error(t, err)
	_, err = NewChain(nil)
	require.Error(t, err)

	inner := must.M1(NewChain(CenterCrop{Size: 4}))
	chain := must.M1(NewChain(inner, ToTensor{}))
	assert.Equal(t, Paired, chain.Kind())
	assert.Equal(t, 2, chain.Len())
	assert.Contains(t, chain.String(), "ToTensor()")

	out, err := chain.ApplyPaired(rand.New(rand.NewPCG(0, 1)), scaledViews(8, 8, 1, 3))
	require.NoError(t, err)
	hr, _ := out.Get("x3")
	assert.Equal(t, []int{3, 12, 12}, hr.Shape())
	assert.Equal(t, pixels.ChannelsFirst, hr.Layout)
}

func TestNewSRTransform(t *testing.T) {
	train := NewSRTransform(true, 16)
	assert.Equal(t, 4, train.Len())
	assert.IsType(t, RandomCrop{}, train.Steps()[0])
	assert.IsType(t, RandomHorizontalFlip{}, train.Steps()[3])

	eval := NewSRTransform(false, 16)
	assert.Equal(t, 3, eval.Len())
	assert.IsType(t, CenterCrop{}, eval.Steps()[0])

	assert.Equal(t, 2, NewSRTransform(false, 0).Len())

	out, err := train.ApplyPaired(rand.New(rand.NewPCG(5, 6)), scaledViews(20, 24, 1, 4))
	require.NoError(t, err)
	hr, _ := out.Get("x4")
	assert.Equal(t, []int{3, 64, 64}, hr.Shape())
	for _, v := range hr.Data {
		require.GreaterOrEqual(t, v, float32(-1))
	}
}
