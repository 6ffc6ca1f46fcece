// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pixels provides a dense pixel array (Array) used to hold decoded images, and the
// conversions back and forth from image.Image and the on-disk binary format.
package pixels

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// Layout indicates if the channels axis comes last (`[height, width, channels]`, as images
// are decoded) or first (`[channels, height, width]`, as usually fed to models).
type Layout uint8

const (
	ChannelsLast Layout = iota
	ChannelsFirst
)

// String implements fmt.Stringer.
func (l Layout) String() string {
	switch l {
	case ChannelsLast:
		return "ChannelsLast"
	case ChannelsFirst:
		return "ChannelsFirst"
	}
	return fmt.Sprintf("Layout(%d)", l)
}

// Array is a dense image of Height x Width pixels, each with Channels values stored as float32.
//
// Values decoded from 8-bit images are kept in the range [0, 255] and from 16-bit images in [0, 65535],
// so they are exact. MaxValue holds the value of a saturated channel.
type Array struct {
	Height, Width, Channels int
	Layout                  Layout
	MaxValue                float32
	Data                    []float32
}

// New creates an Array filled with zeros.
func New(height, width, channels int, layout Layout, maxValue float32) *Array {
	return &Array{
		Height:   height,
		Width:    width,
		Channels: channels,
		Layout:   layout,
		MaxValue: maxValue,
		Data:     make([]float32, height*width*channels),
	}
}

// Shape returns the dimensions of the array according to its layout.
func (a *Array) Shape() []int {
	if a.Layout == ChannelsFirst {
		return []int{a.Channels, a.Height, a.Width}
	}
	return []int{a.Height, a.Width, a.Channels}
}

// String implements fmt.Stringer.
func (a *Array) String() string {
	return fmt.Sprintf("pixels.Array(%v, %s, max=%g)", a.Shape(), a.Layout, a.MaxValue)
}

// Index returns the position in Data of the value for the pixel (y, x) and channel c.
func (a *Array) Index(y, x, c int) int {
	if a.Layout == ChannelsFirst {
		return (c*a.Height+y)*a.Width + x
	}
	return (y*a.Width+x)*a.Channels + c
}

// At returns the value of channel c of pixel (y, x).
func (a *Array) At(y, x, c int) float32 { return a.Data[a.Index(y, x, c)] }

// Set the value of channel c of pixel (y, x).
func (a *Array) Set(y, x, c int, value float32) { a.Data[a.Index(y, x, c)] = value }

// Validate checks that the dimensions are consistent with the data.
func (a *Array) Validate() error {
	if a.Height < 0 || a.Width < 0 || a.Channels <= 0 {
		return errors.Errorf("invalid %s", a)
	}
	if len(a.Data) != a.Height*a.Width*a.Channels {
		return errors.Errorf("%s should have %d values, but it has %d", a, a.Height*a.Width*a.Channels, len(a.Data))
	}
	return nil
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	a2 := *a
	a2.Data = make([]float32, len(a.Data))
	copy(a2.Data, a.Data)
	return &a2
}

// Equal returns whether both arrays have the same dimensions, layout and exactly the same values.
func (a *Array) Equal(b *Array) bool {
	if a.Height != b.Height || a.Width != b.Width || a.Channels != b.Channels ||
		a.Layout != b.Layout || a.MaxValue != b.MaxValue || len(a.Data) != len(b.Data) {
		return false
	}
	for ii, v := range a.Data {
		if v != b.Data[ii] {
			return false
		}
	}
	return true
}

// Crop returns a new array with the window of height x width pixels starting at (y, x).
// The window must fit in the array.
func (a *Array) Crop(y, x, height, width int) (*Array, error) {
	if y < 0 || x < 0 || height <= 0 || width <= 0 || y+height > a.Height || x+width > a.Width {
		return nil, errors.Errorf("crop window (y=%d, x=%d, height=%d, width=%d) out of bounds for %s",
			y, x, height, width, a)
	}
	c := New(height, width, a.Channels, a.Layout, a.MaxValue)
	if a.Layout == ChannelsFirst {
		for ch := range a.Channels {
			for yy := range height {
				src := a.Index(y+yy, x, ch)
				dst := c.Index(yy, 0, ch)
				copy(c.Data[dst:dst+width], a.Data[src:src+width])
			}
		}
		return c, nil
	}
	rowLen := width * a.Channels
	for yy := range height {
		src := a.Index(y+yy, x, 0)
		copy(c.Data[yy*rowLen:(yy+1)*rowLen], a.Data[src:src+rowLen])
	}
	return c, nil
}

// FlipH returns a new array mirrored horizontally.
func (a *Array) FlipH() *Array {
	f := New(a.Height, a.Width, a.Channels, a.Layout, a.MaxValue)
	for y := range a.Height {
		for x := range a.Width {
			for c := range a.Channels {
				f.Set(y, a.Width-1-x, c, a.At(y, x, c))
			}
		}
	}
	return f
}

// ToLayout returns the array transposed to the given layout. If it already has that layout, it returns itself.
func (a *Array) ToLayout(layout Layout) *Array {
	if a.Layout == layout {
		return a
	}
	t := New(a.Height, a.Width, a.Channels, layout, a.MaxValue)
	for y := range a.Height {
		for x := range a.Width {
			for c := range a.Channels {
				t.Set(y, x, c, a.At(y, x, c))
			}
		}
	}
	return t
}

// is16Bits returns whether the image stores 16 bits per channel.
func is16Bits(img image.Image) bool {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

// toNRGBA64 converts c to non-premultiplied 16-bit color. Non-premultiplied sources are converted directly,
// since going through the premultiplied RGBA() values would lose precision for translucent pixels.
func toNRGBA64(c color.Color) color.NRGBA64 {
	switch c := c.(type) {
	case color.NRGBA:
		return color.NRGBA64{R: uint16(c.R) * 0x101, G: uint16(c.G) * 0x101, B: uint16(c.B) * 0x101, A: uint16(c.A) * 0x101}
	case color.NRGBA64:
		return c
	}
	return color.NRGBA64Model.Convert(c).(color.NRGBA64)
}

// FromImage converts an image.Image to an Array in the ChannelsLast layout.
//
// Grayscale images yield 1 channel, opaque color images 3 channels (RGB) and images with transparency
// 4 channels (non-premultiplied RGBA).
func FromImage(img image.Image) *Array {
	bounds := img.Bounds()
	height, width := bounds.Dy(), bounds.Dx()
	maxValue := float32(255)
	shift := uint32(8)
	if is16Bits(img) {
		maxValue = 65535
		shift = 0
	}

	switch img.(type) {
	case *image.Gray, *image.Gray16:
		a := New(height, width, 1, ChannelsLast, maxValue)
		for y := range height {
			for x := range width {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				a.Set(y, x, 0, float32(uint32(g.Y)>>shift))
			}
		}
		return a
	}

	channels := 3
	if opaque, ok := img.(interface{ Opaque() bool }); !ok || !opaque.Opaque() {
		channels = 4
	}
	a := New(height, width, channels, ChannelsLast, maxValue)
	pos := 0
	for y := range height {
		for x := range width {
			c := toNRGBA64(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			a.Data[pos] = float32(uint32(c.R) >> shift)
			a.Data[pos+1] = float32(uint32(c.G) >> shift)
			a.Data[pos+2] = float32(uint32(c.B) >> shift)
			if channels == 4 {
				a.Data[pos+3] = float32(uint32(c.A) >> shift)
			}
			pos += channels
		}
	}
	return a
}

// ToImage converts the array back to an image.Image. Values are rounded and clamped to [0, MaxValue].
//
// Arrays with MaxValue above 255 are converted to 16-bit images, the others to 8-bit images.
// It works with 1 (gray), 3 (RGB) or 4 (RGBA) channels.
func (a *Array) ToImage() (image.Image, error) {
	if a.MaxValue <= 0 {
		return nil, errors.Errorf("cannot convert %s to image: MaxValue must be positive", a)
	}
	rect := image.Rect(0, 0, a.Width, a.Height)
	wide := a.MaxValue > 255
	scale := float64(255) / float64(a.MaxValue)
	if wide {
		scale = float64(65535) / float64(a.MaxValue)
	}
	quantize := func(v float32) uint16 {
		f := math.Round(float64(v) * scale)
		if wide {
			return uint16(max(0, min(f, 65535)))
		}
		return uint16(max(0, min(f, 255)))
	}

	switch a.Channels {
	case 1:
		if wide {
			img := image.NewGray16(rect)
			for y := range a.Height {
				for x := range a.Width {
					img.SetGray16(x, y, color.Gray16{Y: quantize(a.At(y, x, 0))})
				}
			}
			return img, nil
		}
		img := image.NewGray(rect)
		for y := range a.Height {
			for x := range a.Width {
				img.SetGray(x, y, color.Gray{Y: uint8(quantize(a.At(y, x, 0)))})
			}
		}
		return img, nil

	case 3, 4:
		alpha := func(y, x int) uint16 {
			if a.Channels == 4 {
				return quantize(a.At(y, x, 3))
			}
			if wide {
				return 0xFFFF
			}
			return 0xFF
		}
		if wide {
			img := image.NewNRGBA64(rect)
			for y := range a.Height {
				for x := range a.Width {
					img.SetNRGBA64(x, y, color.NRGBA64{
						R: quantize(a.At(y, x, 0)), G: quantize(a.At(y, x, 1)), B: quantize(a.At(y, x, 2)),
						A: alpha(y, x)})
				}
			}
			return img, nil
		}
		img := image.NewNRGBA(rect)
		for y := range a.Height {
			for x := range a.Width {
				img.SetNRGBA(x, y, color.NRGBA{
					R: uint8(quantize(a.At(y, x, 0))), G: uint8(quantize(a.At(y, x, 1))), B: uint8(quantize(a.At(y, x, 2))),
					A: uint8(alpha(y, x))})
			}
		}
		return img, nil
	}
	return nil, errors.Errorf("cannot convert %s to image: only 1, 3 or 4 channels supported", a)
}
