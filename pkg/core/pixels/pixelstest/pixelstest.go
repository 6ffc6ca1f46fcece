// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pixelstest holds test helpers to create image fixtures on disk.
package pixelstest

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
)

// Pattern returns an opaque RGB image whose pixel (x, y) has a color that depends on (x, y) and seed,
// so crops and flips can be told apart.
func Pattern(width, height, seed int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x + seed),
				G: uint8(y + 3*seed),
				B: uint8((x*7 + y*13 + seed) % 256),
				A: 255,
			})
		}
	}
	return img
}

// WritePNG writes Pattern(width, height, seed) as a PNG file in dir/name, and returns its path.
// Missing directories are created.
func WritePNG(t testing.TB, dir, name string, width, height, seed int) string {
	t.Helper()
	must.M(os.MkdirAll(dir, 0755))
	filePath := filepath.Join(dir, name)
	f := must.M1(os.Create(filePath))
	must.M(png.Encode(f, Pattern(width, height, seed)))
	must.M(f.Close())
	return filePath
}

// WriteView writes numImages PNG files named "0001.png", "0002.png", ... in dir, each with the given size.
// It returns dir.
func WriteView(t testing.TB, dir string, numImages, width, height int) string {
	t.Helper()
	for ii := range numImages {
		WritePNG(t, dir, WriteViewName(ii+1, ".png"), width, height, ii)
	}
	return dir
}

// WriteViewName returns the zero-padded file name used by WriteView for the n-th image, with the given extension.
func WriteViewName(n int, ext string) string {
	name := []byte("0000")
	for pos := 3; pos >= 0 && n > 0; pos-- {
		name[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(name) + ext
}
