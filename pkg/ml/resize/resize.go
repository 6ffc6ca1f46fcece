// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package resize up-samples directories of images, e.g. to bring the low resolution images of a
// super-resolution dataset to the size of their high resolution counterparts.
package resize

import (
	"context"
	"image"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/gomlx/superres/pkg/ml/datasets/imagecache"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Options for UpsampleDir. The zero value is valid.
type Options struct {
	// Overwrite existing output images. By default, they are skipped.
	Overwrite bool

	// Parallelism is the number of images resized concurrently. If <= 0 it uses the number of CPUs.
	Parallelism int

	// ShowProgress displays a progress bar. It is only displayed if the standard error is a terminal.
	ShowProgress bool
}

// Size returns the size of an image of width x height resized by scale, rounded to the nearest pixel.
func Size(width, height int, scale float64) (int, int) {
	return int(math.Round(float64(width) * scale)), int(math.Round(float64(height) * scale))
}

// Image resizes img by scale with a bicubic (Catmull-Rom) filter. Values are clamped to the valid range.
func Image(img image.Image, scale float64) *image.NRGBA {
	width, height := Size(img.Bounds().Dx(), img.Bounds().Dy(), scale)
	return imaging.Resize(img, width, height, imaging.CatmullRom)
}

// UpsampleDir resizes every image (imagecache.SourceExt) in srcDir by scale and saves it with the same file
// name in dstDir, which is created if needed.
//
// It returns the number of images written.
func UpsampleDir(srcDir, dstDir string, scale float64, opts Options) (int, error) {
	if scale <= 0 {
		return 0, errors.Errorf("resize.UpsampleDir: invalid scale %g", scale)
	}
	srcPaths, err := fsutil.ListFiles(srcDir, imagecache.SourceExt)
	if err != nil {
		return 0, err
	}
	if err = os.MkdirAll(dstDir, 0755); err != nil {
		return 0, errors.Wrapf(err, "failed to create %q", dstDir)
	}

	var todo []string
	for _, srcPath := range srcPaths {
		dstPath := filepath.Join(dstDir, filepath.Base(srcPath))
		if !opts.Overwrite {
			exists, err := fsutil.FileExists(dstPath)
			if err != nil {
				return 0, err
			}
			if exists {
				continue
			}
		}
		todo = append(todo, srcPath)
	}
	klog.Infof("Resizing %d of %d images from %q to %q (scale %g)", len(todo), len(srcPaths), srcDir, dstDir, scale)
	if len(todo) == 0 {
		return 0, nil
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.Default(int64(len(todo)), "Resizing")
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	var count atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(parallelism)
	for _, srcPath := range todo {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := resizeFile(srcPath, filepath.Join(dstDir, filepath.Base(srcPath)), scale); err != nil {
				return err
			}
			count.Add(1)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	if bar != nil {
		_ = bar.Close()
	}
	return int(count.Load()), err
}

func resizeFile(srcPath, dstPath string, scale float64) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return errors.Wrapf(err, "failed to decode %q", srcPath)
	}
	if err = imaging.Save(Image(img, scale), dstPath); err != nil {
		return errors.Wrapf(err, "failed to save %q", dstPath)
	}
	klog.V(1).Infof("Resized %q -> %q", srcPath, dstPath)
	return nil
}
