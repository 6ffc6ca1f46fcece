// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package div2k provides the DIV2K super-resolution dataset: 800 training and 100 validation high resolution
// images, with their bicubic down-sampled versions.
//
// The root directory looks like:
//
//	root/
//	  DIV2K_train_HR/0001.png ...
//	  DIV2K_train_LR_bicubic/X2/0001x2.png ...
//	  DIV2K_train_LR_bicubic/X2_upsampled/0001x2.png ...
//	  DIV2K_valid_HR/0801.png ...
//	  DIV2K_valid_LR_bicubic/X2/0801x2.png ...
//
// The "_upsampled" directories are created by Prepare, bringing the low resolution images back to the size
// of the high resolution ones.
package div2k

import (
	"fmt"
	"path/filepath"

	"github.com/gomlx/superres/pkg/ml/datasets/imagedataset"
	"github.com/gomlx/superres/pkg/ml/resize"
	"github.com/gomlx/superres/pkg/ml/transforms"
	"github.com/gomlx/superres/pkg/support/downloader"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/gomlx/superres/pkg/support/ordered"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BaseURL where the DIV2K zip files are downloaded from.
var BaseURL = "https://data.vision.ee.ethz.ch/cvl/DIV2K/"

// View names.
const (
	HR = "hr"
	LR = "lr"
)

// Scales available in the dataset.
var Scales = []int{2, 3, 4}

// Split returns "train" or "valid".
func Split(train bool) string {
	if train {
		return "train"
	}
	return "valid"
}

func hrName(train bool) string { return fmt.Sprintf("DIV2K_%s_HR", Split(train)) }

func lrBaseName(train bool) string { return fmt.Sprintf("DIV2K_%s_LR_bicubic", Split(train)) }

// LowResDir returns the directory with the original (down-sampled) low resolution images for scale.
func LowResDir(root string, scale int, train bool) string {
	return filepath.Join(root, lrBaseName(train), fmt.Sprintf("X%d", scale))
}

// Dirs returns the directories of the "hr" and "lr" views: the high resolution images and the low resolution
// images up-sampled back to the high resolution size.
func Dirs(root string, scale int, train bool) *ordered.Map[string, string] {
	return ordered.New[string, string]().
		Set(HR, filepath.Join(root, hrName(train))).
		Set(LR, LowResDir(root, scale, train)+"_upsampled")
}

func checkScale(scale int) error {
	for _, s := range Scales {
		if s == scale {
			return nil
		}
	}
	return errors.Errorf("DIV2K: invalid scale %d, valid scales are %v", scale, Scales)
}

// New creates the DIV2K dataset for the given scale and split, with the super-resolution transformation
// (see transforms.NewSRTransform). If length > 0 it sets the virtual length of the dataset.
//
// The directories must have been prepared with Prepare.
func New(root string, scale int, train, useCache bool, patchSize, length int) (*imagedataset.Dataset, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	root, err := fsutil.ReplaceTildeInDir(root)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("DIV2K-%s-x%d", Split(train), scale)
	ds, err := imagedataset.New(name, Dirs(root, scale, train), useCache)
	if err != nil {
		return nil, err
	}
	return ds.WithTransform(transforms.NewSRTransform(train, patchSize)).WithLength(length), nil
}

// Download the high resolution and the low resolution zip files of the split, and unzip them, if the
// directories are not there yet.
func Download(root string, scale int, train bool) error {
	if err := checkScale(scale); err != nil {
		return err
	}
	root, err := fsutil.ReplaceTildeInDir(root)
	if err != nil {
		return err
	}
	hrZip := hrName(train) + ".zip"
	if err = downloader.DownloadAndUnzipIfMissing(BaseURL+hrZip, filepath.Join(root, hrZip), root,
		filepath.Join(root, hrName(train)), ""); err != nil {
		return errors.WithMessagef(err, "downloading DIV2K high resolution images")
	}
	lrZip := fmt.Sprintf("%s_X%d.zip", lrBaseName(train), scale)
	if err = downloader.DownloadAndUnzipIfMissing(BaseURL+lrZip, filepath.Join(root, lrZip), root,
		LowResDir(root, scale, train), ""); err != nil {
		return errors.WithMessagef(err, "downloading DIV2K low resolution images")
	}
	return nil
}

// Prepare downloads the dataset if needed (see Download), and up-samples the low resolution images to the
// high resolution size, if not done yet.
func Prepare(root string, scale int, train bool) error {
	if err := Download(root, scale, train); err != nil {
		return err
	}
	root, err := fsutil.ReplaceTildeInDir(root)
	if err != nil {
		return err
	}
	lrDir, _ := Dirs(root, scale, train).Get(LR)
	n, err := resize.UpsampleDir(LowResDir(root, scale, train), lrDir, float64(scale),
		resize.Options{ShowProgress: true})
	if err != nil {
		return errors.WithMessagef(err, "up-sampling DIV2K low resolution images")
	}
	klog.Infof("DIV2K %s x%d prepared in %q (%d images up-sampled)", Split(train), scale, root, n)
	return nil
}
