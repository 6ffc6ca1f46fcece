// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imagedataset implements a dataset of paired images: each example is made of one image per "view"
// (e.g. the high resolution "hr" and the low resolution "lr" images), loaded from one directory per view.
//
// Images are aligned by their sorted file names: the i-th image of every view belongs to example i.
//
// Example:
//
//	dirs := ordered.New[string, string]().
//		Set("hr", "~/work/DIV2K/DIV2K_train_HR").
//		Set("lr", "~/work/DIV2K/DIV2K_train_LR_bicubic/X2_upsampled")
//	ds, err := imagedataset.New("div2k", dirs, true)
//	if err != nil { ... }
//	ds = ds.WithTransform(transforms.NewSRTransform(true, 48)).WithSeed(42)
//	example, err := ds.Get(0)
package imagedataset

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/gomlx/superres/pkg/ml/datasets/imagecache"
	"github.com/gomlx/superres/pkg/ml/transforms"
	"github.com/gomlx/superres/pkg/support/ordered"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Errors returned by the dataset, to be matched with errors.Is.
var (
	// ErrIndexOutOfRange is returned by Get for indices outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrShapeMismatch is returned when views have different number of images.
	ErrShapeMismatch = ordered.ErrShapeMismatch

	// ErrDecode is returned when an image or a cache entry can't be read.
	ErrDecode = pixels.ErrDecode

	// ErrInvalidCropSize is returned when the transform crop doesn't fit the images.
	ErrInvalidCropSize = transforms.ErrInvalidCropSize

	// ErrInconsistentScale is returned when the views sizes are not integer multiples of each other.
	ErrInconsistentScale = transforms.ErrInconsistentScale
)

// Example is one loaded example: its index and one image per view, in the order of the views.
type Example struct {
	Index int
	Views *transforms.Views
}

// Dataset of paired images. Create it with New, and configure it with the With* methods before use.
//
// After configuration, it is safe for concurrent use.
type Dataset struct {
	name      string
	viewNames []string
	records   []*ordered.Map[string, string]
	transform *transforms.Chain
	length    int

	muRng sync.Mutex
	rng   *rand.Rand
}

// New scans the directories of each view (a map of view name to directory) and creates a Dataset.
//
// If useCache is true, the binary cache of each directory is created if missing, and examples are loaded
// from it. See package imagecache.
//
// All views must have the same number of images, or it fails with ErrShapeMismatch.
func New(name string, dirs *ordered.Map[string, string], useCache bool) (*Dataset, error) {
	return NewWithScanner(name, dirs, imagecache.New(useCache))
}

// NewWithScanner is like New, but uses the given scanner, which defines whether the binary cache is used.
func NewWithScanner(name string, dirs *ordered.Map[string, string], scanner *imagecache.Scanner) (*Dataset, error) {
	if dirs == nil || dirs.Len() == 0 {
		return nil, errors.Errorf("dataset %q has no views configured", name)
	}
	columns := ordered.New[string, []string](dirs.Len())
	for view, dir := range dirs.All() {
		paths, err := scanner.Scan(view, dir)
		if err != nil {
			return nil, errors.WithMessagef(err, "dataset %q", name)
		}
		columns.Set(view, paths)
	}
	records, err := ordered.ToRecords(columns)
	if err != nil {
		var counts []string
		for view, paths := range columns.All() {
			counts = append(counts, fmt.Sprintf("%s: %d", view, len(paths)))
		}
		return nil, errors.WithMessagef(err, "dataset %q views have different number of images (%s)",
			name, strings.Join(counts, ", "))
	}
	klog.V(1).Infof("Dataset %q: %d examples with views %v", name, len(records), dirs.Keys())
	return &Dataset{
		name:      name,
		viewNames: dirs.Keys(),
		records:   records,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// Name of the dataset.
func (ds *Dataset) Name() string { return ds.name }

// WithTransform sets the transformation applied to every example loaded.
// If nil, examples are returned as decoded.
//
// It returns the Dataset, so configuration calls can be cascaded.
func (ds *Dataset) WithTransform(transform *transforms.Chain) *Dataset {
	ds.transform = transform
	return ds
}

// Transform returns the transformation applied to examples, or nil.
func (ds *Dataset) Transform() *transforms.Chain { return ds.transform }

// WithSeed makes the random transformations reproducible: calling Get with the same sequence of indices
// yields the same examples. By default, the dataset is seeded randomly.
//
// It returns the Dataset, so configuration calls can be cascaded.
func (ds *Dataset) WithSeed(seed int64) *Dataset {
	ds.muRng.Lock()
	defer ds.muRng.Unlock()
	ds.rng = rand.New(rand.NewPCG(uint64(seed), 0))
	return ds
}

// WithLength sets a virtual length for the dataset: if n > 0, Len returns n, and the example i is loaded
// from the images i % NumRecords(). This is useful to run a number of random crops per image in each epoch.
// If n <= 0 the length is the number of records.
//
// It returns the Dataset, so configuration calls can be cascaded.
func (ds *Dataset) WithLength(n int) *Dataset {
	ds.length = max(n, 0)
	return ds
}

// NumRecords returns the number of images per view.
func (ds *Dataset) NumRecords() int { return len(ds.records) }

// Len returns the number of examples: the virtual length if set with WithLength, or NumRecords otherwise.
func (ds *Dataset) Len() int {
	if ds.length > 0 && len(ds.records) > 0 {
		return ds.length
	}
	return len(ds.records)
}

// ViewNames returns the names of the views, in order.
func (ds *Dataset) ViewNames() []string {
	return append([]string(nil), ds.viewNames...)
}

// checkIndex returns the record index for the example index i.
func (ds *Dataset) checkIndex(i int) (int, error) {
	if i < 0 || i >= ds.Len() {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d for dataset %q of length %d", i, ds.name, ds.Len())
	}
	return i % len(ds.records), nil
}

// Paths returns the path of the file of each view for the example i.
// Files are either the source images or their binary cache entries.
func (ds *Dataset) Paths(i int) (*ordered.Map[string, string], error) {
	recordIdx, err := ds.checkIndex(i)
	if err != nil {
		return nil, err
	}
	return ds.records[recordIdx].Clone(), nil
}

// Get loads the example i, for i in [0, Len()), and applies the transformation if one is configured.
//
// Each call uses its own random number generator, seeded from the dataset generator, so it is
// safe to call Get concurrently.
func (ds *Dataset) Get(i int) (*Example, error) {
	if _, err := ds.checkIndex(i); err != nil {
		return nil, err
	}
	ds.muRng.Lock()
	seed1, seed2 := ds.rng.Uint64(), ds.rng.Uint64()
	ds.muRng.Unlock()
	return ds.GetWithRand(rand.New(rand.NewPCG(seed1, seed2)), i)
}

// GetWithRand is like Get, but uses the given random number generator for the transformation.
func (ds *Dataset) GetWithRand(rng *rand.Rand, i int) (*Example, error) {
	recordIdx, err := ds.checkIndex(i)
	if err != nil {
		return nil, err
	}
	views := ordered.New[string, *pixels.Array](len(ds.viewNames))
	for view, path := range ds.records[recordIdx].All() {
		img, err := loadImage(path)
		if err != nil {
			return nil, errors.WithMessagef(err, "loading view %q of example %d of dataset %q", view, i, ds.name)
		}
		views.Set(view, img)
	}
	if ds.transform != nil {
		views, err = ds.transform.ApplyPaired(rng, views)
		if err != nil {
			return nil, errors.WithMessagef(err, "transforming example %d of dataset %q", i, ds.name)
		}
	}
	return &Example{Index: i, Views: views}, nil
}

// loadImage loads a binary cache entry or decodes an image, according to the file extension.
func loadImage(path string) (*pixels.Array, error) {
	if filepath.Ext(path) == imagecache.CacheExt {
		return pixels.Load(path)
	}
	return pixels.DecodeFile(path)
}
