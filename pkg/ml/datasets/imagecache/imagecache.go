// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imagecache lists the images of a dataset directory and, optionally, materializes a binary
// cache of the decoded images, so later loads skip the image decoding.
//
// The cache of a directory `<dir>` lives in `<dir>/bin/`, with one file per image named after the image
// with the extension replaced by CacheExt. Cache entries are created once and never invalidated: if the
// source images change, remove the `bin` subdirectory.
package imagecache

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const (
	// SourceExt is the extension of the images scanned.
	SourceExt = ".png"

	// CacheSubDir is the subdirectory of a scanned directory holding the cache.
	CacheSubDir = "bin"

	// CacheExt is the extension of the cache files.
	CacheExt = ".gob"
)

// CacheDir returns the directory holding the cache for the images in dir.
func CacheDir(dir string) string {
	return filepath.Join(dir, CacheSubDir)
}

// CachePath returns the path of the cache entry for the given source image.
func CachePath(srcPath string) string {
	return filepath.Join(CacheDir(filepath.Dir(srcPath)), fsutil.ReplaceExt(srcPath, CacheExt))
}

// Stats accumulates the work done by a Scanner.
type Stats struct {
	// Found is the number of source images found.
	Found int64

	// Decoded is the number of source images decoded and written to the cache.
	Decoded int64

	// CacheHits is the number of source images whose cache entry already existed.
	CacheHits int64

	// BytesWritten to the cache.
	BytesWritten int64
}

// Scanner lists images in directories, and optionally builds their binary cache.
// Create it with New, and configure it before the first call to Scan.
//
// Scan can be called concurrently, and the Stats accumulate over all calls.
type Scanner struct {
	useCache     bool
	parallelism  int
	showProgress bool

	found, decoded, hits, bytesWritten atomic.Int64
}

// New creates a Scanner. If useCache is true, Scan materializes the binary cache and returns
// the paths to the cache entries instead of the paths to the images.
//
// By default, it uses as many goroutines as there are CPUs to build the cache, and it shows a progress
// bar if the standard error is a terminal.
func New(useCache bool) *Scanner {
	return &Scanner{
		useCache:     useCache,
		parallelism:  runtime.NumCPU(),
		showProgress: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Scan with a default Scanner: see Scanner.Scan.
func Scan(view, dir string, useCache bool) ([]string, error) {
	return New(useCache).Scan(view, dir)
}

// UseCache returns whether the Scanner builds and returns the binary cache.
func (s *Scanner) UseCache() bool { return s.useCache }

// WithParallelism sets the number of goroutines used to decode images and write the cache.
// If n <= 0, it uses the number of CPUs.
//
// It returns the Scanner, so configuration calls can be cascaded.
func (s *Scanner) WithParallelism(n int) *Scanner {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	s.parallelism = n
	return s
}

// WithProgressBar enables or disables the progress bar displayed while building the cache.
//
// It returns the Scanner, so configuration calls can be cascaded.
func (s *Scanner) WithProgressBar(show bool) *Scanner {
	s.showProgress = show
	return s
}

// Stats returns the work done so far.
func (s *Scanner) Stats() Stats {
	return Stats{
		Found:        s.found.Load(),
		Decoded:      s.decoded.Load(),
		CacheHits:    s.hits.Load(),
		BytesWritten: s.bytesWritten.Load(),
	}
}

// Scan lists the images (SourceExt files) directly in dir, sorted by file name.
//
// If the Scanner uses the cache, every image without a cache entry is decoded and saved in CacheDir(dir),
// and the paths of the cache entries are returned instead, in the same order.
// The view name is only used for logging.
//
// If an image fails to decode, it returns a *pixels.DecodeError. Cache entries written until then are kept.
func (s *Scanner) Scan(view, dir string) ([]string, error) {
	klog.Infof("Scanning data directory %q (view %q)", dir, view)
	srcPaths, err := fsutil.ListFiles(dir, SourceExt)
	if err != nil {
		return nil, errors.WithMessagef(err, "while scanning view %q", view)
	}
	klog.Infof("Found %d images.", len(srcPaths))
	s.found.Add(int64(len(srcPaths)))
	if !s.useCache {
		return srcPaths, nil
	}

	cacheDir := CacheDir(dir)
	if err = os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %q for view %q", cacheDir, view)
	}
	cachePaths := make([]string, len(srcPaths))
	var missing []int
	for ii, srcPath := range srcPaths {
		cachePaths[ii] = CachePath(srcPath)
		exists, err := fsutil.FileExists(cachePaths[ii])
		if err != nil {
			return nil, err
		}
		if exists {
			s.hits.Add(1)
		} else {
			missing = append(missing, ii)
		}
	}
	if len(missing) == 0 {
		return cachePaths, nil
	}

	var bar *progressbar.ProgressBar
	if s.showProgress {
		bar = progressbar.NewOptions(len(missing),
			progressbar.OptionSetDescription("Caching "+view),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}
	var bytesWritten atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(s.parallelism)
	for _, ii := range missing {
		if ctx.Err() != nil {
			// An image already failed: stop scheduling new ones.
			break
		}
		g.Go(func() error {
			n, err := s.writeEntry(srcPaths[ii], cachePaths[ii])
			if err != nil {
				return err
			}
			bytesWritten.Add(n)
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
	s.bytesWritten.Add(bytesWritten.Load())
	if err != nil {
		return nil, err
	}
	klog.Infof("Cached %d images of view %q in %q (%s).",
		len(missing), view, cacheDir, humanize.Bytes(uint64(bytesWritten.Load())))
	return cachePaths, nil
}

// writeEntry decodes srcPath and saves it to cachePath. The entry is written to a temporary file first and
// then renamed, so a concurrent reader or scanner never sees a partial entry.
// It returns the number of bytes written.
func (s *Scanner) writeEntry(srcPath, cachePath string) (int64, error) {
	img, err := pixels.DecodeFile(srcPath)
	if err != nil {
		return 0, err
	}
	s.decoded.Add(1)
	tmpPath := filepath.Join(filepath.Dir(cachePath), "."+uuid.NewString()+".tmp")
	if err = pixels.Save(img, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	info, err := os.Stat(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, errors.Wrapf(err, "failed to stat %q", tmpPath)
	}
	if err = os.Rename(tmpPath, cachePath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, errors.Wrapf(err, "failed to move cache entry into %q", cachePath)
	}
	klog.V(1).Infof("Cached %q -> %q", srcPath, cachePath)
	return info.Size(), nil
}
