// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imagecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/superres/pkg/core/pixels"
	"github.com/gomlx/superres/pkg/core/pixels/pixelstest"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePaths(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "DIV2K_train_HR", "bin"), CacheDir(filepath.Join("data", "DIV2K_train_HR")))
	assert.Equal(t, filepath.Join("data", "hr", "bin", "0001.gob"), CachePath(filepath.Join("data", "hr", "0001.png")))
}

func TestScanWithoutCache(t *testing.T) {
	dir := pixelstest.WriteView(t, filepath.Join(t.TempDir(), "hr"), 3, 8, 6)
	must.M(os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0644))

	paths, err := Scan("hr", dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "0001.png"),
		filepath.Join(dir, "0002.png"),
		filepath.Join(dir, "0003.png"),
	}, paths)
	assert.NoDirExists(t, CacheDir(dir))
}

func TestScanIsIdempotent(t *testing.T) {
	dir := pixelstest.WriteView(t, filepath.Join(t.TempDir(), "lr"), 4, 5, 7)

	first := New(true).WithProgressBar(false).WithParallelism(2)
	paths, err := first.Scan("lr", dir)
	require.NoError(t, err)
	require.Len(t, paths, 4)
	stats := first.Stats()
	assert.Equal(t, int64(4), stats.Found)
	assert.Equal(t, int64(4), stats.Decoded)
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Greater(t, stats.BytesWritten, int64(0))

	contents := make([][]byte, len(paths))
	for ii, p := range paths {
		assert.Equal(t, filepath.Join(CacheDir(dir), pixelstest.WriteViewName(ii+1, CacheExt)), p)
		contents[ii] = must.M1(os.ReadFile(p))
		cached := must.M1(pixels.Load(p))
		decoded := must.M1(pixels.DecodeFile(filepath.Join(dir, pixelstest.WriteViewName(ii+1, SourceExt))))
		assert.True(t, decoded.Equal(cached), "cache entry %q differs from source image", p)
	}

	second := New(true).WithProgressBar(false)
	paths2, err := second.Scan("lr", dir)
	require.NoError(t, err)
	assert.Equal(t, paths, paths2)
	stats = second.Stats()
	assert.Equal(t, int64(0), stats.Decoded)
	assert.Equal(t, int64(4), stats.CacheHits)
	assert.Equal(t, int64(0), stats.BytesWritten)
	for ii, p := range paths2 {
		assert.Equal(t, contents[ii], must.M1(os.ReadFile(p)))
	}

	// No temporary files are left behind.
	entries := must.M1(os.ReadDir(CacheDir(dir)))
	assert.Len(t, entries, 4)
}

func TestScanDecodeError(t *testing.T) {
	dir := pixelstest.WriteView(t, filepath.Join(t.TempDir(), "hr"), 2, 4, 4)
	badPath := filepath.Join(dir, "0003.png")
	must.M(os.WriteFile(badPath, []byte("garbage"), 0644))

	_, err := New(true).WithProgressBar(false).WithParallelism(1).Scan("hr", dir)
	require.ErrorIs(t, err, pixels.ErrDecode)
	var decodeErr *pixels.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, badPath, decodeErr.Path)

	// Entries of the images that decoded fine are kept.
	assert.FileExists(t, filepath.Join(CacheDir(dir), "0001.gob"))
	assert.FileExists(t, filepath.Join(CacheDir(dir), "0002.gob"))
	assert.NoFileExists(t, filepath.Join(CacheDir(dir), "0003.gob"))
}

func TestScanMissingDir(t *testing.T) {
	_, err := Scan("hr", filepath.Join(t.TempDir(), "missing"), true)
	require.Error(t, err)
}
