// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/superres/pkg/core/pixels/pixelstest"
	"github.com/gomlx/superres/pkg/ml/datasets/imagecache"
	"github.com/gomlx/superres/pkg/ml/datasets/imagedataset"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseViews(t *testing.T) {
	dirs, err := parseViews([]string{"lr=/data/lr", "hr=/data/hr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lr", "hr"}, dirs.Keys())
	hr, _ := dirs.Get("hr")
	assert.Equal(t, "/data/hr", hr)

	for _, bad := range [][]string{{"hr"}, {"=dir"}, {"hr="}, {"hr=a", "hr=b"}} {
		_, err = parseViews(bad)
		assert.Error(t, err, "views %q", bad)
	}
}

func TestViewsFlagsConfig(t *testing.T) {
	f := &ViewsFlags{View: []string{"hr=/a", "lr=/b"}, NoCache: true}
	cfg, err := f.config()
	require.NoError(t, err)
	assert.False(t, cfg.CacheEnabled())
	assert.Equal(t, []string{"hr", "lr"}, cfg.Dirs().Keys())

	_, err = (&ViewsFlags{}).config()
	require.Error(t, err)
}

func TestTables(t *testing.T) {
	rendered := scanTable([]scanRow{{
		View: "hr", Dir: "/data/hr",
		Stats: imagecache.Stats{Found: 1200, Decoded: 1200, BytesWritten: 2048},
	}}).String()
	assert.Contains(t, rendered, "1,200")
	assert.Contains(t, rendered, "2.0 kB")

	root := t.TempDir()
	dir := pixelstest.WriteView(t, filepath.Join(root, "hr"), 2, 4, 3)
	ds := must.M1(imagedataset.NewWithScanner("t", must.M1(parseViews([]string{"hr=" + dir})),
		imagecache.New(false).WithProgressBar(false)))
	example := must.M1(ds.Get(1))
	rendered = examplesTable(ds, []*imagedataset.Example{example}).String()
	assert.Contains(t, rendered, "0002.png")
	assert.Contains(t, rendered, "[3 4 3]")
}
