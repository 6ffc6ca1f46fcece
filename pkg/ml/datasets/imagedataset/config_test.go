// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imagedataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/superres/pkg/core/pixels/pixelstest"
	"github.com/gomlx/superres/pkg/ml/datasets/imagecache"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	pixelstest.WriteView(t, filepath.Join(root, "data", "hr"), 2, 12, 12)
	pixelstest.WriteView(t, filepath.Join(root, "data", "lr"), 2, 6, 6)
	configPath := filepath.Join(root, "pairs.yaml")
	must.M(os.WriteFile(configPath, []byte(`
views:
  - name: hr
    dir: data/hr
  - name: lr
    dir: data/lr
patch_size: 3
seed: 7
length: 5
`), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "pairs", cfg.Name)
	assert.True(t, cfg.CacheEnabled())
	assert.False(t, cfg.Train)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(7), *cfg.Seed)
	assert.Equal(t, []string{"hr", "lr"}, cfg.Dirs().Keys())
	hrDir, _ := cfg.Dirs().Get("hr")
	assert.Equal(t, filepath.Join(root, "data", "hr"), hrDir)

	ds, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 2, ds.NumRecords())
	assert.Equal(t, 3, ds.Transform().Len())
	assert.DirExists(t, imagecache.CacheDir(hrDir))
	example := must.M1(ds.Get(4))
	hr, _ := example.Views.Get("hr")
	assert.Equal(t, []int{3, 6, 6}, hr.Shape())
}

func TestLoadConfigErrors(t *testing.T) {
	root := t.TempDir()
	write := func(name, contents string) string {
		p := filepath.Join(root, name)
		must.M(os.WriteFile(p, []byte(contents), 0644))
		return p
	}
	_, err := LoadConfig(filepath.Join(root, "missing.yaml"))
	require.Error(t, err)

	_, err = LoadConfig(write("unknown.yaml", "views: [{name: hr, dir: hr}]\nbatch: 3\n"))
	require.Error(t, err)

	_, err = LoadConfig(write("noviews.yaml", "name: x\n"))
	require.Error(t, err)

	_, err = LoadConfig(write("dup.yaml", "views: [{name: hr, dir: a}, {name: hr, dir: b}]\n"))
	require.Error(t, err)

	cfg, err := LoadConfig(write("nocache.yaml", "views: [{name: hr, dir: /tmp/hr}]\nuse_binary_cache: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.CacheEnabled())
	assert.Equal(t, "/tmp/hr", cfg.Views[0].Dir)
}
