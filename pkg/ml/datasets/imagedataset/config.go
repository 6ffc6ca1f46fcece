// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imagedataset

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/gomlx/superres/pkg/ml/transforms"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/gomlx/superres/pkg/support/ordered"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ViewConfig configures one view of a dataset.
type ViewConfig struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
}

// Config of a dataset, usually read from a YAML file with LoadConfig:
//
//	name: div2k-train-x2
//	views:
//	  - name: hr
//	    dir: DIV2K_train_HR
//	  - name: lr
//	    dir: DIV2K_train_LR_bicubic/X2_upsampled
//	use_binary_cache: true
//	train: true
//	patch_size: 48
//	seed: 42
//	length: 16000
type Config struct {
	Name  string       `yaml:"name"`
	Views []ViewConfig `yaml:"views"`

	// UseBinaryCache defaults to true if not set.
	UseBinaryCache *bool `yaml:"use_binary_cache,omitempty"`

	// Train selects the training transformation (random crop and flip) instead of the evaluation one.
	Train bool `yaml:"train"`

	// PatchSize is the crop size, in pixels of the smallest view. If 0 images are not cropped.
	PatchSize int `yaml:"patch_size"`

	// Seed for the random transformations. If not set, the dataset is seeded randomly.
	Seed *int64 `yaml:"seed,omitempty"`

	// Length is the virtual length of the dataset, see Dataset.WithLength.
	Length int `yaml:"length"`
}

// CacheEnabled returns whether the binary cache is used.
func (c *Config) CacheEnabled() bool {
	return c.UseBinaryCache == nil || *c.UseBinaryCache
}

// Validate the configuration.
func (c *Config) Validate() error {
	if len(c.Views) == 0 {
		return errors.Errorf("dataset config %q has no views", c.Name)
	}
	seen := make(map[string]bool, len(c.Views))
	for ii, v := range c.Views {
		if v.Name == "" || v.Dir == "" {
			return errors.Errorf("dataset config %q: view #%d must have both a name and a dir", c.Name, ii)
		}
		if seen[v.Name] {
			return errors.Errorf("dataset config %q: view %q defined more than once", c.Name, v.Name)
		}
		seen[v.Name] = true
	}
	if c.PatchSize < 0 || c.Length < 0 {
		return errors.Errorf("dataset config %q: patch_size (%d) and length (%d) must not be negative",
			c.Name, c.PatchSize, c.Length)
	}
	return nil
}

// Dirs returns the map of view name to directory, in the order of the configuration.
func (c *Config) Dirs() *ordered.Map[string, string] {
	dirs := ordered.New[string, string](len(c.Views))
	for _, v := range c.Views {
		dirs.Set(v.Name, v.Dir)
	}
	return dirs
}

// LoadConfig reads a YAML dataset configuration. Unknown fields are an error.
//
// A "~" prefix in the view directories is replaced by the home directory, and relative directories are taken
// relative to the directory of the configuration file.
func LoadConfig(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read dataset config %q", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	cfg := &Config{}
	if err = dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse dataset config %q", path)
	}
	if err = cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "in %q", path)
	}
	baseDir := filepath.Dir(path)
	for ii := range cfg.Views {
		dir, err := fsutil.ReplaceTildeInDir(cfg.Views[ii].Dir)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		cfg.Views[ii].Dir = dir
	}
	if cfg.Name == "" {
		cfg.Name = fsutil.ReplaceExt(path, "")
	}
	return cfg, nil
}

// FromConfig creates the dataset described by cfg, with the transformation given by
// transforms.NewSRTransform(cfg.Train, cfg.PatchSize).
func FromConfig(cfg *Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := New(cfg.Name, cfg.Dirs(), cfg.CacheEnabled())
	if err != nil {
		return nil, err
	}
	ds.WithTransform(transforms.NewSRTransform(cfg.Train, cfg.PatchSize)).WithLength(cfg.Length)
	if cfg.Seed != nil {
		ds.WithSeed(*cfg.Seed)
	}
	return ds, nil
}
