// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/superres/pkg/ml/datasets/div2k"
	"github.com/gomlx/superres/pkg/ml/datasets/imagecache"
	"github.com/gomlx/superres/pkg/ml/datasets/imagedataset"
	"github.com/gomlx/superres/pkg/ml/resize"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/gomlx/superres/pkg/support/ordered"
	"github.com/pkg/errors"
)

// ViewsFlags selects the views of a dataset, either from a configuration file or from the command line.
type ViewsFlags struct {
	Config  string   `help:"YAML dataset configuration file." type:"path" xor:"views"`
	View    []string `help:"View given as name=dir, can be repeated." xor:"views"`
	NoCache bool     `help:"Don't use the binary cache."`
}

// parseViews parses "name=dir" entries, keeping their order.
func parseViews(entries []string) (*ordered.Map[string, string], error) {
	dirs := ordered.New[string, string](len(entries))
	for _, entry := range entries {
		name, dir, found := strings.Cut(entry, "=")
		if !found || name == "" || dir == "" {
			return nil, errors.Errorf("invalid view %q, expected name=dir", entry)
		}
		if dirs.Has(name) {
			return nil, errors.Errorf("view %q given more than once", name)
		}
		dir, err := fsutil.ReplaceTildeInDir(dir)
		if err != nil {
			return nil, err
		}
		dirs.Set(name, dir)
	}
	return dirs, nil
}

// config returns the dataset configuration selected by the flags.
func (f *ViewsFlags) config() (*imagedataset.Config, error) {
	if f.Config != "" {
		cfg, err := imagedataset.LoadConfig(f.Config)
		if err != nil {
			return nil, err
		}
		if f.NoCache {
			useCache := false
			cfg.UseBinaryCache = &useCache
		}
		return cfg, nil
	}
	if len(f.View) == 0 {
		return nil, errors.New("no views given, use --config or --view")
	}
	dirs, err := parseViews(f.View)
	if err != nil {
		return nil, err
	}
	useCache := !f.NoCache
	cfg := &imagedataset.Config{Name: "cli", UseBinaryCache: &useCache}
	for name, dir := range dirs.All() {
		cfg.Views = append(cfg.Views, imagedataset.ViewConfig{Name: name, Dir: dir})
	}
	return cfg, nil
}

// ScanCmd builds the binary cache of every view.
type ScanCmd struct {
	ViewsFlags `embed:""`
	Parallelism int `short:"p" default:"0" help:"Number of images decoded in parallel, 0 for the number of CPUs."`
}

// Run implements the "scan" command.
func (c *ScanCmd) Run() error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	var rows []scanRow
	for name, dir := range cfg.Dirs().All() {
		scanner := imagecache.New(cfg.CacheEnabled()).WithParallelism(c.Parallelism)
		if _, err := scanner.Scan(name, dir); err != nil {
			return err
		}
		rows = append(rows, scanRow{View: name, Dir: dir, Stats: scanner.Stats()})
	}
	fmt.Println(scanTable(rows))
	return nil
}

// ResizeCmd up-samples a directory.
type ResizeCmd struct {
	Src         string  `arg:"" type:"existingdir" help:"Directory with the images to resize."`
	Dst         string  `arg:"" type:"path" help:"Output directory."`
	Scale       float64 `short:"s" default:"2" help:"Resize factor."`
	Overwrite   bool    `help:"Overwrite existing output images."`
	Parallelism int     `short:"p" default:"0" help:"Number of images resized in parallel, 0 for the number of CPUs."`
}

// Run implements the "resize" command.
func (c *ResizeCmd) Run() error {
	n, err := resize.UpsampleDir(c.Src, c.Dst, c.Scale, resize.Options{
		Overwrite:    c.Overwrite,
		Parallelism:  c.Parallelism,
		ShowProgress: true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d images written to %s\n", n, c.Dst)
	return nil
}

// DownloadCmd downloads DIV2K.
type DownloadCmd struct {
	Root    string `short:"r" required:"" type:"path" help:"Directory where to store the dataset."`
	Scale   int    `short:"s" default:"2" help:"Down-sampling scale of the low resolution images."`
	Valid   bool   `help:"Download the validation split instead of the training one."`
	Prepare bool   `help:"Also up-sample the low resolution images."`
}

// Run implements the "download" command.
func (c *DownloadCmd) Run() error {
	if err := os.MkdirAll(c.Root, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %q", c.Root)
	}
	train := !c.Valid
	if c.Prepare {
		return div2k.Prepare(c.Root, c.Scale, train)
	}
	return div2k.Download(c.Root, c.Scale, train)
}

// InspectCmd loads the first examples of a dataset.
type InspectCmd struct {
	ViewsFlags `embed:""`
	NumExamples int `short:"n" default:"1" help:"Number of examples to load."`
}

// Run implements the "inspect" command.
func (c *InspectCmd) Run() error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	ds, err := imagedataset.FromConfig(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Dataset %q: %s examples (%s records), views %v\n", ds.Name(),
		humanize.Comma(int64(ds.Len())), humanize.Comma(int64(ds.NumRecords())), ds.ViewNames())
	if ds.Transform() != nil {
		fmt.Println(ds.Transform())
	}
	var examples []*imagedataset.Example
	for i := range min(c.NumExamples, ds.Len()) {
		example, err := ds.Get(i)
		if err != nil {
			return err
		}
		examples = append(examples, example)
	}
	fmt.Println(examplesTable(ds, examples))
	return nil
}
