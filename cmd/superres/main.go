// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// superres prepares and inspects paired-image super-resolution datasets.
//
// Examples:
//
//	superres download --root ~/work/DIV2K --scale 2 --prepare
//	superres scan --view hr=~/work/DIV2K/DIV2K_train_HR --view lr=~/work/DIV2K/DIV2K_train_LR_bicubic/X2_upsampled
//	superres inspect --config div2k_train.yaml -n 3
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"k8s.io/klog/v2"
)

// CLI is the root of the command line.
type CLI struct {
	Verbosity int `name:"v" default:"0" help:"klog verbosity level."`

	Scan     ScanCmd     `cmd:"" help:"Scan the views and build their binary cache."`
	Resize   ResizeCmd   `cmd:"" help:"Up-sample a directory of images."`
	Download DownloadCmd `cmd:"" help:"Download (and optionally prepare) the DIV2K dataset."`
	Inspect  InspectCmd  `cmd:"" help:"Load the first examples of a dataset and print their shapes."`
}

// AfterApply configures klog before any command runs.
func (c *CLI) AfterApply() error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	return fs.Set("v", strconv.Itoa(c.Verbosity))
}

func main() {
	var cli CLI
	kctx := kong.Parse(
		&cli,
		kong.Name("superres"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Description("Paired-image super-resolution datasets: download, resize, cache and inspect."),
	)
	err := kctx.Run(&cli)
	klog.Flush()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
