// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/superres/pkg/ml/datasets/imagecache"
	"github.com/gomlx/superres/pkg/ml/datasets/imagedataset"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
)

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			}
			return s.Align(alignment)
		})
}

type scanRow struct {
	View, Dir string
	Stats     imagecache.Stats
}

func scanTable(rows []scanRow) *lgtable.Table {
	t := newPlainTable(lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Right, lipgloss.Right).
		Headers("View", "Directory", "Images", "Decoded", "Cache Hits", "Written")
	for _, r := range rows {
		t.Row(r.View, r.Dir,
			humanize.Comma(r.Stats.Found),
			humanize.Comma(r.Stats.Decoded),
			humanize.Comma(r.Stats.CacheHits),
			humanize.Bytes(uint64(r.Stats.BytesWritten)))
	}
	return t
}

func examplesTable(ds *imagedataset.Dataset, examples []*imagedataset.Example) *lgtable.Table {
	t := newPlainTable(lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Left).
		Headers("Index", "View", "File", "Shape", "Layout")
	for _, example := range examples {
		paths, _ := ds.Paths(example.Index)
		for view, img := range example.Views.All() {
			path, _ := paths.Get(view)
			t.Row(fmt.Sprint(example.Index), view, filepath.Base(path), fmt.Sprint(img.Shape()), img.Layout.String())
		}
	}
	return t
}
