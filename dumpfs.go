// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"io"
	"io/fs"
	"text/tabwriter"

	"github.com/elliotnunn/psarc/internal/psarc"
	"github.com/elliotnunn/psarc/internal/psarcfs"
)

func printSummary(w io.Writer, name string, r *psarc.Reader, rows int) {
	h := r.Header
	fmt.Fprintf(w, "FILENAME:\n  %s\n\n", name)
	fmt.Fprintf(w, "PSARC HEADER:\n")
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "  version\t%s\n", h.Version())
	fmt.Fprintf(tw, "  compression\t%s\n", h.Compression)
	fmt.Fprintf(tw, "  toc length\t%d\n", h.TOCLength)
	fmt.Fprintf(tw, "  entry size\t%d\n", h.EntrySize)
	fmt.Fprintf(tw, "  entry count\t%d\n", h.EntryCount)
	fmt.Fprintf(tw, "  block size\t%d\n", h.BlockSize)
	fmt.Fprintf(tw, "  flags\t%s\n", h.Flags)
	tw.Flush()

	fmt.Fprintf(w, "\nTOC TABLE:\n  ENTRIES: %d\n  BLOCKS: %d\n", len(r.Entries), len(r.Blocks))
	if rows <= 0 {
		return
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "  #\thash\tblock\tsize\toffset\t\n")
	for i, e := range r.Entries[:min(rows, len(r.Entries))] {
		fmt.Fprintf(tw, "  %d\t%s\t%d\t%d\t%d\t\n", i, e.ContentHash, e.BlockOffset, e.UncompressedSize, e.FileOffset)
	}
	tw.Flush()
	if rows < len(r.Entries) {
		fmt.Fprintf(w, "  ... %d more\n", len(r.Entries)-rows)
	}
}

func printListing(w io.Writer, fsys *psarcfs.FS, globs []string, long bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !matchAny(globs, name) {
			return err
		}
		if !long {
			fmt.Fprintln(tw, name)
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		e := info.Sys().(psarc.Entry)
		fmt.Fprintf(tw, "%d\t%s\t%s\n", info.Size(), e.ContentHash, name)
		return nil
	})
	if ferr := tw.Flush(); err == nil {
		err = ferr
	}
	return err
}
