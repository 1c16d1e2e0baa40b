// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/elliotnunn/psarc/internal/blockcache"
	"golang.org/x/sync/errgroup"
)

// Archive is everything the header and TOC say about a PSARC file.
type Archive struct {
	Header  Header
	Entries []Entry  // in TOC order, len(Entries) == Header.EntryCount
	Blocks  []uint32 // compressed length of each storage block, 0 meaning a full raw block
}

// Options control how the TOC is read. The zero value is ready to use.
type Options struct {
	// Strict requires the TOC region to hold exactly the rows, with no block-length table:
	// Header.TOCLength must equal EntryCount*EntrySize.
	// Without it a remainder after the rows is accepted if it is a whole block-length table.
	Strict bool

	// KeepExtra copies row bytes past MinEntrySize into Entry.Extra.
	KeepExtra bool

	// Workers > 1 decodes rows on that many goroutines.
	Workers int

	// Cache, if set, keeps decompressed payload blocks for Reader.
	Cache *blockcache.Cache
}

// below this many rows a goroutine costs more than it saves
const parallelRows = 1024

// Read decodes the header and TOC from r with default [Options].
func Read(r io.Reader) (*Archive, error) { return Options{}.Read(r) }

// Open reads the header and TOC of the named file with default [Options].
func Open(name string) (*Archive, error) { return Options{}.Open(name) }

func (o Options) Open(name string) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, ioError("open", err)
	}
	defer f.Close()
	return o.Read(bufio.NewReader(f))
}

// Read decodes the header and TOC from r, which must be positioned at the start of the archive.
// Exactly HeaderSize+Header.TOCLength bytes are consumed.
// Either a complete Archive or an error is returned, never both.
func (o Options) Read(r io.Reader) (*Archive, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	rowsLen, err := o.checkRegion(h)
	if err != nil {
		return nil, err
	}

	// grows as data arrives, so a lying header cannot force a huge allocation
	region, err := io.ReadAll(io.LimitReader(r, int64(h.TOCLength)))
	if err != nil {
		return nil, ioError("toc", err)
	}
	if len(region) != int(h.TOCLength) {
		return nil, ioError("toc", fmt.Errorf("got %d of %d bytes: %w", len(region), h.TOCLength, io.ErrUnexpectedEOF))
	}

	if h.Flags&FlagEncryptedTOC != 0 {
		if region, err = DecryptTOC(region); err != nil {
			return nil, err
		}
	}

	entries, err := o.parseRows(region[:rowsLen], h)
	if err != nil {
		return nil, err
	}
	blocks := parseBlockTable(region[rowsLen:], h.BlockSize)

	slog.Debug("psarcTOC", "version", h.Version(), "compression", h.Compression,
		"entries", len(entries), "blocks", len(blocks), "flags", h.Flags)
	return &Archive{Header: h, Entries: entries, Blocks: blocks}, nil
}

// checkRegion validates the TOC length against the row geometry before anything is read.
// The region is the rows followed by the block-length table.
func (o Options) checkRegion(h Header) (rowsLen int, err error) {
	if h.EntryCount > 0 && h.EntrySize < MinEntrySize {
		return 0, fmt.Errorf("%w: rows are %d bytes, need at least %d", ErrParse, h.EntrySize, MinEntrySize)
	}
	// from here on the rows are at least MinEntrySize wide, so EntryCount is bounded by the region
	rows := uint64(h.EntryCount) * uint64(h.EntrySize)
	region := uint64(h.TOCLength)
	switch {
	case o.Strict && rows != region:
		return 0, fmt.Errorf("%w: %d rows of %d bytes do not fill the %d-byte toc", ErrFormat, h.EntryCount, h.EntrySize, region)
	case rows > region:
		return 0, fmt.Errorf("%w: %d rows of %d bytes overrun the %d-byte toc", ErrFormat, h.EntryCount, h.EntrySize, region)
	}
	if rest := region - rows; rest > 0 {
		if h.BlockSize == 0 {
			return 0, fmt.Errorf("%w: block size is zero", ErrFormat)
		}
		if w := uint64(blockLenWidth(h.BlockSize)); rest%w != 0 {
			return 0, fmt.Errorf("%w: %d bytes after the toc rows are not a whole number of %d-byte block lengths", ErrFormat, rest, w)
		}
	}
	return int(rows), nil
}

func (o Options) parseRows(rows []byte, h Header) ([]Entry, error) {
	n, size := int(h.EntryCount), int(h.EntrySize)
	entries := make([]Entry, n)
	parseRange := func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			e, err := ParseEntry(rows[i*size:][:size], o.KeepExtra)
			if err != nil {
				return fmt.Errorf("toc entry %d: %w", i, err)
			}
			entries[i] = e
		}
		return nil
	}

	if o.Workers <= 1 || n < parallelRows {
		if err := parseRange(0, n); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var g errgroup.Group
	g.SetLimit(o.Workers)
	chunk := (n + o.Workers - 1) / o.Workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error { return parseRange(lo, hi) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
