// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"encoding/binary"
	"fmt"
)

// MinEntrySize is the width of the fields every TOC row carries.
const MinEntrySize = 30

// Entry is one decoded TOC row.
type Entry struct {
	ContentHash      Hash
	BlockOffset      uint32 // index into Archive.Blocks of the first block
	UncompressedSize uint64
	FileOffset       uint64 // absolute offset of the first block in the file

	// Extra holds row bytes past MinEntrySize, if Options.KeepExtra was set
	Extra []byte
}

// ParseEntry decodes one decrypted TOC row.
// Bytes beyond [MinEntrySize] are copied to Entry.Extra if keepExtra is set, otherwise ignored.
func ParseEntry(row []byte, keepExtra bool) (Entry, error) {
	if len(row) < MinEntrySize {
		return Entry{}, fmt.Errorf("%w: row is %d bytes, need at least %d", ErrParse, len(row), MinEntrySize)
	}
	var e Entry
	var err error
	if e.ContentHash, err = ParseHash(row[0:16]); err != nil {
		return Entry{}, err
	}
	e.BlockOffset = binary.BigEndian.Uint32(row[16:20])
	if e.UncompressedSize, err = Uint40(row[20:25], binary.BigEndian); err != nil {
		return Entry{}, err
	}
	if e.FileOffset, err = Uint40(row[25:30], binary.BigEndian); err != nil {
		return Entry{}, err
	}
	if keepExtra && len(row) > MinEntrySize {
		e.Extra = append([]byte(nil), row[MinEntrySize:]...)
	}
	return e, nil
}

// blockLenWidth is the byte width of one item in the block-length table:
// just enough to hold blockSize-1.
func blockLenWidth(blockSize uint32) int {
	w := 1
	for acc := uint64(256); acc < uint64(blockSize); acc <<= 8 {
		w++
	}
	return w
}

// parseBlockTable decodes the big-endian block-length table that follows the rows.
// The caller has already checked that len(b) is a multiple of the item width.
// An item of 0 stands for a full, uncompressed block.
func parseBlockTable(b []byte, blockSize uint32) []uint32 {
	if len(b) == 0 {
		return nil
	}
	w := blockLenWidth(blockSize)
	table := make([]uint32, len(b)/w)
	for i := range table {
		var v uint32
		for _, c := range b[i*w:][:w] {
			v = v<<8 | uint32(c)
		}
		table[i] = v
	}
	return table
}
