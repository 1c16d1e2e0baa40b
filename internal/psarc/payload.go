// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/elliotnunn/psarc/internal/blockcache"
	"github.com/klauspost/compress/zlib"
)

// Reader gives access to the payloads of an archive.
// It is safe for concurrent use by multiple goroutines if the underlying io.ReaderAt is.
type Reader struct {
	*Archive
	ra    io.ReaderAt
	cache *blockcache.Cache
	id    uint64
}

// NewReader reads the header and TOC from the start of ra.
func NewReader(ra io.ReaderAt, opts Options) (*Reader, error) {
	a, err := opts.Read(io.NewSectionReader(ra, 0, math.MaxInt64))
	if err != nil {
		return nil, err
	}
	return &Reader{Archive: a, ra: ra, cache: opts.Cache, id: blockcache.NewID()}, nil
}

// Open returns a stream of the uncompressed contents of entry i.
func (r *Reader) Open(i int) (io.ReadCloser, error) {
	if i < 0 || i >= len(r.Entries) {
		return nil, fmt.Errorf("psarc: no entry %d in an archive of %d", i, len(r.Entries))
	}
	e := r.Entries[i]
	if e.UncompressedSize > 0 && int(e.BlockOffset) >= len(r.Blocks) {
		return nil, fmt.Errorf("%w: entry %d starts at block %d of %d", ErrFormat, i, e.BlockOffset, len(r.Blocks))
	}
	return &entryReader{
		r:      r,
		index:  i,
		block:  e.BlockOffset,
		off:    int64(e.FileOffset),
		remain: e.UncompressedSize,
	}, nil
}

// ReadFile returns the whole uncompressed contents of entry i.
func (r *Reader) ReadFile(i int) ([]byte, error) {
	f, err := r.Open(i)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	buf.Grow(r.sizeHint(i))
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sizeHint bounds the claimed size of entry i by what its blocks could possibly hold
func (r *Reader) sizeHint(i int) int {
	e := r.Entries[i]
	if int(e.BlockOffset) >= len(r.Blocks) {
		return 0
	}
	room := uint64(len(r.Blocks)-int(e.BlockOffset)) * uint64(r.Header.BlockSize)
	return int(min(e.UncompressedSize, room, 1<<30))
}

type entryReader struct {
	r      *Reader
	index  int
	block  uint32 // next block to decode
	off    int64  // file offset of that block
	remain uint64 // uncompressed bytes not yet decoded
	buf    []byte // decoded but not yet returned, shared with the cache
}

func (er *entryReader) Close() error { return nil }

func (er *entryReader) Read(p []byte) (int, error) {
	for len(er.buf) == 0 {
		if er.remain == 0 {
			return 0, io.EOF
		}
		b, err := er.next()
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", er.index, err)
		}
		er.buf = b
	}
	n := copy(p, er.buf)
	er.buf = er.buf[n:]
	return n, nil
}

// next decodes one storage block.
//
// A block-length item of 0 means a full block stored raw.
// An item equal to the bytes still wanted means the block is stored raw, because
// compressing it did not help. Anything else is compressed with the archive codec.
func (er *entryReader) next() ([]byte, error) {
	r := er.r
	if int(er.block) >= len(r.Blocks) {
		return nil, fmt.Errorf("%w: block %d past the end of the table", ErrFormat, er.block)
	}
	want := min(er.remain, uint64(r.Header.BlockSize))
	zlen := uint64(r.Blocks[er.block])
	stored := zlen == 0 || zlen == want
	if zlen == 0 {
		zlen = uint64(r.Header.BlockSize)
	}

	key := blockcache.Key{Archive: r.id, Block: er.block}
	data, ok := r.cache.Get(key)
	if !ok {
		readLen := zlen
		if stored {
			readLen = want
		}
		raw := make([]byte, readLen)
		n, err := r.ra.ReadAt(raw, er.off)
		if n < len(raw) {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, ioError(fmt.Sprintf("block %d at %d", er.block, er.off), err)
		}
		if stored {
			data = raw
		} else if data, err = r.decompress(raw, int(want)); err != nil {
			return nil, fmt.Errorf("block %d: %w", er.block, err)
		}
		r.cache.Add(key, data)
	}

	er.off += int64(zlen)
	er.block++
	er.remain -= uint64(len(data))
	return data, nil
}

func (r *Reader) decompress(src []byte, size int) ([]byte, error) {
	switch r.Header.Compression {
	case "zlib":
		return inflate(src, size)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, r.Header.Compression)
	}
}

func inflate(src []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	defer zr.Close()
	dst := make([]byte, size)
	if _, err := io.ReadFull(zr, dst); err != nil {
		return nil, fmt.Errorf("%w: inflating %d bytes: %w", ErrFormat, size, err)
	}
	return dst, nil
}
