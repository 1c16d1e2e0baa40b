// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
)

type testFile struct {
	name     string
	data     []byte
	compress bool
}

type testArchive struct {
	blockSize   uint32
	flags       Flags
	compression string
	files       []testFile
}

// build lays out a complete archive: header, TOC (rows then block lengths), payloads.
// Entry 0 is the manifest.
func (ta testArchive) build(t testing.TB) []byte {
	t.Helper()
	if ta.compression == "" {
		ta.compression = "zlib"
	}
	names := make([]string, len(ta.files))
	for i, f := range ta.files {
		names[i] = f.name
		if ta.flags&FlagAbsolutePaths != 0 {
			names[i] = "/" + f.name
		}
	}
	all := append([]testFile{{data: []byte(strings.Join(names, "\n")), compress: true}}, ta.files...)

	type located struct {
		firstBlock uint32
		offset     uint64
	}
	var (
		payload  []byte
		blockLen []uint32
		where    []located
	)
	for _, f := range all {
		where = append(where, located{uint32(len(blockLen)), uint64(len(payload))})
		for rest := f.data; len(rest) > 0; {
			chunk := rest[:min(len(rest), int(ta.blockSize))]
			rest = rest[len(chunk):]
			var z []byte
			if f.compress {
				z = deflate(t, chunk)
			}
			switch {
			case z != nil && len(z) < len(chunk):
				payload = append(payload, z...)
				blockLen = append(blockLen, uint32(len(z)))
			case len(chunk) == int(ta.blockSize):
				payload = append(payload, chunk...)
				blockLen = append(blockLen, 0)
			default:
				payload = append(payload, chunk...)
				blockLen = append(blockLen, uint32(len(chunk)))
			}
		}
	}

	w := blockLenWidth(ta.blockSize)
	tocLen := len(all)*MinEntrySize + len(blockLen)*w
	dataStart := uint64(HeaderSize + tocLen)

	var toc []byte
	for i, f := range all {
		row := make([]byte, MinEntrySize)
		if i > 0 {
			sum := md5.Sum([]byte(names[i-1]))
			copy(row, sum[:])
		}
		binary.BigEndian.PutUint32(row[16:], where[i].firstBlock)
		mustPut40(t, row[20:25], uint64(len(f.data)))
		mustPut40(t, row[25:30], dataStart+where[i].offset)
		toc = append(toc, row...)
	}
	for _, l := range blockLen {
		for j := w - 1; j >= 0; j-- {
			toc = append(toc, byte(l>>(8*j)))
		}
	}
	if ta.flags&FlagEncryptedTOC != 0 {
		toc = encryptTOC(t, toc)
	}

	hdr := header(1, 4, ta.compression, uint32(HeaderSize+tocLen), MinEntrySize, uint32(len(all)), ta.blockSize, ta.flags)
	return append(append(hdr, toc...), payload...)
}

func header(major, minor uint16, compression string, rawTOCLength, entrySize, entryCount, blockSize uint32, flags Flags) []byte {
	b := make([]byte, HeaderSize)
	copy(b, "PSAR")
	binary.BigEndian.PutUint16(b[4:], major)
	binary.BigEndian.PutUint16(b[6:], minor)
	copy(b[8:12], compression)
	binary.BigEndian.PutUint32(b[12:], rawTOCLength)
	binary.BigEndian.PutUint32(b[16:], entrySize)
	binary.BigEndian.PutUint32(b[20:], entryCount)
	binary.BigEndian.PutUint32(b[24:], blockSize)
	binary.BigEndian.PutUint32(b[28:], uint32(flags))
	return b
}

func encryptTOC(t testing.TB, plain []byte) []byte {
	t.Helper()
	block, err := newCipher(tocKey[:], tocIV[:])
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(plain))
	cfb(block, tocIV[:], out, plain, false)
	return out
}

func deflate(t testing.TB, p []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(p); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func mustPut40(t testing.TB, b []byte, v uint64) {
	t.Helper()
	if err := PutUint40(b, v, binary.BigEndian); err != nil {
		t.Fatal(err)
	}
}

func noise(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x5eed))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

// sampleFiles mixes compressible, incompressible, empty and multi-block payloads
func sampleFiles() []testFile {
	return []testFile{
		{name: "songs/arr/lead.sng", data: bytes.Repeat([]byte("lead guitar "), 9000), compress: true},
		{name: "gfxassets/album_art/art_256.dds", data: noise(1, 70000), compress: true},
		{name: "empty.txt", data: nil},
		{name: "audio/raw.wem", data: noise(2, 65536*2), compress: false},
		{name: "manifests/song.json", data: []byte(`{"Title":"Karma Police"}`), compress: true},
	}
}
