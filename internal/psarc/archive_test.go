// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"bytes"
	"crypto/md5"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRead(t *testing.T) {
	files := sampleFiles()
	for _, flags := range []Flags{FlagEncryptedTOC, 0, FlagEncryptedTOC | FlagAbsolutePaths} {
		t.Run(flags.String(), func(t *testing.T) {
			b := testArchive{blockSize: 65536, flags: flags, files: files}.build(t)
			a, err := Read(bytes.NewReader(b))
			if err != nil {
				t.Fatal(err)
			}
			if len(a.Entries) != int(a.Header.EntryCount) || len(a.Entries) != len(files)+1 {
				t.Fatalf("%d entries, header says %d", len(a.Entries), a.Header.EntryCount)
			}
			if a.Header.Flags != flags || a.Header.Compression != "zlib" || a.Header.Version() != "1.4" {
				t.Errorf("header %+v", a.Header)
			}
			if !a.Entries[0].ContentHash.IsZero() {
				t.Errorf("manifest hash %s", a.Entries[0].ContentHash)
			}
			for i, f := range files {
				e := a.Entries[i+1]
				name := f.name
				if flags&FlagAbsolutePaths != 0 {
					name = "/" + name
				}
				if e.ContentHash != Hash(md5.Sum([]byte(name))) {
					t.Errorf("%s: hash %s", f.name, e.ContentHash)
				}
				if e.UncompressedSize != uint64(len(f.data)) {
					t.Errorf("%s: size %d want %d", f.name, e.UncompressedSize, len(f.data))
				}
				if e.FileOffset > uint64(len(b)) {
					t.Errorf("%s: offset %d past the end", f.name, e.FileOffset)
				}
			}
			if want := int(a.Header.TOCLength-a.Header.EntryCount*a.Header.EntrySize) / 2; len(a.Blocks) != want {
				t.Errorf("%d block lengths, want %d", len(a.Blocks), want)
			}
		})
	}
}

func TestReadTruncated(t *testing.T) {
	b := testArchive{blockSize: 65536, flags: FlagEncryptedTOC, files: sampleFiles()}.build(t)
	h, err := ParseHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	tocEnd := HeaderSize + int(h.TOCLength)
	for _, n := range []int{0, 3, 4, 20, HeaderSize, HeaderSize + 1, HeaderSize + 30, tocEnd - 1} {
		a, err := Read(bytes.NewReader(b[:n]))
		if !errors.Is(err, ErrIO) {
			t.Errorf("cut at %d: %v", n, err)
		}
		if a != nil {
			t.Errorf("cut at %d: partial archive returned", n)
		}
	}
	// payloads are not part of the toc
	if _, err := Read(bytes.NewReader(b[:tocEnd])); err != nil {
		t.Errorf("cut after toc: %v", err)
	}
}

func TestRegionMismatch(t *testing.T) {
	cases := []struct {
		name        string
		strict      bool
		region      int
		size, count uint32
		blockSize   uint32
		want        error
	}{
		{"rows overrun", false, 59, 30, 2, 65536, ErrFormat},
		{"odd table", false, 61, 30, 2, 65536, ErrFormat},
		{"three-byte table", false, 63, 30, 2, 1 << 20, nil},
		{"zero block size", false, 62, 30, 2, 0, ErrFormat},
		{"strict exact", true, 60, 30, 2, 65536, nil},
		{"strict with table", true, 62, 30, 2, 65536, ErrFormat},
		{"strict not a multiple", true, 61, 30, 2, 65536, ErrFormat},
		{"row too small", true, 40, 20, 2, 65536, ErrParse},
		{"empty", true, 0, 30, 0, 65536, nil},
		{"zero-width rows", false, 0, 0, 0xffffffff, 65536, ErrParse},
		{"narrow rows", false, 0xffff, 1, 0xffff, 2, ErrParse},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := header(1, 4, "zlib", uint32(HeaderSize+c.region), c.size, c.count, c.blockSize, 0)
			b = append(b, make([]byte, c.region)...)
			a, err := Options{Strict: c.strict}.Read(bytes.NewReader(b))
			if c.want == nil {
				if err != nil {
					t.Fatal(err)
				}
				if len(a.Entries) != int(c.count) {
					t.Errorf("%d entries", len(a.Entries))
				}
				return
			}
			if !errors.Is(err, c.want) {
				t.Errorf("got %v, want %v", err, c.want)
			}
			if a != nil {
				t.Error("partial archive returned")
			}
		})
	}
}

func TestKeepExtra(t *testing.T) {
	const size, count = 34, 3
	region := make([]byte, size*count)
	for i := range count {
		copy(region[i*size+30:], []byte{byte(i), 0xee, 0xee, 0xee})
	}
	b := append(header(1, 4, "zlib", HeaderSize+size*count, size, count, 65536, FlagEncryptedTOC), encryptTOC(t, region)...)

	a, err := Options{KeepExtra: true}.Read(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range a.Entries {
		if !bytes.Equal(e.Extra, []byte{byte(i), 0xee, 0xee, 0xee}) {
			t.Errorf("entry %d extra %x", i, e.Extra)
		}
	}
	a, err = Read(bytes.NewReader(b))
	if err != nil || a.Entries[1].Extra != nil {
		t.Errorf("extra kept by default: %v", err)
	}
}

func TestParallelRows(t *testing.T) {
	const count = 3000
	region := noise(99, count*MinEntrySize)
	b := append(header(1, 4, "zlib", uint32(HeaderSize+len(region)), MinEntrySize, count, 65536, FlagEncryptedTOC), region...)

	seq, err := Read(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	par, err := Options{Workers: 4}.Read(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Error("parallel decode differs from sequential")
	}

	bad := append(header(1, 4, "zlib", uint32(HeaderSize+count*29), 29, count, 65536, 0), make([]byte, count*29)...)
	if _, err := (Options{Workers: 4, Strict: true}).Read(bytes.NewReader(bad)); !errors.Is(err, ErrParse) {
		t.Errorf("short rows in parallel: %v", err)
	}
}

func TestOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "song_p.psarc")
	if err := os.WriteFile(name, testArchive{blockSize: 65536, flags: FlagEncryptedTOC, files: sampleFiles()}.build(t), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Entries) != len(sampleFiles())+1 {
		t.Errorf("%d entries", len(a.Entries))
	}

	_, err = Open(filepath.Join(t.TempDir(), "missing.psarc"))
	if !errors.Is(err, ErrIO) || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}
}
