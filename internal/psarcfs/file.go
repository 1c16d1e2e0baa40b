// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarcfs

import (
	"io"
	"io/fs"
	"time"
)

// stat is both the fs.FileInfo and the fs.DirEntry of a node
type stat struct {
	fsys *FS
	n    *node
}

func (s stat) Name() string { // FileInfo + DirEntry
	return s.n.name
}

func (s stat) IsDir() bool { // FileInfo + DirEntry
	return s.n.isDir()
}

func (s stat) Type() fs.FileMode { // DirEntry
	return s.Mode().Type()
}

func (s stat) Info() (fs.FileInfo, error) { // DirEntry
	return s, nil
}

func (s stat) Size() int64 { // FileInfo
	return s.n.size
}

func (s stat) Mode() fs.FileMode { // FileInfo
	if s.n.isDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (s stat) ModTime() time.Time { // FileInfo
	return time.Time{} // archives keep no times
}

// Sys returns the psarc.Entry of a regular file
func (s stat) Sys() any { // FileInfo
	if s.n.isDir() {
		return nil
	}
	return s.fsys.r.Entries[s.n.entry]
}

type openDir struct {
	stat
	listOffset int
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.stat, nil }
func (d *openDir) Close() error               { return nil }

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.n.name, Err: errIsDir}
}

// To satisfy fs.ReadDirFile, has slightly tricky partial-listing semantics
func (d *openDir) ReadDir(count int) ([]fs.DirEntry, error) {
	n := len(d.n.children) - d.listOffset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}
	list := make([]fs.DirEntry, n)
	for i := range list {
		list[i] = stat{d.fsys, d.n.children[d.listOffset+i]}
	}
	d.listOffset += n
	return list, nil
}

// openFile decompresses sequentially. Seeking backwards reopens the entry
// and decompresses forward again, lazily on the next Read.
type openFile struct {
	stat
	rc   io.ReadCloser
	pos  int64 // where the caller has seeked to
	rpos int64 // where rc actually is
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.stat, nil }

func (f *openFile) Close() error {
	if f.rc == nil {
		return nil
	}
	err := f.rc.Close()
	f.rc = nil
	return err
}

func (f *openFile) Read(p []byte) (int, error) {
	if f.rc == nil || f.rpos != f.pos {
		if err := f.catchUp(); err != nil {
			return 0, err
		}
	}
	n, err := f.rc.Read(p)
	f.pos += int64(n)
	f.rpos += int64(n)
	return n, err
}

func (f *openFile) catchUp() error {
	if f.rc == nil || f.pos < f.rpos {
		if f.rc != nil {
			f.rc.Close()
		}
		rc, err := f.fsys.r.Open(f.n.entry)
		if err != nil {
			return err
		}
		f.rc, f.rpos = rc, 0
	}
	n, err := io.CopyN(io.Discard, f.rc, f.pos-f.rpos)
	f.rpos += n
	if err == io.EOF {
		return nil // past the end, so the next Read sees EOF
	}
	return err
}

func (f *openFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.pos
	case io.SeekEnd:
		offset += f.n.size
	default:
		return 0, errWhence
	}
	if offset < 0 {
		return 0, errOffset
	}
	f.pos = offset
	return offset, nil
}
