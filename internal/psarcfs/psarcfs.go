// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package psarcfs presents the files named in a PSARC manifest as an [fs.FS].
package psarcfs

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/elliotnunn/psarc/internal/psarc"
)

// FS is a read-only, static view of one archive.
// It is safe for concurrent use by multiple goroutines.
type FS struct {
	r    *psarc.Reader
	root *node
}

type node struct {
	name     string // base name, "." for the root
	entry    int    // index into Reader.Entries, or -1 for a directory
	size     int64
	children []*node // directories only, sorted by name
}

func (n *node) isDir() bool { return n.entry < 0 }

// New reads the archive TOC and manifest from r.
func New(r io.ReaderAt, opts psarc.Options) (*FS, error) {
	pr, err := psarc.NewReader(r, opts)
	if err != nil {
		return nil, err
	}
	return Make(pr)
}

// Make builds the tree from the manifest of an already open archive.
// Names that are not valid [fs.ValidPath] paths, or that collide, are skipped with a warning.
func Make(r *psarc.Reader) (*FS, error) {
	names, err := r.Manifest()
	if err != nil {
		return nil, err
	}

	root := &node{name: ".", entry: -1}
	dirs := map[string]*node{".": root}
	var mkdir func(name string) *node
	mkdir = func(name string) *node {
		if d, ok := dirs[name]; ok {
			return d
		}
		parent := mkdir(path.Dir(name))
		if parent == nil {
			return nil
		}
		for _, c := range parent.children {
			if c.name == path.Base(name) { // a file is in the way
				return nil
			}
		}
		d := &node{name: path.Base(name), entry: -1}
		parent.children = append(parent.children, d)
		dirs[name] = d
		return d
	}

	for i, name := range names {
		clean := path.Clean(strings.TrimPrefix(name, "/"))
		if !fs.ValidPath(clean) || clean == "." {
			slog.Warn("psarcBadName", "name", name)
			continue
		}
		if _, isDir := dirs[clean]; isDir {
			slog.Warn("psarcNameCollision", "name", name)
			continue
		}
		parent := mkdir(path.Dir(clean))
		if parent == nil || slices.ContainsFunc(parent.children, func(c *node) bool { return c.name == path.Base(clean) }) {
			slog.Warn("psarcNameCollision", "name", name)
			continue
		}
		e := r.Entries[i+1]
		parent.children = append(parent.children, &node{name: path.Base(clean), entry: i + 1, size: int64(e.UncompressedSize)})
	}
	for _, d := range dirs {
		slices.SortFunc(d.children, func(a, b *node) int { return strings.Compare(a.name, b.name) })
	}
	return &FS{r: r, root: root}, nil
}

// Reader returns the archive behind the filesystem.
func (fsys *FS) Reader() *psarc.Reader { return fsys.r }

func (fsys *FS) lookup(op, name string) (*node, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	n := fsys.root
	if name == "." {
		return n, nil
	}
	for _, c := range strings.Split(name, "/") {
		i, ok := slices.BinarySearchFunc(n.children, c, func(e *node, s string) int { return strings.Compare(e.name, s) })
		if !ok {
			return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		n = n.children[i]
	}
	return n, nil
}

func (fsys *FS) Open(name string) (fs.File, error) {
	n, err := fsys.lookup("open", name)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return &openDir{stat: stat{fsys, n}}, nil
	}
	return &openFile{stat: stat{fsys, n}}, nil
}

func (fsys *FS) Stat(name string) (fs.FileInfo, error) {
	n, err := fsys.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return stat{fsys, n}, nil
}

func (fsys *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	n, err := fsys.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errNotDir}
	}
	list := make([]fs.DirEntry, len(n.children))
	for i, c := range n.children {
		list[i] = stat{fsys, c}
	}
	return list, nil
}

var (
	errNotDir = errors.New("not a directory")
	errIsDir  = errors.New("is a directory")
	errWhence = errors.New("Seek: invalid whence")
	errOffset = errors.New("Seek: invalid offset")
)
