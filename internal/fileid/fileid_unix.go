// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix && !linux

package fileid

import (
	"encoding/binary"
	"io/fs"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
)

// Get identifies the named file without following a final symlink.
func Get(name string) (ID, error) {
	var st unix.Stat_t
	if err := unix.Lstat(name, &st); err != nil {
		return ID{}, &fs.PathError{Op: "lstat", Path: name, Err: err}
	}
	if st.Mode&unix.S_IFMT == unix.S_IFLNK {
		return ID{}, &fs.PathError{Op: "lstat", Path: name, Err: errSymlink}
	}

	h := xxhash.New()
	binary.Write(h, binary.BigEndian, uint64(st.Dev))
	return pack(uint64(st.Ino), h, name), nil
}
