// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package fileid

import (
	"encoding/binary"
	"io/fs"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
)

// Get identifies the named file without following a final symlink.
// statx supplies the birth time, which tells apart two files that reused an inode.
func Get(name string) (ID, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, name,
		unix.AT_SYMLINK_NOFOLLOW,
		unix.STATX_TYPE|unix.STATX_INO|unix.STATX_BTIME,
		&stx)
	if err != nil {
		return ID{}, &fs.PathError{Op: "statx", Path: name, Err: err}
	}
	if stx.Mode&unix.S_IFMT == unix.S_IFLNK {
		return ID{}, &fs.PathError{Op: "statx", Path: name, Err: errSymlink}
	}

	h := xxhash.New()
	binary.Write(h, binary.BigEndian, uint64(stx.Dev_major)<<32|uint64(stx.Dev_minor))
	if stx.Mask&unix.STATX_BTIME != 0 { // not every filesystem keeps one
		binary.Write(h, binary.BigEndian, stx.Btime.Sec)
		binary.Write(h, binary.BigEndian, stx.Btime.Nsec)
	}
	return pack(stx.Ino, h, name), nil
}
