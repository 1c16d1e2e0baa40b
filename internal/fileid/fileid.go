// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package fileid gives a compact identity to a file on disk,
// which survives the file being rewritten in place but not being replaced.
package fileid

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// ID = (64 bits of inode number) + (32 bits of hash of whatever else the OS can tell us)
type ID [12]byte

var (
	ErrNotOS   = errors.New("file identity not available on this OS")
	errSymlink = errors.New("is a symlink")
)

func (id ID) String() string { return hex.EncodeToString(id[:]) }

func pack(ino uint64, h *xxhash.Digest, name string) ID {
	var id ID
	binary.BigEndian.PutUint64(id[:], ino)
	h.WriteString(filepath.Base(name))
	binary.BigEndian.PutUint32(id[8:], uint32(h.Sum64()))
	return id
}
