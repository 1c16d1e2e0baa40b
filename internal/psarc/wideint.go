// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"encoding/binary"
	"encoding/hex"
)

const (
	uint40Len = 5
	hashLen   = 16
	maxUint40 = 1<<40 - 1
)

// Uint40 decodes a 5-byte unsigned integer in the given byte order
// (binary.BigEndian or binary.LittleEndian).
// The top 24 bits of the result are always zero.
func Uint40(b []byte, order binary.ByteOrder) (uint64, error) {
	if len(b) != uint40Len {
		return 0, &LengthError{Want: uint40Len, Got: len(b)}
	}
	if order == binary.LittleEndian {
		return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32, nil
	}
	return uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4]), nil
}

// PutUint40 is the inverse of [Uint40].
func PutUint40(b []byte, v uint64, order binary.ByteOrder) error {
	if len(b) != uint40Len {
		return &LengthError{Want: uint40Len, Got: len(b)}
	}
	if v > maxUint40 {
		return ErrParse
	}
	for i := range uint40Len {
		shift := 8 * i // little endian
		if order != binary.LittleEndian {
			shift = 8 * (uint40Len - 1 - i)
		}
		b[i] = byte(v >> shift)
	}
	return nil
}

// Hash is the 128-bit digest stored in every TOC row.
// In archives seen in the wild it is the MD5 of the entry's path name,
// and all zeroes for the manifest.
type Hash [hashLen]byte

func ParseHash(b []byte) (Hash, error) {
	if len(b) != hashLen {
		return Hash{}, &LengthError{Want: hashLen, Got: len(b)}
	}
	return Hash(b), nil
}

// Uint128 splits the big-endian 128-bit value into halves.
func (h Hash) Uint128() (hi, lo uint64) {
	return binary.BigEndian.Uint64(h[:8]), binary.BigEndian.Uint64(h[8:])
}

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }
