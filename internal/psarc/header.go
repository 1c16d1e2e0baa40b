// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// HeaderSize is the length of the fixed header at offset 0.
const HeaderSize = 32

var Magic = [4]byte{'P', 'S', 'A', 'R'}

// Flags is the archive_flags bit set.
type Flags uint32

const (
	FlagIgnoreCase    Flags = 1
	FlagAbsolutePaths Flags = 2
	FlagEncryptedTOC  Flags = 4
)

func (f Flags) String() string {
	s := ""
	for _, b := range [...]struct {
		f    Flags
		name string
	}{{FlagIgnoreCase, "ignorecase"}, {FlagAbsolutePaths, "absolute"}, {FlagEncryptedTOC, "encrypted"}} {
		if f&b.f != 0 {
			if s != "" {
				s += "|"
			}
			s += b.name
			f &^= b.f
		}
	}
	if f != 0 || s == "" {
		if s != "" {
			s += "|"
		}
		s += "0x" + strconv.FormatUint(uint64(f), 16)
	}
	return s
}

// Header is the decoded fixed header.
//
// TOCLength is the length of the TOC region that follows the header,
// not the raw on-disk field (which also counts the header itself).
type Header struct {
	Magic        [4]byte
	VersionMajor uint16
	VersionMinor uint16
	Compression  string // e.g. "zlib"
	TOCLength    uint32
	EntrySize    uint32
	EntryCount   uint32
	BlockSize    uint32
	Flags        Flags
}

func (h Header) Version() string {
	return strconv.Itoa(int(h.VersionMajor)) + "." + strconv.Itoa(int(h.VersionMinor))
}

// ParseHeader decodes the first [HeaderSize] bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ioError("header", io.ErrUnexpectedEOF)
	}
	var h Header
	copy(h.Magic[:], b[0:4])
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: %q", ErrBadMagic, h.Magic[:])
	}
	h.VersionMajor = binary.BigEndian.Uint16(b[4:])
	h.VersionMinor = binary.BigEndian.Uint16(b[6:])
	h.Compression = string(b[8:12])
	rawTOCLength := binary.BigEndian.Uint32(b[12:])
	h.EntrySize = binary.BigEndian.Uint32(b[16:])
	h.EntryCount = binary.BigEndian.Uint32(b[20:])
	h.BlockSize = binary.BigEndian.Uint32(b[24:])
	h.Flags = Flags(binary.BigEndian.Uint32(b[28:]))

	if rawTOCLength < HeaderSize {
		return Header{}, fmt.Errorf("%w: toc length %d is shorter than the header", ErrFormat, rawTOCLength)
	}
	h.TOCLength = rawTOCLength - HeaderSize
	return h, nil
}

// ReadHeader consumes exactly [HeaderSize] bytes from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return Header{}, ioError("header", noEOF(err))
	}
	// check the magic before asking for more, so a short non-PSARC file is a format error
	if [4]byte(buf[:4]) != Magic {
		return Header{}, fmt.Errorf("%w: %q", ErrBadMagic, buf[:4])
	}
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		return Header{}, ioError("header", noEOF(err))
	}
	return ParseHeader(buf[:])
}

// noEOF turns a bare EOF into ErrUnexpectedEOF: any short read here is truncation
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
