// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/elliotnunn/psarc/internal/psarc"
	"github.com/klauspost/compress/gzip"
	"github.com/therootcompany/xz"
)

// unwrap looks at the first bytes of r.
// A bare PSARC file is returned as it is, while one inside gzip or xz is
// decompressed into memory, up to limit bytes, because payload access is random.
func unwrap(r io.ReaderAt, name string, limit int64) (io.ReaderAt, error) {
	var header [6]byte
	n, err := r.ReadAt(header[:], 0)
	if n < len(header) && err != io.EOF {
		return nil, fmt.Errorf("%w: %s: %w", psarc.ErrIO, name, err)
	}
	matchAt := func(s string, offset int) bool {
		return n >= offset+len(s) && string(header[offset:][:len(s)]) == s
	}

	var zr io.Reader
	switch {
	case matchAt(string(psarc.Magic[:]), 0):
		return r, nil
	case matchAt("\x1f\x8b", 0): // gzip
		gr, err := gzip.NewReader(io.NewSectionReader(r, 0, math.MaxInt64))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		defer gr.Close()
		zr = gr
	case matchAt("\xfd7zXZ\x00", 0): // xz
		xr, err := xz.NewReader(io.NewSectionReader(r, 0, math.MaxInt64), xz.DefaultDictMax)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		zr = xr
	default:
		return nil, fmt.Errorf("%w: %s", psarc.ErrBadMagic, name)
	}

	data, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: more than %d bytes when decompressed, raise PSARC_UNWRAP_GB", name, limit)
	}
	if !bytes.HasPrefix(data, psarc.Magic[:]) {
		return nil, fmt.Errorf("%w: %s when decompressed", psarc.ErrBadMagic, name)
	}
	slog.Debug("psarcUnwrap", "name", name, "size", len(data))
	return bytes.NewReader(data), nil
}
