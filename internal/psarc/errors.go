// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"errors"
	"fmt"
)

var (
	ErrIO          = errors.New("psarc: i/o error")
	ErrFormat      = errors.New("psarc: not a valid archive")
	ErrBadMagic    = fmt.Errorf("%w: bad magic", ErrFormat)
	ErrCrypto      = errors.New("psarc: cipher setup failed")
	ErrParse       = errors.New("psarc: malformed toc row")
	ErrUnsupported = errors.New("psarc: unsupported compression")
)

// A LengthError reports a fixed-width field decoded from a slice of the wrong size.
// It matches [ErrParse] with [errors.Is].
type LengthError struct {
	Want, Got int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("psarc: field needs %d bytes, got %d", e.Want, e.Got)
}

func (e *LengthError) Unwrap() error { return ErrParse }

// ioError keeps both the kind and the cause visible to errors.Is
func ioError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, what, err)
}
