// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// The TOC key and IV shared by every encrypted archive we know how to read.
var (
	tocKey = [32]byte{
		0xC5, 0x3D, 0xB2, 0x38, 0x70, 0xA1, 0xA2, 0xF7, 0x1C, 0xAE, 0x64, 0x06, 0x1F, 0xDD, 0x0E, 0x11,
		0x57, 0x30, 0x9D, 0xC8, 0x52, 0x04, 0xD4, 0xC5, 0xBF, 0xDF, 0x25, 0x09, 0x0D, 0xF2, 0x57, 0x2C,
	}
	tocIV = [aes.BlockSize]byte{
		0xE9, 0x15, 0xAA, 0x01, 0x8F, 0xEF, 0x71, 0xFC, 0x50, 0x81, 0x32, 0xE4, 0xBB, 0x4C, 0xEB, 0x42,
	}
)

// DecryptTOC decrypts a whole TOC region with AES-256 in CFB mode (128-bit segments).
//
// The region is a single cipher stream: the IV is applied once at the start,
// and rows are only split out of the plaintext afterwards.
// The returned slice is newly allocated.
func DecryptTOC(src []byte) ([]byte, error) {
	block, err := newCipher(tocKey[:], tocIV[:])
	if err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	cfb(block, tocIV[:], dst, src, true)
	return dst, nil
}

func newCipher(key, iv []byte) (cipher.Block, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key is %d bytes, want 32", ErrCrypto, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv is %d bytes, want %d", ErrCrypto, len(iv), aes.BlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	return block, nil
}

// cfb runs full-block cipher feedback over src into dst.
// The feedback register always takes the ciphertext, which is src when decrypting.
// A trailing partial segment uses a prefix of the keystream.
func cfb(block cipher.Block, iv, dst, src []byte, decrypt bool) {
	var reg, ks [aes.BlockSize]byte
	copy(reg[:], iv)
	for len(src) > 0 {
		block.Encrypt(ks[:], reg[:])
		n := min(len(src), aes.BlockSize)
		for i := range n {
			c := src[i]
			dst[i] = c ^ ks[i]
			if !decrypt {
				c = dst[i]
			}
			reg[i] = c
		}
		src, dst = src[n:], dst[n:]
	}
}
