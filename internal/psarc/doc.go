// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package psarc reads PlayStation Archive (PSARC) files.
//
// A PSARC file starts with a 32-byte big-endian header, followed by a table of
// contents (TOC) that is usually encrypted with AES-256 in CFB mode under a
// fixed key. The TOC holds one fixed-size row per stored file and then a table
// of compressed block lengths. File payloads are split into blocks of
// Header.BlockSize bytes, each stored raw or zlib-compressed.
//
// [Read] decodes the header and TOC into an [Archive]. [NewReader] adds random
// access to the payloads, and [Reader.Manifest] recovers the file names kept
// in entry 0.
package psarc
