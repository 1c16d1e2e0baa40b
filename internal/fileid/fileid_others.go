// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !unix

package fileid

func Get(name string) (ID, error) {
	return ID{}, ErrNotOS
}
