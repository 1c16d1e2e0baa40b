// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package psarc

import (
	"fmt"
	"strings"
)

// Manifest returns the path names of entries 1 to n-1,
// which entry 0 stores as newline-separated text.
// names[i] belongs to Entries[i+1].
//
// Leading slashes of absolute-path archives are removed.
func (r *Reader) Manifest() (names []string, err error) {
	if len(r.Entries) <= 1 {
		return nil, nil
	}
	b, err := r.ReadFile(0)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	names = strings.Split(string(b), "\n")
	if want := len(r.Entries) - 1; len(names) == want+1 && names[want] == "" {
		names = names[:want] // trailing newline
	}
	if len(names) != len(r.Entries)-1 {
		return nil, fmt.Errorf("%w: manifest lists %d names for %d entries", ErrFormat, len(names), len(r.Entries)-1)
	}
	for i, n := range names {
		n = strings.TrimSuffix(n, "\r")
		if r.Header.Flags&FlagAbsolutePaths != 0 {
			n = strings.TrimLeft(n, "/")
		}
		names[i] = n
	}
	return names, nil
}
