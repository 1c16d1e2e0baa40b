// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/pebble/v2"
	"github.com/elliotnunn/psarc/internal/fileid"
	"github.com/elliotnunn/psarc/internal/psarc"
	"github.com/fxamacker/cbor/v2"
)

// The index maps file names to the archives holding them.
//
//	"a/" + archive id              -> archiveRecord
//	"n/" + name + "\x00" + archive id -> nameRecord
const (
	archivePrefix = "a/"
	namePrefix    = "n/"
)

type archiveRecord struct {
	Path    string   `cbor:"1,keyasint"`
	Size    int64    `cbor:"2,keyasint"`
	Version string   `cbor:"3,keyasint"`
	Entries uint32   `cbor:"4,keyasint"`
	Names   []string `cbor:"5,keyasint"` // so that a re-index can remove stale names
}

type nameRecord struct {
	Entry int    `cbor:"1,keyasint"`
	Size  uint64 `cbor:"2,keyasint"`
	Hash  []byte `cbor:"3,keyasint"`
}

type hit struct {
	Archive string
	Name    string
	nameRecord
}

var encMode, decMode = func() (cbor.EncMode, cbor.DecMode) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("index: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("index: CBOR decoder initialization failed: " + err.Error())
	}
	return enc, dec
}()

type index struct {
	db *pebble.DB
}

func openIndex(dir string) (*index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", dir, err)
	}
	return &index{db: db}, nil
}

func (x *index) Close() error { return x.db.Close() }

func (x *index) get(key string, v any) (bool, error) {
	data, closer, err := x.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer closer.Close()
	return true, decMode.Unmarshal(data, v)
}

// add replaces everything known about the archive with this id.
func (x *index) add(id fileid.ID, path string, size int64, r *psarc.Reader, names []string) error {
	b := x.db.NewBatch()
	defer b.Close()

	var old archiveRecord
	if _, err := x.get(archivePrefix+string(id[:]), &old); err != nil {
		return err
	}
	for _, name := range old.Names {
		if err := b.Delete([]byte(nameKey(name, id)), nil); err != nil {
			return err
		}
	}

	rec := archiveRecord{
		Path:    path,
		Size:    size,
		Version: r.Header.Version(),
		Entries: r.Header.EntryCount,
		Names:   names,
	}
	val, err := encMode.Marshal(rec)
	if err != nil {
		return err
	}
	if err := b.Set([]byte(archivePrefix+string(id[:])), val, nil); err != nil {
		return err
	}

	for i, name := range names {
		e := r.Entries[i+1]
		val, err := encMode.Marshal(nameRecord{Entry: i + 1, Size: e.UncompressedSize, Hash: e.ContentHash[:]})
		if err != nil {
			return err
		}
		if err := b.Set([]byte(nameKey(name, id)), val, nil); err != nil {
			return err
		}
	}
	slog.Debug("psarcIndexed", "path", path, "id", id, "names", len(names), "stale", len(old.Names))
	return b.Commit(pebble.Sync)
}

func nameKey(name string, id fileid.ID) string {
	return namePrefix + name + "\x00" + string(id[:])
}

// scan calls fn on every key-value pair starting with prefix, in key order.
func (x *index) scan(prefix string, fn func(key, val []byte) error) error {
	it, err := x.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	for it.First(); it.Valid(); it.Next() {
		val, err := it.ValueAndErr()
		if err != nil {
			it.Close()
			return err
		}
		if err := fn(it.Key(), val); err != nil {
			it.Close()
			return err
		}
	}
	return it.Close()
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper bound
}

func (x *index) archives() ([]archiveRecord, error) {
	var list []archiveRecord
	err := x.scan(archivePrefix, func(key, val []byte) error {
		var rec archiveRecord
		if err := decMode.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("index key %q: %w", key, err)
		}
		list = append(list, rec)
		return nil
	})
	return list, err
}

// find returns the names matching a doublestar pattern, in name order.
func (x *index) find(pattern string) ([]hit, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	literal := pattern[:strings.IndexAny(pattern+"*", `*?[{\`)]

	paths := make(map[string]string) // archive id to path
	var hits []hit
	err := x.scan(namePrefix+literal, func(key, val []byte) error {
		name, id, ok := strings.Cut(string(key[len(namePrefix):]), "\x00")
		if !ok {
			return fmt.Errorf("index key %q: no archive id", key)
		}
		if ok, _ := doublestar.Match(pattern, name); !ok {
			return nil
		}
		archive, seen := paths[id]
		if !seen {
			var rec archiveRecord
			if _, err := x.get(archivePrefix+id, &rec); err != nil {
				return err
			}
			archive = rec.Path
			paths[id] = archive
		}
		h := hit{Archive: archive, Name: name}
		if err := decMode.Unmarshal(val, &h.nameRecord); err != nil {
			return fmt.Errorf("index key %q: %w", key, err)
		}
		hits = append(hits, h)
		return nil
	})
	return hits, err
}
