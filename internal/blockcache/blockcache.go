// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package blockcache keeps recently decompressed archive blocks in memory.
//
// Several archives can share one Cache: each is told apart by an id from [NewID].
package blockcache

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

type Key struct {
	Archive uint64
	Block   uint32
}

// A Cache is safe for concurrent use by multiple goroutines.
// A nil *Cache caches nothing.
type Cache struct {
	mu  sync.Mutex
	lfu *tinylfu.T[Key, []byte]

	hits, misses atomic.Int64
}

// New returns a cache holding up to nBlock blocks.
func New(nBlock int) *Cache {
	nBlock = max(nBlock, 1)
	return &Cache{lfu: tinylfu.New[Key, []byte](nBlock, nBlock*10, hash)}
}

// Get returns a cached block. The caller must not modify it.
func (c *Cache) Get(k Key) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	b, ok := c.lfu.Get(k)
	c.mu.Unlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return b, ok
}

// Add stores a block, which must not be modified afterwards.
func (c *Cache) Add(k Key, b []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lfu.Add(k, b)
	c.mu.Unlock()
}

func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

var monotonic atomic.Uint64

// NewID returns an archive id never returned before in this process.
func NewID() uint64 { return monotonic.Add(1) }

func hash(k Key) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:], k.Archive)
	binary.LittleEndian.PutUint32(buf[8:], k.Block)
	return xxhash.Sum64(buf[:])
}
