// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package cache memoises compilations by source content.
//
// Lookups go through an in-memory ARC cache of decoded programs and then,
// when a directory is configured, a LevelDB store of encoded programs.
// Concurrent misses on the same source share a single compilation.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/singleflight"

	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/log"
)

// keyPrefix namespaces program entries in the persistent store.
var keyPrefix = []byte("p1-")

// Config holds the cache settings.
type Config struct {
	Entries int    // programs kept in memory
	Dir     string `toml:",omitempty"` // LevelDB directory, empty for memory only
	Salt    string `toml:",omitempty"` // mixed into every key, e.g. a compiler config digest
}

// DefaultConfig contains the default cache settings.
var DefaultConfig = Config{
	Entries: 1024,
}

// CompileFunc compiles one source text.
type CompileFunc func(src string) (*bytecode.Program, error)

// Stats counts cache outcomes.
type Stats struct {
	Hits     uint64 // served from memory
	DiskHits uint64 // served from the persistent store
	Misses   uint64 // compiled
	Failures uint64 // compiled with an error, not cached
}

// Cache is a two-tier compile cache. Programs it returns are shared and must
// not be modified.
type Cache struct {
	salt    string
	compile CompileFunc
	mem     *lru.ARCCache
	db      *leveldb.DB
	group   singleflight.Group
	log     log.Logger

	hits, diskHits, misses, failures uint64
}

// New creates a cache in front of compile. If cfg.Dir is set the persistent
// tier is opened there.
func New(cfg Config, compile CompileFunc) (*Cache, error) {
	var db *leveldb.DB
	if cfg.Dir != "" {
		var err error
		db, err = leveldb.OpenFile(cfg.Dir, &opt.Options{
			OpenFilesCacheCapacity: 16,
			BlockCacheCapacity:     8 * opt.MiB,
			WriteBuffer:            4 * opt.MiB,
		})
		if err != nil {
			return nil, fmt.Errorf("cache: opening %s: %w", cfg.Dir, err)
		}
	}
	return newCache(cfg, db, compile)
}

func newCache(cfg Config, db *leveldb.DB, compile CompileFunc) (*Cache, error) {
	if compile == nil {
		return nil, errors.New("cache: nil compile function")
	}
	entries := cfg.Entries
	if entries <= 0 {
		entries = DefaultConfig.Entries
	}
	mem, err := lru.NewARC(entries)
	if err != nil {
		return nil, err
	}
	return &Cache{
		salt:    cfg.Salt,
		compile: compile,
		mem:     mem,
		db:      db,
		log:     log.New("module", "cache"),
	}, nil
}

// Key returns the content key of src.
func (c *Cache) Key(src string) [32]byte {
	h := sha3.New256()
	h.Write([]byte(c.salt))
	h.Write([]byte{0})
	h.Write([]byte(src))
	var k [32]byte
	h.Sum(k[:0])
	return k
}

// Get returns the program for src, compiling it on a miss. Compile errors are
// returned unchanged and never cached.
func (c *Cache) Get(src string) (*bytecode.Program, error) {
	key := c.Key(src)
	if v, ok := c.mem.Get(key); ok {
		atomic.AddUint64(&c.hits, 1)
		return v.(*bytecode.Program), nil
	}
	v, err, _ := c.group.Do(string(key[:]), func() (interface{}, error) {
		if prog := c.load(key); prog != nil {
			atomic.AddUint64(&c.diskHits, 1)
			c.mem.Add(key, prog)
			return prog, nil
		}
		atomic.AddUint64(&c.misses, 1)
		prog, err := c.compile(src)
		if err != nil {
			atomic.AddUint64(&c.failures, 1)
			return nil, err
		}
		c.mem.Add(key, prog)
		c.store(key, prog)
		return prog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bytecode.Program), nil
}

func dbKey(key [32]byte) []byte {
	return append(append([]byte{}, keyPrefix...), key[:]...)
}

// load reads a program from the persistent tier. Unreadable entries are
// treated as misses and dropped.
func (c *Cache) load(key [32]byte) *bytecode.Program {
	if c.db == nil {
		return nil
	}
	data, err := c.db.Get(dbKey(key), nil)
	if err != nil {
		if err != leveldb.ErrNotFound {
			c.log.Warn("Failed to read cached program", "key", hex.EncodeToString(key[:8]), "err", err)
		}
		return nil
	}
	prog, err := bytecode.Unmarshal(data)
	if err != nil {
		c.log.Warn("Dropping corrupt cached program", "key", hex.EncodeToString(key[:8]), "err", err)
		c.db.Delete(dbKey(key), nil)
		return nil
	}
	return prog
}

func (c *Cache) store(key [32]byte, prog *bytecode.Program) {
	if c.db == nil {
		return
	}
	if err := c.db.Put(dbKey(key), bytecode.Marshal(prog), nil); err != nil {
		c.log.Warn("Failed to persist program", "key", hex.EncodeToString(key[:8]), "err", err)
	}
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     atomic.LoadUint64(&c.hits),
		DiskHits: atomic.LoadUint64(&c.diskHits),
		Misses:   atomic.LoadUint64(&c.misses),
		Failures: atomic.LoadUint64(&c.failures),
	}
}

// Len returns the number of programs held in memory.
func (c *Cache) Len() int { return c.mem.Len() }

// Purge empties the in-memory tier.
func (c *Cache) Purge() { c.mem.Purge() }

// Close releases the persistent store, if any.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
