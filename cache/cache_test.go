// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/moonlisp/go-moonlisp"
	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/diag"
)

type countingCompiler struct{ calls int32 }

func (c *countingCompiler) compile(src string) (*bytecode.Program, error) {
	atomic.AddInt32(&c.calls, 1)
	return moonlisp.Compile("cache.ml", src, nil)
}

func memDB(t *testing.T) *leveldb.DB {
	t.Helper()
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	return db
}

func TestMemoryTier(t *testing.T) {
	cc := new(countingCompiler)
	c, err := New(Config{Entries: 4}, cc.compile)
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Get("(+ 1 2)")
	require.NoError(t, err)
	second, err := c.Get("(+ 1 2)")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), cc.calls)
	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())
	assert.Equal(t, 1, c.Len())
}

func TestFailuresAreNotCached(t *testing.T) {
	cc := new(countingCompiler)
	c, err := New(DefaultConfig, cc.compile)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Get(`"abc`)
		require.Error(t, err)
		assert.Equal(t, diag.StageLexical, diag.StageOf(err))
	}
	assert.Equal(t, int32(2), cc.calls)
	assert.Equal(t, uint64(2), c.Stats().Failures)
	assert.Equal(t, 0, c.Len())
}

func TestPersistentTier(t *testing.T) {
	db := memDB(t)
	cc := new(countingCompiler)
	c, err := newCache(DefaultConfig, db, cc.compile)
	require.NoError(t, err)

	want, err := c.Get("(if c 1 2)")
	require.NoError(t, err)

	// A cold memory tier falls back to the store.
	c.Purge()
	got, err := c.Get("(if c 1 2)")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int32(1), cc.calls)
	assert.Equal(t, Stats{DiskHits: 1, Misses: 1}, c.Stats())

	// A second cache over the same store starts warm.
	c2, err := newCache(DefaultConfig, db, cc.compile)
	require.NoError(t, err)
	_, err = c2.Get("(if c 1 2)")
	require.NoError(t, err)
	assert.Equal(t, int32(1), cc.calls)
	require.NoError(t, c2.Close())
}

func TestCorruptEntryIsRecompiled(t *testing.T) {
	db := memDB(t)
	cc := new(countingCompiler)
	c, err := newCache(DefaultConfig, db, cc.compile)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, db.Put(dbKey(c.Key("x")), []byte("junk"), nil))
	prog, err := c.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 2, prog.Len())
	assert.Equal(t, int32(1), cc.calls)

	data, err := db.Get(dbKey(c.Key("x")), nil)
	require.NoError(t, err)
	_, err = bytecode.Unmarshal(data)
	assert.NoError(t, err)
}

func TestSaltSeparatesKeys(t *testing.T) {
	a, err := New(Config{Salt: "depth=256"}, new(countingCompiler).compile)
	require.NoError(t, err)
	b, err := New(Config{Salt: "depth=8"}, new(countingCompiler).compile)
	require.NoError(t, err)
	assert.NotEqual(t, a.Key("(f)"), b.Key("(f)"))
	assert.Equal(t, a.Key("(f)"), a.Key("(f)"))
}

func TestConcurrentGet(t *testing.T) {
	cc := new(countingCompiler)
	c, err := New(DefaultConfig, cc.compile)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get("(cond (a 1) (else 2))")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	// Callers that join an in-flight compilation are not counted.
	s := c.Stats()
	assert.LessOrEqual(t, s.Hits+s.Misses, uint64(16))
	assert.GreaterOrEqual(t, s.Misses, uint64(1))
	assert.Equal(t, uint64(atomic.LoadInt32(&cc.calls)), s.Misses)
}

func TestNilCompile(t *testing.T) {
	_, err := New(DefaultConfig, nil)
	assert.Error(t, err)
}
