// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/blocksync/blockrecord"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/iocache"
)

const largeMemory = 64 * 1024 * 1024

func TestNewInvalidConfiguration(t *testing.T) {
	conf := iocache.DefaultConfiguration()
	_, err := iocache.New(conf)
	assert.Equal(t, fault.CacheDirectoryRequired, err, "missing directory accepted")

	conf.Directory = "x"
	conf.MaxBlocksPerFile = 0
	_, err = iocache.New(conf)
	assert.Equal(t, fault.InvalidBlockCount, err, "zero blocks per file accepted")
}

func TestShardID(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	s := newSystem(t, dir, 100, largeMemory, false)
	defer s.Close()

	tests := []struct {
		height uint64
		id     uint64
	}{
		{0, 0}, {1, 0}, {99, 0}, {100, 1}, {199, 1}, {250, 2}, {12345, 123},
	}
	for i, item := range tests {
		assert.Equal(t, item.id, s.ShardID(item.height), "%d: wrong shard", i)
	}
	assert.Equal(t, "123.ioblock", iocache.ShardFileName(123), "wrong file name")
}

func TestShardFilesAfterFlush(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 100, largeMemory, true)

	for _, h := range []uint64{0, 99, 100, 250} {
		assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(h, 2), true), "push height: %d", h)
	}
	assert.True(t, s.Flush(ctx), "flush failed")

	files, err := ioutil.ReadDir(dir)
	assert.Nil(t, err, "read dir error")
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"0.ioblock", "1.ioblock", "2.ioblock"}, names, "wrong shard files")

	// a second instance sees the flushed data
	other := newSystem(t, dir, 100, largeMemory, false)
	defer other.Close()

	stats := other.Statistics()
	assert.Equal(t, 3, len(stats), "wrong shard count")
	assert.Equal(t, 2, stats[0].Heights, "shard 0 heights")
	assert.Equal(t, 1, stats[1].Heights, "shard 1 heights")
	assert.Equal(t, 1, stats[2].Heights, "shard 2 heights")
	assert.Equal(t, []uint64{0, 99, 100, 250}, other.Heights(), "wrong heights")

	assert.Nil(t, s.Close(), "close error")
}

func TestRoundTrip(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	defer s.Close()

	for _, keepAlive := range []bool{true, false} {
		b := makeBlock(7, 5)
		expected := b.Clone()

		assert.True(t, s.PushOrUpdateBlock(ctx, b, keepAlive), "push keepAlive: %v", keepAlive)

		r := s.GetBlock(ctx, 7, false, true)
		if assert.NotNil(t, r, "missing block keepAlive: %v", keepAlive) {
			assert.Equal(t, expected.TotalTransaction, r.TotalTransaction, "wrong count")
			assert.Equal(t, expected.TransactionHashes(), r.TransactionHashes(), "wrong transaction set")
			for h, tx := range expected.Transactions {
				assert.Equal(t, tx, r.Transactions[h], "transaction: %s", h)
			}
		}
	}

	assert.Nil(t, s.GetBlock(ctx, 8, false, false), "unexpected block")
	assert.Nil(t, s.GetBlock(ctx, 5000, false, false), "unexpected block in missing shard")
}

func TestStoredCopyIsIndependent(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	defer s.Close()

	memory := makeBlock(1, 2)
	memory.FromMemory = true
	cloned := makeBlock(2, 2)
	cloned.Cloned = true

	assert.True(t, s.PushOrUpdateBlock(ctx, memory, true), "push from memory")
	assert.True(t, s.PushOrUpdateBlock(ctx, cloned, true), "push cloned")

	for _, b := range []*blockrecord.Block{memory, cloned} {
		for _, tx := range b.Transactions {
			tx.Amount = 1
			tx.Payload[0] = 0xff
		}
		b.Transactions["extra"] = &blockrecord.Transaction{Hash: "extra"}
	}

	for _, h := range []uint64{1, 2} {
		stored := s.GetBlock(ctx, h, true, false)
		if !assert.NotNil(t, stored, "missing height: %d", h) {
			continue
		}
		assert.Equal(t, 2, len(stored.Transactions), "caller mutation visible at: %d", h)
		for _, tx := range stored.Transactions {
			assert.NotEqual(t, uint64(1), tx.Amount, "caller mutation visible at: %d", h)
			assert.NotEqual(t, byte(0xff), tx.Payload[0], "caller mutation visible at: %d", h)
		}
	}
}

func TestOlderBlockIgnored(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	defer s.Close()

	newer := makeBlock(3, 3)
	newer.LastChangeTimestamp = 2000
	older := makeBlock(3, 1)
	older.LastChangeTimestamp = 1000

	assert.True(t, s.PushOrUpdateBlock(ctx, newer, true), "push newer")
	assert.True(t, s.PushOrUpdateBlock(ctx, older, true), "push older")

	count, ok := s.TransactionCount(ctx, 3)
	assert.True(t, ok, "missing block")
	assert.Equal(t, 3, count, "older block replaced newer")
}

func TestMemoryCeiling(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	size := makeBlock(0, 3).SizeOnMemory()
	maxMemory := 3*size + size/2

	// one block per shard so every write has other shards to evict from
	s := newSystem(t, dir, 1, maxMemory, false)
	defer s.Close()

	for h := uint64(0); h < 10; h += 1 {
		assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(h, 3), true), "push height: %d", h)
		usage, _ := s.MemoryUsage()
		assert.True(t, usage <= maxMemory, "height: %d  usage: %d exceeds: %d", h, usage, maxMemory)
	}

	usage, kept := s.Purge(ctx)
	assert.True(t, usage <= maxMemory, "usage: %d exceeds: %d after purge", usage, maxMemory)
	assert.True(t, kept <= 3, "too many kept alive: %d", kept)

	// evicted dirty entries were written before eviction
	for h := uint64(0); h < 10; h += 1 {
		b := s.GetBlock(ctx, h, false, false)
		if assert.NotNil(t, b, "lost height: %d", h) {
			assert.Equal(t, 3, b.TotalTransaction, "height: %d", h)
		}
	}
}

func TestWriteThroughWhenBlockExceedsCeiling(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, 100, false)
	defer s.Close()

	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(4, 10), true), "push failed")
	usage, kept := s.MemoryUsage()
	assert.Equal(t, int64(0), usage, "oversized block kept in memory")
	assert.Equal(t, int64(0), kept, "oversized block kept in memory")
	assert.True(t, s.ContainsHeight(4), "block not stored")
	assert.NotNil(t, s.GetBlock(ctx, 4, true, false), "block not readable")
}

func TestRequestMemoryExcludesShard(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	size := makeBlock(0, 2).SizeOnMemory()
	maxMemory := 10 * size

	s := newSystem(t, dir, 1, maxMemory, false)
	defer s.Close()

	for h := uint64(0); h < 3; h += 1 {
		assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(h, 2), true), "push height: %d", h)
	}
	before := s.Statistics()
	assert.Equal(t, size, before[0].Memory, "shard 0 not in memory")

	// ceiling already satisfied
	assert.True(t, s.RequestMemory(ctx, 0, size), "small request refused")
	usage, _ := s.MemoryUsage()
	assert.Equal(t, 3*size, usage, "evicted without need")

	// cannot free a full ceiling from two shards
	assert.False(t, s.RequestMemory(ctx, 0, maxMemory), "impossible request granted")

	after := s.Statistics()
	assert.Equal(t, size, after[0].Memory, "excluded shard was evicted")
	assert.Equal(t, int64(0), after[1].Memory, "shard 1 not evicted")
	assert.Equal(t, int64(0), after[2].Memory, "shard 2 not evicted")

	// evicted dirty entries survive on disk
	assert.NotNil(t, s.GetBlock(ctx, 1, false, false), "shard 1 data lost")
	assert.NotNil(t, s.GetBlock(ctx, 2, false, false), "shard 2 data lost")
}

func TestRequestMemoryFreesEnough(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	size := makeBlock(0, 2).SizeOnMemory()
	maxMemory := 3 * size

	s := newSystem(t, dir, 1, maxMemory, false)
	defer s.Close()

	for h := uint64(0); h < 3; h += 1 {
		assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(h, 2), true), "push height: %d", h)
	}
	assert.True(t, s.Flush(ctx), "flush failed")

	assert.True(t, s.RequestMemory(ctx, 2, size), "request refused")
	stats := s.Statistics()
	assert.Equal(t, size, stats[2].Memory, "excluded shard was evicted")
	usage, _ := s.MemoryUsage()
	assert.True(t, usage+size <= maxMemory, "not enough room made")
}

func TestRestartAndDelete(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)

	for h := uint64(0); h < 25; h += 1 {
		assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(h, 1), h%2 == 0), "push height: %d", h)
	}
	assert.True(t, s.TryDeleteBlock(5), "delete failed")
	assert.True(t, s.TryDeleteBlock(6), "delete of in-memory entry failed")
	assert.True(t, s.TryDeleteBlock(500), "delete of absent height failed")
	assert.False(t, s.ContainsHeight(5), "deleted height still present")
	assert.Nil(t, s.Close(), "close error")

	conf := iocache.DefaultConfiguration()
	conf.Directory = dir
	conf.MaxBlocksPerFile = 10
	reopened, err := iocache.New(conf)
	assert.Nil(t, err, "new error")
	heights, err := reopened.Initialise(ctx)
	assert.Nil(t, err, "initialise error")
	defer reopened.Close()

	assert.Equal(t, 23, len(heights), "wrong height count")
	for _, h := range heights {
		assert.NotEqual(t, uint64(5), h, "tombstoned height resurrected")
		assert.NotEqual(t, uint64(6), h, "tombstoned height resurrected")
	}
	assert.NotNil(t, reopened.GetBlock(ctx, 24, false, false), "height 24 lost")

	_, err = reopened.Initialise(ctx)
	assert.Equal(t, fault.AlreadyInitialised, err, "second initialise allowed")
}

func TestTransactions(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	defer s.Close()

	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(12, 2), false), "push failed")

	tx := &blockrecord.Transaction{
		Hash:              "new-transaction",
		BlockHeightInsert: 12,
		Amount:            42,
	}
	assert.True(t, s.PushOrUpdateTransaction(ctx, tx, blockrecord.UnknownHeight, true), "push transaction failed")
	assert.False(t, s.PushOrUpdateTransaction(ctx, tx, 13, true), "push to missing block succeeded")

	count, ok := s.TransactionCount(ctx, 12)
	assert.True(t, ok, "missing block")
	assert.Equal(t, 3, count, "wrong count")

	assert.True(t, s.ContainsTransaction(ctx, "new-transaction", 12), "transaction missing")
	assert.False(t, s.ContainsTransaction(ctx, "other", 12), "unexpected transaction")

	r := s.GetTransaction(ctx, "new-transaction", 12, false)
	if assert.NotNil(t, r, "transaction missing") {
		assert.Equal(t, uint64(42), r.Amount, "wrong amount")
		r.Amount = 0
	}
	assert.Equal(t, uint64(42), s.GetTransaction(ctx, "new-transaction", 12, false).Amount, "returned copy not independent")

	txs := s.BlockTransactions(ctx, 12, false)
	assert.Equal(t, 3, len(txs), "wrong transaction list")

	info := s.GetBlockInformation(ctx, 12)
	if assert.NotNil(t, info, "missing information") {
		assert.Nil(t, info.Transactions, "information carries transactions")
		assert.Equal(t, 3, info.TotalTransaction, "wrong information count")
	}
}

func TestBlockListAndRange(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 4, largeMemory, true)
	defer s.Close()

	blocks := make([]*blockrecord.Block, 0, 20)
	for h := uint64(19); h < 20; h -= 1 {
		blocks = append(blocks, makeBlock(h, 1))
		if 0 == h {
			break
		}
	}
	assert.True(t, s.PushOrUpdateBlockList(ctx, blocks, false), "push list failed")

	list := s.GetBlockList(ctx, []uint64{17, 3, 3, 8, 100, 0}, true, true)
	heights := make([]uint64, 0, len(list))
	for _, b := range list {
		heights = append(heights, b.Height)
	}
	assert.Equal(t, []uint64{0, 3, 8, 17}, heights, "wrong list")

	skip := map[uint64]bool{5: true, 6: true}
	list = s.GetBlockRange(ctx, 4, 9, skip, false, false)
	heights = heights[:0]
	for _, b := range list {
		heights = append(heights, b.Height)
	}
	assert.Equal(t, []uint64{4, 7, 8, 9}, heights, "wrong range")

	assert.Equal(t, 0, len(s.GetBlockRange(ctx, 9, 4, nil, false, false)), "reversed range not empty")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, 0, len(s.GetBlockList(cancelled, []uint64{1, 2, 9}, false, false)), "cancelled read returned data")
	assert.False(t, s.PushOrUpdateBlock(cancelled, makeBlock(30, 1), false), "cancelled write succeeded")
}

func TestCorruptTailIsTruncated(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(1, 2), false), "push failed")
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(2, 2), false), "push failed")
	assert.Nil(t, s.Close(), "close error")

	fileName := filepath.Join(dir, "0.ioblock")
	info, err := os.Stat(fileName)
	assert.Nil(t, err, "stat error")
	goodSize := info.Size()

	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_APPEND, 0600)
	assert.Nil(t, err, "open error")
	_, err = f.Write([]byte("IOBK\x00partial-record"))
	assert.Nil(t, err, "write error")
	f.Close()

	reopened := newSystem(t, dir, 10, largeMemory, false)
	defer reopened.Close()

	assert.Equal(t, []uint64{1, 2}, reopened.Heights(), "wrong heights")
	info, err = os.Stat(fileName)
	assert.Nil(t, err, "stat error")
	assert.Equal(t, goodSize, info.Size(), "tail not truncated")
}

func TestCorruptShardIsSkipped(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(1, 1), false), "push failed")
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(11, 1), false), "push failed")
	assert.Nil(t, s.Close(), "close error")

	err := ioutil.WriteFile(filepath.Join(dir, "1.ioblock"), []byte("this is not a shard file at all"), 0600)
	assert.Nil(t, err, "write error")
	err = ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600)
	assert.Nil(t, err, "write error")

	conf := iocache.DefaultConfiguration()
	conf.Directory = dir
	conf.MaxBlocksPerFile = 10
	reopened, err := iocache.New(conf)
	assert.Nil(t, err, "new error")
	heights, err := reopened.Initialise(ctx)
	defer reopened.Close()

	assert.Nil(t, err, "corrupt shard aborted initialise")
	assert.Equal(t, []uint64{1}, heights, "wrong heights")
	assert.False(t, reopened.ContainsHeight(11), "height from corrupt shard present")

	// re-sync of the skipped heights starts a fresh shard file
	assert.True(t, reopened.PushOrUpdateBlock(ctx, makeBlock(11, 1), false), "push into skipped shard failed")
	assert.True(t, reopened.ContainsHeight(11), "re-synced height missing")
	assert.True(t, reopened.Flush(ctx), "flush failed")

	moved, err := filepath.Glob(filepath.Join(dir, "1.ioblock.*.corrupt"))
	assert.Nil(t, err, "glob error")
	assert.Equal(t, 1, len(moved), "corrupt file not kept aside")
}

func TestTornFirstRecordIsTruncated(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(1, 1), false), "push failed")
	assert.Nil(t, s.Close(), "close error")

	fileName := filepath.Join(dir, "1.ioblock")
	err := ioutil.WriteFile(fileName, []byte("IOBK\x00"), 0600)
	assert.Nil(t, err, "write error")

	reopened := newSystem(t, dir, 10, largeMemory, false)
	defer reopened.Close()

	assert.Equal(t, []uint64{1}, reopened.Heights(), "wrong heights")
	info, err := os.Stat(fileName)
	assert.Nil(t, err, "stat error")
	assert.Equal(t, int64(0), info.Size(), "torn record not truncated")

	assert.True(t, reopened.PushOrUpdateBlock(ctx, makeBlock(11, 1), false), "push into truncated shard failed")
	assert.True(t, reopened.ContainsHeight(11), "height missing")
}

func TestCompact(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	defer s.Close()

	for i := 0; i < 5; i += 1 {
		b := makeBlock(3, i+1)
		b.LastChangeTimestamp = int64(2000 + i)
		assert.True(t, s.PushOrUpdateBlock(ctx, b, false), "push failed")
	}
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(4, 1), false), "push failed")
	assert.True(t, s.TryDeleteBlock(4), "delete failed")

	before := s.Statistics()[0]
	assert.True(t, before.DeadBytes > 0, "no dead bytes")

	assert.True(t, s.Compact(ctx), "compact failed")

	after := s.Statistics()[0]
	assert.Equal(t, int64(0), after.DeadBytes, "dead bytes remain")
	assert.True(t, after.FileSize < before.FileSize, "file did not shrink")

	count, ok := s.TransactionCount(ctx, 3)
	assert.True(t, ok, "block lost in compaction")
	assert.Equal(t, 5, count, "wrong version kept")
	assert.False(t, s.ContainsHeight(4), "deleted height returned")
}

func TestClean(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	defer s.Close()

	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(1, 1), true), "push failed")
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(21, 1), false), "push failed")
	assert.Nil(t, s.Clean(), "clean error")

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "directory still present")
	assert.Equal(t, 0, len(s.Heights()), "heights remain")
	usage, _ := s.MemoryUsage()
	assert.Equal(t, int64(0), usage, "memory still charged")

	// usable again after clean
	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(2, 1), false), "push after clean failed")
	assert.True(t, s.ContainsHeight(2), "block missing after clean")
}
