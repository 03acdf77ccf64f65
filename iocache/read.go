// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"context"
	"sort"
	"sync"

	"github.com/bitmark-inc/blocksync/blockrecord"
)

// GetBlock - fetch one block, nil if not available
//
// keepAlive retains a block read from disk in memory, clone returns
// an independent copy instead of the stored object
func (s *System) GetBlock(ctx context.Context, height uint64, keepAlive bool, clone bool) *blockrecord.Block {
	sh, err := s.getShard(s.ShardID(height), false)
	if nil != err {
		return nil
	}
	return sh.get(ctx, height, keepAlive, clone)
}

// GetBlockInformation - block header fields without transactions
func (s *System) GetBlockInformation(ctx context.Context, height uint64) *blockrecord.Block {
	b := s.GetBlock(ctx, height, false, false)
	if nil == b {
		return nil
	}
	return b.Information()
}

// GetBlockList - fetch blocks for a set of heights ordered by height
//
// heights that are not available are omitted
func (s *System) GetBlockList(ctx context.Context, heights []uint64, keepAlive bool, clone bool) []*blockrecord.Block {
	groups, ids := s.groupHeights(heights)

	var lock sync.Mutex
	blocks := make([]*blockrecord.Block, 0, len(heights))

	s.runTasks(ctx, ids, func(id uint64) {
		sh, err := s.getShard(id, false)
		if nil != err {
			return
		}
		list := sh.getList(ctx, groups[id], keepAlive, clone)
		lock.Lock()
		blocks = append(blocks, list...)
		lock.Unlock()
	})

	if nil != ctx.Err() {
		return []*blockrecord.Block{}
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Height < blocks[j].Height })
	return blocks
}

// GetBlockRange - fetch blocks from start to end inclusive, skipping
// any height the caller already has
func (s *System) GetBlockRange(ctx context.Context, start uint64, end uint64, alreadyCached map[uint64]bool, keepAlive bool, clone bool) []*blockrecord.Block {
	if end < start {
		return []*blockrecord.Block{}
	}
	heights := make([]uint64, 0, end-start+1)
	for h := start; h <= end; h += 1 {
		if !alreadyCached[h] {
			heights = append(heights, h)
		}
		if h == end {
			break
		}
	}
	return s.GetBlockList(ctx, heights, keepAlive, clone)
}

// ContainsHeight - true if a block is stored for the height
func (s *System) ContainsHeight(height uint64) bool {
	sh, err := s.getShard(s.ShardID(height), false)
	if nil != err {
		return false
	}
	return sh.contains(height)
}

// Heights - all stored heights in ascending order
func (s *System) Heights() []uint64 {
	heights := make([]uint64, 0)
	for _, sh := range s.shardList() {
		heights = append(heights, sh.heights()...)
	}
	return heights
}

// GetTransaction - copy of one transaction of a stored block
func (s *System) GetTransaction(ctx context.Context, hash string, height uint64, keepAlive bool) *blockrecord.Transaction {
	b := s.GetBlock(ctx, height, keepAlive, false)
	if nil == b {
		return nil
	}
	tx, ok := b.Transactions[hash]
	if !ok {
		return nil
	}
	return tx.Clone()
}

// ContainsTransaction - true if the block at height holds the transaction
func (s *System) ContainsTransaction(ctx context.Context, hash string, height uint64) bool {
	return nil != s.GetTransaction(ctx, hash, height, false)
}

// TransactionCount - declared transaction count of a stored block
func (s *System) TransactionCount(ctx context.Context, height uint64) (int, bool) {
	b := s.GetBlock(ctx, height, false, false)
	if nil == b {
		return 0, false
	}
	return b.TotalTransaction, true
}

// BlockTransactions - copies of all transactions of a stored block
func (s *System) BlockTransactions(ctx context.Context, height uint64, keepAlive bool) map[string]*blockrecord.Transaction {
	b := s.GetBlock(ctx, height, keepAlive, true)
	if nil == b {
		return nil
	}
	return b.Transactions
}
