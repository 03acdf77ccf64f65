// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"context"
	"sync"

	"github.com/bitmark-inc/blocksync/blockrecord"
)

// PushOrUpdateBlock - store a block, creating its shard on first use
//
// with keepAlive the block stays in memory as a dirty entry if the
// memory budget allows, otherwise it is written straight to disk
func (s *System) PushOrUpdateBlock(ctx context.Context, block *blockrecord.Block, keepAlive bool) bool {
	if nil == block || nil != ctx.Err() {
		return false
	}
	sh, err := s.getShard(s.ShardID(block.Height), true)
	if nil != err {
		return false
	}
	return sh.push(ctx, block, keepAlive)
}

// PushOrUpdateBlockList - store a batch of blocks, one pass per shard
func (s *System) PushOrUpdateBlockList(ctx context.Context, blocks []*blockrecord.Block, keepAlive bool) bool {
	groups := make(map[uint64][]*blockrecord.Block)
	ids := make([]uint64, 0)
	for _, b := range blocks {
		if nil == b {
			continue
		}
		id := s.ShardID(b.Height)
		if _, ok := groups[id]; !ok {
			ids = append(ids, id)
		}
		groups[id] = append(groups[id], b)
	}

	var lock sync.Mutex
	ok := true
	fail := func() {
		lock.Lock()
		ok = false
		lock.Unlock()
	}

	completed := s.runTasks(ctx, ids, func(id uint64) {
		sh, err := s.getShard(id, true)
		if nil != err {
			fail()
			return
		}
		if !sh.pushList(ctx, groups[id], keepAlive) {
			fail()
		}
	})
	return ok && completed
}

// PushOrUpdateTransaction - add or replace a transaction in a stored block
//
// height may be blockrecord.UnknownHeight to use the height recorded
// in the transaction
func (s *System) PushOrUpdateTransaction(ctx context.Context, tx *blockrecord.Transaction, height uint64, keepAlive bool) bool {
	if nil == tx || nil != ctx.Err() {
		return false
	}
	if blockrecord.UnknownHeight == height {
		height = tx.BlockHeightInsert
	}
	sh, err := s.getShard(s.ShardID(height), false)
	if nil != err {
		return false
	}
	return sh.pushTransaction(ctx, tx, height, keepAlive)
}

// TryDeleteBlock - remove a height
//
// returns true if the height was absent or was removed
func (s *System) TryDeleteBlock(height uint64) bool {
	sh, err := s.getShard(s.ShardID(height), false)
	if nil != err {
		return true
	}
	return sh.delete(height)
}
