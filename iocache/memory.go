// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bitmark-inc/blocksync/util"
)

// MemoryUsage - total bytes held in memory and number of kept-alive entries
func (s *System) MemoryUsage() (int64, int64) {
	usage := int64(0)
	kept := int64(0)
	for _, sh := range s.shardList() {
		m, k := sh.memoryUsage()
		usage += m
		kept += k
	}
	return usage, kept
}

// MaxMemory - the configured ceiling
func (s *System) MaxMemory() int64 {
	return s.maxMemory
}

// RequestMemory - free room for amount bytes without touching shard excluding
//
// returns true if the ceiling already allows amount more bytes, or if
// at least amount bytes were evicted from other shards
func (s *System) RequestMemory(ctx context.Context, excluding uint64, amount int64) bool {
	s.memoryLock.Lock()
	defer s.memoryLock.Unlock()

	return s.requestMemory(ctx, excluding, amount)
}

// memory lock must be held
func (s *System) requestMemory(ctx context.Context, excluding uint64, amount int64) bool {
	usage, _ := s.MemoryUsage()
	if usage+amount <= s.maxMemory {
		return true
	}

	freed := int64(0)
	for _, sh := range s.shardList() {
		if sh.id == excluding {
			continue
		}
		if nil != ctx.Err() {
			return false
		}
		freed += sh.purge(ctx, true, amount-freed, 0)
		if freed >= amount {
			s.log.Debugf("request memory: freed: %d for: %d", freed, amount)
			return true
		}
	}
	s.log.Debugf("request memory: only freed: %d of: %d", freed, amount)
	return false
}

// reserve - charge amount bytes to a shard if the ceiling allows,
// evicting from other shards first when needed
func (s *System) reserve(ctx context.Context, sh *shard, amount int64) bool {
	if amount > s.maxMemory {
		return false
	}

	s.memoryLock.Lock()
	defer s.memoryLock.Unlock()

	usage, _ := s.MemoryUsage()
	if usage+amount > s.maxMemory {
		s.requestMemory(ctx, sh.id, amount)
		usage, _ = s.MemoryUsage()
		if usage+amount > s.maxMemory {
			return false
		}
	}
	atomic.AddInt64(&sh.memory, amount)
	return true
}

// Purge - evict idle, already written entries from every shard
//
// while usage is still over the ceiling written entries are evicted
// least recently used first, dirty entries are left for Flush, returns
// the memory usage and kept-alive count after the purge
func (s *System) Purge(ctx context.Context) (int64, int64) {
	list := s.shardList()
	ids := make([]uint64, len(list))
	byID := make(map[uint64]*shard, len(list))
	for i, sh := range list {
		ids[i] = sh.id
		byID[sh.id] = sh
	}

	var lock sync.Mutex
	freed := int64(0)
	s.runTasks(ctx, ids, func(id uint64) {
		n := byID[id].purge(ctx, false, 0, s.idleTimeout)
		lock.Lock()
		freed += n
		lock.Unlock()
	})

	usage, _ := s.MemoryUsage()
	for _, sh := range list {
		excess := usage - s.maxMemory
		if excess <= 0 || nil != ctx.Err() {
			break
		}
		n := sh.purge(ctx, false, excess, s.idleTimeout)
		freed += n
		usage -= n
	}

	usage, kept := s.MemoryUsage()
	s.log.Infof("purge freed: %s  memory: %s of %s  kept alive: %d",
		util.FormatSize(freed), util.FormatSize(usage), util.FormatSize(s.maxMemory), kept)
	return usage, kept
}
