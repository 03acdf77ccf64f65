// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/blocksync/fault"
)

// System - the sharded block cache
type System struct {
	sync.RWMutex // guards shards

	log           *logger.L
	directory     string
	maxBlocks     uint64
	maxMemory     int64
	multiTask     bool
	taskWaitDelay time.Duration
	idleTimeout   time.Duration

	shards      map[string]*shard
	initialised bool

	memoryLock sync.Mutex    // serialises reservations and forced purges
	tasks      chan struct{} // bounds parallel shard tasks
}

// New - create a cache system, call Initialise before use
func New(conf Configuration) (*System, error) {
	if err := conf.validate(); nil != err {
		return nil, err
	}

	return &System{
		log:           logger.New("iocache"),
		directory:     conf.Directory,
		maxBlocks:     conf.MaxBlocksPerFile,
		maxMemory:     conf.MaxMemory,
		multiTask:     conf.MultiTask,
		taskWaitDelay: conf.taskWaitDelay(),
		idleTimeout:   conf.idleTimeout(),
		shards:        make(map[string]*shard),
		tasks:         make(chan struct{}, runtime.NumCPU()),
	}, nil
}

// ShardID - the shard holding a height
func (s *System) ShardID(height uint64) uint64 {
	return height / s.maxBlocks
}

// Initialise - scan the cache directory loading every shard file
//
// returns the sorted set of heights found, a shard that fails to load
// is logged and skipped so its heights are absent
func (s *System) Initialise(ctx context.Context) ([]uint64, error) {
	s.Lock()
	defer s.Unlock()

	if s.initialised {
		return nil, fault.AlreadyInitialised
	}

	if err := os.MkdirAll(s.directory, 0700); nil != err {
		return nil, err
	}

	files, err := ioutil.ReadDir(s.directory)
	if nil != err {
		return nil, err
	}

	heights := make([]uint64, 0)
	for _, f := range files {
		if nil != ctx.Err() {
			return nil, ctx.Err()
		}
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, shardExtension) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, shardExtension), 10, 64)
		if nil != err {
			s.log.Warnf("ignoring file: %q", name)
			continue
		}
		sh, err := newShard(s.directory, id, s.maxBlocks, s)
		if nil != err {
			s.log.Errorf("shard: %q  load error: %s", name, err)
			continue
		}
		s.shards[name] = sh
		heights = append(heights, sh.heights()...)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	s.initialised = true
	s.log.Infof("initialised: %d shards  %d heights", len(s.shards), len(heights))
	return heights, nil
}

// find a shard, optionally creating it
func (s *System) getShard(id uint64, create bool) (*shard, error) {
	name := ShardFileName(id)

	s.RLock()
	sh, ok := s.shards[name]
	s.RUnlock()
	if ok {
		return sh, nil
	}
	if !create {
		return nil, fault.ShardNotFound
	}

	s.Lock()
	defer s.Unlock()

	if sh, ok := s.shards[name]; ok {
		return sh, nil
	}
	sh, err := newShard(s.directory, id, s.maxBlocks, s)
	if fault.CorruptRecord == err {
		sh, err = s.replaceCorruptShard(id)
	}
	if nil != err {
		s.log.Errorf("shard: %q  create error: %s", name, err)
		return nil, err
	}
	s.shards[name] = sh
	return sh, nil
}

// move an unreadable shard file aside and start an empty one in its place
func (s *System) replaceCorruptShard(id uint64) (*shard, error) {
	fileName := filepath.Join(s.directory, ShardFileName(id))
	aside := fmt.Sprintf("%s.%d.corrupt", fileName, time.Now().UnixNano())
	if err := os.Rename(fileName, aside); nil != err {
		return nil, err
	}
	s.log.Warnf("corrupt shard: %q  moved to: %q", fileName, aside)
	return newShard(s.directory, id, s.maxBlocks, s)
}

// snapshot of all shards ordered by id
func (s *System) shardList() []*shard {
	s.RLock()
	defer s.RUnlock()

	list := make([]*shard, 0, len(s.shards))
	for _, sh := range s.shards {
		list = append(list, sh)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

// group heights by shard id, each group sorted
func (s *System) groupHeights(heights []uint64) (map[uint64][]uint64, []uint64) {
	groups := make(map[uint64][]uint64)
	seen := make(map[uint64]struct{}, len(heights))
	for _, h := range heights {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		id := s.ShardID(h)
		groups[id] = append(groups[id], h)
	}
	ids := make([]uint64, 0, len(groups))
	for id, list := range groups {
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return groups, ids
}

// run fn for each shard id, in parallel when multi-task is enabled
//
// returns false if the context was cancelled
func (s *System) runTasks(ctx context.Context, ids []uint64, fn func(id uint64)) bool {
	if !s.multiTask || len(ids) < 2 {
		for _, id := range ids {
			if nil != ctx.Err() {
				return false
			}
			fn(id)
		}
		return nil == ctx.Err()
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	var completed int64
	var completedLock sync.Mutex

	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			select {
			case s.tasks <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-s.tasks }()
			if nil != ctx.Err() {
				return
			}
			fn(id)
			completedLock.Lock()
			completed += 1
			completedLock.Unlock()
		}(id)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(s.taskWaitDelay)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			completedLock.Lock()
			n := completed
			completedLock.Unlock()
			s.log.Debugf("tasks completed: %d of %d", n, len(ids))
		}
	}
	return nil == ctx.Err()
}

// Statistics - per shard summary ordered by id
func (s *System) Statistics() []ShardStatistics {
	list := s.shardList()
	stats := make([]ShardStatistics, 0, len(list))
	for _, sh := range list {
		stats = append(stats, sh.statistics())
	}
	return stats
}

// Flush - write every dirty entry to disk, keeping it in memory
func (s *System) Flush(ctx context.Context) bool {
	list := s.shardList()
	ids := make([]uint64, len(list))
	byID := make(map[uint64]*shard, len(list))
	for i, sh := range list {
		ids[i] = sh.id
		byID[sh.id] = sh
	}

	var lock sync.Mutex
	ok := true
	written := 0
	completed := s.runTasks(ctx, ids, func(id uint64) {
		n, err := byID[id].flush(ctx)
		lock.Lock()
		written += n
		if nil != err {
			ok = false
		}
		lock.Unlock()
	})
	s.log.Debugf("flushed: %d entries", written)
	return ok && completed
}

// Compact - rewrite shard files dropping superseded records
func (s *System) Compact(ctx context.Context) bool {
	ok := true
	for _, sh := range s.shardList() {
		if nil != ctx.Err() {
			return false
		}
		if err := sh.compact(ctx); nil != err {
			s.log.Errorf("compact shard: %d  error: %s", sh.id, err)
			ok = false
		}
	}
	return ok
}

// Clean - close and delete every shard file and the cache directory
//
// the system remains usable and starts again from empty
func (s *System) Clean() error {
	s.Lock()
	defer s.Unlock()

	for name, sh := range s.shards {
		if err := sh.remove(); nil != err && !os.IsNotExist(err) {
			s.log.Errorf("remove shard: %q  error: %s", name, err)
		}
	}
	s.shards = make(map[string]*shard)

	if err := os.RemoveAll(s.directory); nil != err {
		s.log.Errorf("remove directory: %q  error: %s", s.directory, err)
		return err
	}
	s.log.Info("cache cleaned")
	return nil
}

// Close - flush and close every shard
func (s *System) Close() error {
	s.Lock()
	defer s.Unlock()

	var firstError error
	for name, sh := range s.shards {
		if err := sh.close(); nil != err {
			s.log.Errorf("close shard: %q  error: %s", name, err)
			if nil == firstError {
				firstError = err
			}
		}
	}
	s.shards = make(map[string]*shard)
	s.initialised = false

	s.log.Info("closed")
	return firstError
}
