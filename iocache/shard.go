// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/blocksync/blockrecord"
	"github.com/bitmark-inc/blocksync/fault"
)

// extension of all shard files
const shardExtension = ".ioblock"

// memoryBudget - the owner of the global memory ceiling
//
// a successful reserve has already added amount to the shard's
// memory counter
type memoryBudget interface {
	reserve(ctx context.Context, sh *shard, amount int64) bool
}

// shard - index over one shard file
type shard struct {
	sync.Mutex            // guards everything below except atomics
	writeLock  sync.Mutex // serialises read-modify-write sequences

	log       *logger.L
	id        uint64
	fileName  string
	maxBlocks uint64
	budget    memoryBudget

	file      *os.File
	fileSize  int64
	deadBytes int64
	entries   map[uint64]*entry
	closed    bool

	memory    int64 // atomic
	keptAlive int64 // atomic
}

// ShardStatistics - summary of one shard
type ShardStatistics struct {
	ID        uint64
	FileName  string
	Heights   int
	Dirty     int
	KeptAlive int64
	Memory    int64
	FileSize  int64
	DeadBytes int64
}

// ShardFileName - file name for a shard id
func ShardFileName(id uint64) string {
	return fmt.Sprintf("%d%s", id, shardExtension)
}

// open or create a shard file and rebuild its index
func newShard(directory string, id uint64, maxBlocks uint64, budget memoryBudget) (*shard, error) {
	if err := os.MkdirAll(directory, 0700); nil != err {
		return nil, err
	}

	fileName := filepath.Join(directory, ShardFileName(id))
	file, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE, 0600)
	if nil != err {
		return nil, err
	}

	sh := &shard{
		log:       logger.New(fmt.Sprintf("shard@%d", id)),
		id:        id,
		fileName:  fileName,
		maxBlocks: maxBlocks,
		budget:    budget,
		file:      file,
		entries:   make(map[uint64]*entry),
	}

	if err := sh.load(); nil != err {
		file.Close()
		return nil, err
	}
	return sh, nil
}

// scan the file rebuilding the height index
func (sh *shard) load() error {
	info, err := sh.file.Stat()
	if nil != err {
		return err
	}
	fileSize := info.Size()

	end, err := scanRecords(sh.file, fileSize, func(position int64, h recordHeader) {
		if h.height/sh.maxBlocks != sh.id {
			sh.log.Warnf("record for height: %d at: %d does not belong here", h.height, position)
			sh.deadBytes += h.size()
			return
		}
		if e, ok := sh.entries[h.height]; ok {
			sh.deadBytes += e.sizeOnFile
		}
		if h.isTombstone() {
			delete(sh.entries, h.height)
			sh.deadBytes += h.size()
			return
		}
		sh.entries[h.height] = &entry{
			position:   position,
			sizeOnFile: h.size(),
			written:    true,
		}
	})
	if nil != err {
		if fault.CorruptRecord != err {
			return err
		}
		if 0 == end && !startsWithMagic(sh.file, fileSize) {
			return err
		}
		sh.log.Warnf("truncating corrupt tail at: %d  file size: %d", end, fileSize)
		if err := sh.file.Truncate(end); nil != err {
			return err
		}
	}
	sh.fileSize = end

	sh.log.Infof("loaded: %d heights  size: %d  dead: %d", len(sh.entries), sh.fileSize, sh.deadBytes)
	return nil
}

// heights - sorted list of live heights
func (sh *shard) heights() []uint64 {
	sh.Lock()
	defer sh.Unlock()

	heights := make([]uint64, 0, len(sh.entries))
	for h, e := range sh.entries {
		if !e.deleted {
			heights = append(heights, h)
		}
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights
}

func (sh *shard) contains(height uint64) bool {
	sh.Lock()
	defer sh.Unlock()

	e, ok := sh.entries[height]
	return ok && !e.deleted && !sh.closed
}

// read a block from disk, shard lock must be held
func (sh *shard) readBlock(e *entry, height uint64) (*blockrecord.Block, error) {
	h, payload, err := readRecord(sh.file, e.position, e.sizeOnFile)
	if nil != err {
		return nil, err
	}
	if h.height != height || h.isTombstone() {
		return nil, fault.CorruptRecord
	}
	return blockrecord.PackedBlock(payload).Unpack()
}

// fetch the current block for a height, shard lock must be held
//
// the result may be the stored object
func (sh *shard) current(height uint64) (*entry, *blockrecord.Block) {
	if sh.closed {
		return nil, nil
	}
	e, ok := sh.entries[height]
	if !ok || e.deleted {
		return nil, nil
	}
	if !e.isEmpty() {
		return e, e.block
	}
	if !e.onDisk() {
		return e, nil
	}
	b, err := sh.readBlock(e, height)
	if nil != err {
		sh.log.Errorf("read height: %d  error: %s", height, err)
		return e, nil
	}
	if !b.IsComplete() {
		sh.log.Warnf("height: %d  transactions: %d  expected: %d", height, len(b.Transactions), b.TotalTransaction)
		return e, nil
	}
	return e, b
}

// get - fetch one block, nil if not available
func (sh *shard) get(ctx context.Context, height uint64, keepAlive bool, clone bool) *blockrecord.Block {
	now := time.Now().UnixNano()

	sh.Lock()
	e, b := sh.current(height)
	if nil == b {
		sh.Unlock()
		return nil
	}
	fromMemory := b == e.block
	position := e.position
	if fromMemory {
		e.touch(now)
		if clone {
			b = b.Clone()
		}
	}
	sh.Unlock()

	if fromMemory {
		return b
	}

	if keepAlive {
		sh.retain(ctx, height, position, b, now)
	}
	if clone {
		return b.Clone()
	}
	return b
}

// keep a block just read from disk in memory if the budget allows
func (sh *shard) retain(ctx context.Context, height uint64, position int64, b *blockrecord.Block, now int64) {
	size := b.SizeOnMemory()
	if !sh.budget.reserve(ctx, sh, size) {
		return
	}

	sh.Lock()
	defer sh.Unlock()

	e, ok := sh.entries[height]
	if sh.closed || !ok || e.deleted || e.inMemory() || e.position != position {
		sh.release(size)
		return
	}
	e.block = b
	e.written = true
	e.touch(now)
	sh.charge(e, size)
}

// getList - fetch several blocks, missing heights are skipped
func (sh *shard) getList(ctx context.Context, heights []uint64, keepAlive bool, clone bool) []*blockrecord.Block {
	blocks := make([]*blockrecord.Block, 0, len(heights))
	for _, height := range heights {
		if nil != ctx.Err() {
			break
		}
		if b := sh.get(ctx, height, keepAlive, clone); nil != b {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// push - insert or update one block
func (sh *shard) push(ctx context.Context, block *blockrecord.Block, keepAlive bool) bool {
	sh.writeLock.Lock()
	defer sh.writeLock.Unlock()

	return sh.pushLocked(ctx, block, keepAlive)
}

// pushList - insert or update a batch of blocks in one pass
func (sh *shard) pushList(ctx context.Context, blocks []*blockrecord.Block, keepAlive bool) bool {
	sh.writeLock.Lock()
	defer sh.writeLock.Unlock()

	ok := true
	for _, block := range blocks {
		if nil != ctx.Err() {
			return false
		}
		if !sh.pushLocked(ctx, block, keepAlive) {
			ok = false
		}
	}
	return ok
}

// write lock must be held
func (sh *shard) pushLocked(ctx context.Context, block *blockrecord.Block, keepAlive bool) bool {
	size := int64(0)
	kept := false
	if keepAlive {
		size = block.SizeOnMemory()
		kept = sh.budget.reserve(ctx, sh, size)
		if !kept {
			sh.log.Debugf("height: %d  no memory for: %d bytes, writing through", block.Height, size)
		}
	}

	now := time.Now().UnixNano()

	sh.Lock()
	defer sh.Unlock()

	if sh.closed {
		if kept {
			sh.release(size)
		}
		return false
	}

	height := block.Height
	e, ok := sh.entries[height]
	if !ok {
		e = &entry{}
		sh.entries[height] = e
	}

	wasInMemory := e.inMemory()
	if !e.setBlock(block, now) {
		sh.log.Debugf("height: %d  ignored older block", height)
		if kept {
			sh.release(size)
		}
		return true
	}
	if wasInMemory {
		sh.discharge(e)
	}

	if kept {
		sh.charge(e, size)
		return true
	}

	err := sh.writeEntry(e, height)
	e.block = nil
	if nil != err {
		sh.log.Errorf("write height: %d  error: %s", height, err)
		e.written = true
		if !e.onDisk() {
			delete(sh.entries, height)
		}
		return false
	}
	return true
}

// pushTransaction - insert or replace a transaction in a stored block
func (sh *shard) pushTransaction(ctx context.Context, tx *blockrecord.Transaction, height uint64, keepAlive bool) bool {
	sh.writeLock.Lock()
	defer sh.writeLock.Unlock()

	sh.Lock()
	_, b := sh.current(height)
	if nil == b {
		sh.Unlock()
		return false
	}
	updated := b.Clone()
	sh.Unlock()

	updated.AddTransaction(tx.Clone())
	updated.Cloned = false
	updated.Updated = true
	if now := time.Now().Unix(); now > updated.LastChangeTimestamp {
		updated.LastChangeTimestamp = now
	}

	return sh.pushLocked(ctx, updated, keepAlive)
}

// delete - remove a height, a missing height is not an error
func (sh *shard) delete(height uint64) bool {
	sh.writeLock.Lock()
	defer sh.writeLock.Unlock()

	sh.Lock()
	defer sh.Unlock()

	if sh.closed {
		return false
	}

	e, ok := sh.entries[height]
	if !ok {
		return true
	}

	if e.onDisk() {
		record := packRecord(height, flagTombstone, nil)
		if _, err := sh.file.WriteAt(record, sh.fileSize); nil != err {
			sh.log.Errorf("tombstone height: %d  error: %s", height, err)
			return false
		}
		sh.fileSize += int64(len(record))
		sh.deadBytes += e.sizeOnFile + int64(len(record))
	}
	if e.inMemory() {
		sh.discharge(e)
		e.block = nil
	}
	e.deleted = true
	delete(sh.entries, height)
	return true
}

// append the entry's block to the file, shard lock must be held
func (sh *shard) writeEntry(e *entry, height uint64) error {
	payload, err := e.block.Pack()
	if nil != err {
		return err
	}
	record := packRecord(height, 0, payload)
	if _, err := sh.file.WriteAt(record, sh.fileSize); nil != err {
		return err
	}

	if e.onDisk() {
		sh.deadBytes += e.sizeOnFile
	}
	e.position = sh.fileSize
	e.sizeOnFile = int64(len(record))
	e.written = true
	e.updated = false
	sh.fileSize += int64(len(record))
	return nil
}

// memory accounting, shard lock must be held
func (sh *shard) charge(e *entry, size int64) {
	e.sizeOnMemory = size
	atomic.AddInt64(&sh.keptAlive, 1)
}

func (sh *shard) discharge(e *entry) int64 {
	size := e.sizeOnMemory
	e.sizeOnMemory = 0
	sh.release(size)
	atomic.AddInt64(&sh.keptAlive, -1)
	return size
}

func (sh *shard) release(size int64) {
	atomic.AddInt64(&sh.memory, -size)
}

// drop a block from memory, shard lock must be held
func (sh *shard) evict(e *entry) int64 {
	size := sh.discharge(e)
	e.block = nil
	return size
}

type candidate struct {
	height uint64
	e      *entry
}

// in-memory entries, least recently touched first
func (sh *shard) candidates() []candidate {
	list := make([]candidate, 0, len(sh.entries))
	for h, e := range sh.entries {
		if e.inMemory() {
			list = append(list, candidate{height: h, e: e})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		ti := list[i].e.lastTouch()
		tj := list[j].e.lastTouch()
		if ti == tj {
			return list[i].height < list[j].height
		}
		return ti < tj
	})
	return list
}

// purge - reclaim memory
//
// non-forced: evict written entries idle longer than the idle time,
// then further written entries least recently used first until amount
// bytes are freed
// forced: evict written entries least recently used first, then flush
// and evict dirty entries until amount bytes are freed
func (sh *shard) purge(ctx context.Context, force bool, amount int64, idle time.Duration) int64 {
	sh.Lock()
	defer sh.Unlock()

	if sh.closed {
		return 0
	}

	list := sh.candidates()
	freed := int64(0)

	if !force {
		cutoff := time.Now().Add(-idle).UnixNano()
		for _, c := range list {
			if c.e.written && c.e.lastTouch() < cutoff {
				freed += sh.evict(c.e)
			}
		}
		for _, c := range list {
			if freed >= amount || nil != ctx.Err() {
				break
			}
			if c.e.written && c.e.inMemory() {
				freed += sh.evict(c.e)
			}
		}
		return freed
	}

	for _, c := range list {
		if freed >= amount || nil != ctx.Err() {
			return freed
		}
		if c.e.written {
			freed += sh.evict(c.e)
		}
	}

	for _, c := range list {
		if freed >= amount || nil != ctx.Err() {
			return freed
		}
		if !c.e.inMemory() {
			continue
		}
		if err := sh.writeEntry(c.e, c.height); nil != err {
			sh.log.Errorf("flush height: %d  error: %s", c.height, err)
			continue
		}
		freed += sh.evict(c.e)
	}
	return freed
}

// flush - write all dirty entries keeping them in memory
func (sh *shard) flush(ctx context.Context) (int, error) {
	sh.Lock()
	defer sh.Unlock()

	if sh.closed {
		return 0, nil
	}
	return sh.flushLocked(ctx)
}

func (sh *shard) flushLocked(ctx context.Context) (int, error) {
	heights := make([]uint64, 0, len(sh.entries))
	for h, e := range sh.entries {
		if e.inMemory() && !e.written {
			heights = append(heights, h)
		}
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	n := 0
	var firstError error
	for _, h := range heights {
		if nil != ctx.Err() {
			return n, ctx.Err()
		}
		if err := sh.writeEntry(sh.entries[h], h); nil != err {
			sh.log.Errorf("flush height: %d  error: %s", h, err)
			if nil == firstError {
				firstError = err
			}
			continue
		}
		n += 1
	}
	if n > 0 {
		if err := sh.file.Sync(); nil != err && nil == firstError {
			firstError = err
		}
	}
	return n, firstError
}

// compact - rewrite the file keeping only live records
func (sh *shard) compact(ctx context.Context) error {
	sh.Lock()
	defer sh.Unlock()

	if sh.closed || 0 == sh.deadBytes {
		return nil
	}

	tempName := sh.fileName + ".compact"
	temp, err := os.OpenFile(tempName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if nil != err {
		return err
	}
	abort := func(err error) error {
		temp.Close()
		os.Remove(tempName)
		return err
	}

	heights := make([]uint64, 0, len(sh.entries))
	for h, e := range sh.entries {
		if e.onDisk() {
			heights = append(heights, h)
		}
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	positions := make(map[uint64]int64, len(heights))
	sizes := make(map[uint64]int64, len(heights))
	dropped := make([]uint64, 0)
	offset := int64(0)
	for _, h := range heights {
		if nil != ctx.Err() {
			return abort(ctx.Err())
		}
		e := sh.entries[h]
		header, payload, err := readRecord(sh.file, e.position, e.sizeOnFile)
		if nil != err {
			sh.log.Errorf("compact: drop height: %d  error: %s", h, err)
			dropped = append(dropped, h)
			continue
		}
		record := packRecord(header.height, header.flags, payload)
		if _, err := temp.WriteAt(record, offset); nil != err {
			return abort(err)
		}
		positions[h] = offset
		sizes[h] = int64(len(record))
		offset += int64(len(record))
	}
	if err := temp.Sync(); nil != err {
		return abort(err)
	}
	if err := os.Rename(tempName, sh.fileName); nil != err {
		return abort(err)
	}

	sh.file.Close()
	sh.file = temp

	before := sh.fileSize
	for h, p := range positions {
		e := sh.entries[h]
		e.position = p
		e.sizeOnFile = sizes[h]
	}
	for _, h := range dropped {
		e := sh.entries[h]
		e.position = 0
		e.sizeOnFile = 0
		if !e.inMemory() {
			delete(sh.entries, h)
		} else {
			e.written = false
		}
	}
	sh.fileSize = offset
	sh.deadBytes = 0

	sh.log.Infof("compacted: %d -> %d bytes", before, offset)
	return nil
}

// close - flush dirty entries and close the file
func (sh *shard) close() error {
	sh.Lock()
	defer sh.Unlock()

	if sh.closed {
		return nil
	}
	_, err := sh.flushLocked(context.Background())
	sh.closeLocked()
	return err
}

// remove - close without flushing and delete the file
func (sh *shard) remove() error {
	sh.Lock()
	defer sh.Unlock()

	sh.closeLocked()
	return os.Remove(sh.fileName)
}

func (sh *shard) closeLocked() {
	if sh.closed {
		return
	}
	if err := sh.file.Close(); nil != err {
		sh.log.Errorf("close error: %s", err)
	}
	for _, e := range sh.entries {
		if e.inMemory() {
			sh.evict(e)
		}
	}
	sh.closed = true
}

// memoryUsage - bytes held in memory and count of kept-alive entries
func (sh *shard) memoryUsage() (int64, int64) {
	return atomic.LoadInt64(&sh.memory), atomic.LoadInt64(&sh.keptAlive)
}

func (sh *shard) statistics() ShardStatistics {
	sh.Lock()
	defer sh.Unlock()

	stats := ShardStatistics{
		ID:        sh.id,
		FileName:  filepath.Base(sh.fileName),
		FileSize:  sh.fileSize,
		DeadBytes: sh.deadBytes,
	}
	for _, e := range sh.entries {
		if e.deleted {
			continue
		}
		stats.Heights += 1
		if e.inMemory() && !e.written {
			stats.Dirty += 1
		}
	}
	stats.Memory, stats.KeptAlive = sh.memoryUsage()
	return stats
}
