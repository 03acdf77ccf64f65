// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"github.com/bitmark-inc/blocksync/blockrecord"
)

// entry - bookkeeping for one block height inside a shard
//
// all fields are guarded by the owning shard's lock
type entry struct {
	block        *blockrecord.Block // nil when not held in memory
	position     int64              // offset of latest record in shard file
	sizeOnFile   int64              // 0 if never written
	sizeOnMemory int64              // bytes charged to the memory budget
	lastGet      int64              // unix nanoseconds
	lastUpdate   int64              // unix nanoseconds
	written      bool               // in-memory block matches disk
	deleted      bool
	updated      bool
}

// isEmpty - true when the entry cannot serve a block from memory
//
// a transaction count mismatch makes the entry report empty rather
// than hand out partial data
func (e *entry) isEmpty() bool {
	return nil == e.block ||
		e.block.Disposed ||
		len(e.block.Transactions) != e.block.TotalTransaction ||
		e.deleted
}

// inMemory - true if the entry is charged against the memory budget
func (e *entry) inMemory() bool {
	return nil != e.block
}

// onDisk - true if a record for the entry exists in the shard file
func (e *entry) onDisk() bool {
	return e.sizeOnFile > 0
}

// lastTouch - most recent read or write
func (e *entry) lastTouch() int64 {
	if e.lastGet > e.lastUpdate {
		return e.lastGet
	}
	return e.lastUpdate
}

// setBlock - install a new value for this height
//
// values flagged as coming from memory or already cloned are copied so
// the caller keeps sole ownership of its object, otherwise the caller
// hands the object over; an older value never replaces a newer one
//
// returns false if the value was ignored
func (e *entry) setBlock(value *blockrecord.Block, now int64) bool {
	if value.Updated {
		e.updated = true
	}

	if !e.isEmpty() {
		switch {
		case value.FromMemory || value.Cloned:
			e.block = value.Clone()
		case e.block.LastChangeTimestamp <= value.LastChangeTimestamp:
			e.block = value
		default:
			return false
		}
	} else if value.FromMemory || value.FromCache || value.Cloned {
		e.block = value.Clone()
	} else {
		e.block = value
	}

	e.block.FromMemory = false
	e.block.FromCache = true
	e.block.Cloned = false
	e.block.Updated = false
	e.block.Disposed = false

	e.lastUpdate = now
	e.written = false
	e.deleted = false
	return true
}

// touch - record a read
func (e *entry) touch(now int64) {
	e.lastGet = now
}
