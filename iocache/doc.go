// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package iocache - sharded on-disk block store with a memory bounded
// working set
//
// blocks are assigned to shard files by integer division of their
// height by the configured blocks per file, each shard is a file
// named "<shard-id>.ioblock" containing an append-only sequence of
// records:
//
//   magic     4 bytes  "IOBK"
//   flags     1 byte   bit 0 = tombstone
//   height    8 bytes  big endian
//   length    4 bytes  big endian payload length
//   checksum  4 bytes  CRC-32 (IEEE) of payload
//   payload   length bytes of msgpack encoded block
//
// the last record for a height wins, a tombstone removes the height
//
// Locking order (never acquire in reverse):
//
//   shard.writeLock -> System.memoryLock -> System (map) -> shard (entries)
//
// the shard entry lock is only held for short sections that never
// wait on any other lock, so readers and the evictor can always make
// progress
package iocache
