// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/bitmark-inc/blocksync/fault"
)

const recordMagic = uint32(0x494f424b) // "IOBK"

// record flags
const (
	flagTombstone = byte(0x01)
)

// byte sizes for various fields
const (
	magicSize    = 4
	flagsSize    = 1
	heightSize   = 8
	lengthSize   = 4
	checksumSize = 4
)

// offsets of the fields
const (
	magicOffset    = 0
	flagsOffset    = magicOffset + magicSize
	heightOffset   = flagsOffset + flagsSize
	lengthOffset   = heightOffset + heightSize
	checksumOffset = lengthOffset + lengthSize

	headerSize = checksumOffset + checksumSize
)

// upper bound on a single payload, anything larger is treated as corruption
const maxPayloadSize = 256 * 1024 * 1024

type recordHeader struct {
	flags    byte
	height   uint64
	length   uint32
	checksum uint32
}

func (h recordHeader) isTombstone() bool {
	return 0 != h.flags&flagTombstone
}

// total bytes occupied on disk
func (h recordHeader) size() int64 {
	return int64(headerSize) + int64(h.length)
}

// turn a payload into a complete record
func packRecord(height uint64, flags byte, payload []byte) []byte {
	buffer := make([]byte, headerSize+len(payload))

	binary.BigEndian.PutUint32(buffer[magicOffset:], recordMagic)
	buffer[flagsOffset] = flags
	binary.BigEndian.PutUint64(buffer[heightOffset:], height)
	binary.BigEndian.PutUint32(buffer[lengthOffset:], uint32(len(payload)))
	binary.BigEndian.PutUint32(buffer[checksumOffset:], crc32.ChecksumIEEE(payload))
	copy(buffer[headerSize:], payload)

	return buffer
}

// extract a header from the front of a []byte
func unpackHeader(buffer []byte) (recordHeader, error) {
	if len(buffer) < headerSize {
		return recordHeader{}, fault.CorruptRecord
	}
	if recordMagic != binary.BigEndian.Uint32(buffer[magicOffset:]) {
		return recordHeader{}, fault.CorruptRecord
	}

	h := recordHeader{
		flags:    buffer[flagsOffset],
		height:   binary.BigEndian.Uint64(buffer[heightOffset:]),
		length:   binary.BigEndian.Uint32(buffer[lengthOffset:]),
		checksum: binary.BigEndian.Uint32(buffer[checksumOffset:]),
	}
	if h.length > maxPayloadSize {
		return recordHeader{}, fault.CorruptRecord
	}
	return h, nil
}

// read one complete record and verify its checksum
func readRecord(r io.ReaderAt, position int64, size int64) (recordHeader, []byte, error) {
	if size < headerSize {
		return recordHeader{}, nil, fault.CorruptRecord
	}

	buffer := make([]byte, size)
	if _, err := r.ReadAt(buffer, position); nil != err {
		return recordHeader{}, nil, err
	}

	h, err := unpackHeader(buffer)
	if nil != err {
		return recordHeader{}, nil, err
	}
	if h.size() != size {
		return recordHeader{}, nil, fault.CorruptRecord
	}

	payload := buffer[headerSize:]
	if crc32.ChecksumIEEE(payload) != h.checksum {
		return recordHeader{}, nil, fault.CorruptRecord
	}
	return h, payload, nil
}

// a torn first write leaves the file starting with a prefix of the magic
func startsWithMagic(r io.ReaderAt, fileSize int64) bool {
	n := int64(magicSize)
	if fileSize < n {
		n = fileSize
	}
	if n <= 0 {
		return false
	}

	buffer := make([]byte, n)
	if _, err := r.ReadAt(buffer, 0); nil != err {
		return false
	}

	magic := make([]byte, magicSize)
	binary.BigEndian.PutUint32(magic, recordMagic)
	return bytes.Equal(buffer, magic[:n])
}

// walk the headers of a file calling fn for each complete record
//
// returns the offset just past the last complete record, anything
// beyond that offset is a truncated or corrupt tail
func scanRecords(r io.ReaderAt, fileSize int64, fn func(position int64, h recordHeader)) (int64, error) {
	position := int64(0)
	buffer := make([]byte, headerSize)

	for position+headerSize <= fileSize {
		if _, err := r.ReadAt(buffer, position); nil != err {
			return position, err
		}
		h, err := unpackHeader(buffer)
		if nil != err {
			return position, err
		}
		if position+h.size() > fileSize {
			return position, fault.CorruptRecord
		}
		fn(position, h)
		position += h.size()
	}

	if position != fileSize {
		return position, fault.CorruptRecord
	}
	return position, nil
}
