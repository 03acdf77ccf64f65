// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"github.com/ugorji/go/codec"

	"github.com/bitmark-inc/blocksync/fault"
)

// PackedBlock - packed records are just a byte slice
type PackedBlock []byte

var msgpackHandle = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	h.Canonical = true
	return h
}

// Pack - turn a block into bytes
func (b *Block) Pack() (PackedBlock, error) {
	var buffer []byte
	enc := codec.NewEncoderBytes(&buffer, msgpackHandle)
	if err := enc.Encode(b); nil != err {
		return nil, err
	}
	return buffer, nil
}

// Unpack - turn bytes back into a block
//
// the result is marked as coming from the cache
func (record PackedBlock) Unpack() (*Block, error) {
	if 0 == len(record) {
		return nil, fault.CorruptRecord
	}

	b := &Block{}
	dec := codec.NewDecoderBytes(record, msgpackHandle)
	if err := dec.Decode(b); nil != err {
		return nil, err
	}
	if nil == b.Transactions {
		b.Transactions = make(map[string]*Transaction)
	}
	b.FromCache = true
	return b, nil
}
