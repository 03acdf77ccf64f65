// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"github.com/ugorji/go/codec"

	"github.com/bitmark-inc/blocksync/blockrecord"
)

// content messages carried encrypted inside a packet

// HeightRequest - ask the peer for its current height
type HeightRequest struct {
	Timestamp int64 `codec:"timestamp" json:"timestamp"`
}

// HeightReply - the peer's current height and tip hash
type HeightReply struct {
	Height    uint64 `codec:"height" json:"height"`
	Hash      string `codec:"hash" json:"hash"`
	Timestamp int64  `codec:"timestamp" json:"timestamp"`
}

// BlockDataRequest - ask for a complete block
type BlockDataRequest struct {
	Height    uint64 `codec:"height" json:"height"`
	Timestamp int64  `codec:"timestamp" json:"timestamp"`
}

// BlockDataReply - a complete block
type BlockDataReply struct {
	Block     *blockrecord.Block `codec:"block" json:"block"`
	Timestamp int64              `codec:"timestamp" json:"timestamp"`
}

// TransactionRequest - ask for one transaction of a block
type TransactionRequest struct {
	Height          uint64 `codec:"height" json:"height"`
	TransactionHash string `codec:"transactionHash" json:"transactionHash"`
	Timestamp       int64  `codec:"timestamp" json:"timestamp"`
}

// TransactionReply - one transaction of a block
type TransactionReply struct {
	Height      uint64                   `codec:"height" json:"height"`
	Transaction *blockrecord.Transaction `codec:"transaction" json:"transaction"`
	Timestamp   int64                    `codec:"timestamp" json:"timestamp"`
}

// KeepAliveRequest - heartbeat on an idle connection
type KeepAliveRequest struct {
	Timestamp int64 `codec:"timestamp" json:"timestamp"`
}

var jsonHandle = newJsonHandle()

// map keys are sorted so content bytes are deterministic
func newJsonHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.Canonical = true
	return h
}

// Marshal - JSON encoding of a content message
func Marshal(message interface{}) ([]byte, error) {
	var buffer []byte
	enc := codec.NewEncoderBytes(&buffer, jsonHandle)
	if err := enc.Encode(message); nil != err {
		return nil, err
	}
	return buffer, nil
}

// Unmarshal - decode a content message into a pointer
func Unmarshal(data []byte, message interface{}) error {
	dec := codec.NewDecoderBytes(data, jsonHandle)
	return dec.Decode(message)
}
