// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockrecord

import (
	"sort"
)

// UnknownHeight - marker for "no height supplied"
const UnknownHeight = ^uint64(0)

// fixed overheads used by the memory estimate
const (
	blockOverhead       = 256
	transactionOverhead = 160
)

// Transaction - a single transaction carried by a block
type Transaction struct {
	Hash              string `codec:"hash" json:"hash"`
	BlockHeightInsert uint64 `codec:"blockHeightInsert" json:"blockHeightInsert"`
	Timestamp         int64  `codec:"timestamp" json:"timestamp"`
	Amount            uint64 `codec:"amount" json:"amount"`
	Fee               uint64 `codec:"fee" json:"fee"`
	From              string `codec:"from" json:"from"`
	To                string `codec:"to" json:"to"`
	Payload           []byte `codec:"payload" json:"payload"`
}

// Clone - deep copy of a transaction
func (tx *Transaction) Clone() *Transaction {
	if nil == tx {
		return nil
	}
	c := *tx
	if nil != tx.Payload {
		c.Payload = make([]byte, len(tx.Payload))
		copy(c.Payload, tx.Payload)
	}
	return &c
}

// SizeOnMemory - approximate number of bytes held by a transaction
func (tx *Transaction) SizeOnMemory() int64 {
	return int64(transactionOverhead + len(tx.Hash) + len(tx.From) + len(tx.To) + len(tx.Payload))
}

// Block - a block with its full transaction set
//
// the flag fields are process local state and are never persisted
type Block struct {
	Height              uint64                  `codec:"height" json:"height"`
	Hash                string                  `codec:"hash" json:"hash"`
	PreviousHash        string                  `codec:"previousHash" json:"previousHash"`
	Timestamp           int64                   `codec:"timestamp" json:"timestamp"`
	TotalTransaction    int                     `codec:"totalTransaction" json:"totalTransaction"`
	Transactions        map[string]*Transaction `codec:"transactions" json:"transactions"`
	LastChangeTimestamp int64                   `codec:"lastChangeTimestamp" json:"lastChangeTimestamp"`

	FromMemory bool `codec:"-" json:"-"`
	FromCache  bool `codec:"-" json:"-"`
	Cloned     bool `codec:"-" json:"-"`
	Updated    bool `codec:"-" json:"-"`
	Disposed   bool `codec:"-" json:"-"`
}

// New - create an empty block at a height
func New(height uint64, hash string, previousHash string, timestamp int64) *Block {
	return &Block{
		Height:              height,
		Hash:                hash,
		PreviousHash:        previousHash,
		Timestamp:           timestamp,
		Transactions:        make(map[string]*Transaction),
		LastChangeTimestamp: timestamp,
	}
}

// AddTransaction - insert or replace a transaction keeping the
// declared count in step with the collection
func (b *Block) AddTransaction(tx *Transaction) {
	if nil == b.Transactions {
		b.Transactions = make(map[string]*Transaction)
	}
	if _, ok := b.Transactions[tx.Hash]; !ok {
		b.TotalTransaction += 1
	}
	b.Transactions[tx.Hash] = tx
}

// IsComplete - true if the transaction collection matches the declared count
func (b *Block) IsComplete() bool {
	return nil != b && !b.Disposed && len(b.Transactions) == b.TotalTransaction
}

// TransactionHashes - sorted list of transaction hashes
func (b *Block) TransactionHashes() []string {
	hashes := make([]string, 0, len(b.Transactions))
	for h := range b.Transactions {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// Clone - independent deep copy of a block, flagged as cloned
func (b *Block) Clone() *Block {
	if nil == b {
		return nil
	}
	c := *b
	c.Transactions = make(map[string]*Transaction, len(b.Transactions))
	for h, tx := range b.Transactions {
		c.Transactions[h] = tx.Clone()
	}
	c.Cloned = true
	return &c
}

// Information - copy of the block header fields without transactions
func (b *Block) Information() *Block {
	if nil == b {
		return nil
	}
	c := *b
	c.Transactions = nil
	c.Cloned = true
	return &c
}

// SizeOnMemory - approximate number of bytes held by a block
func (b *Block) SizeOnMemory() int64 {
	size := int64(blockOverhead + len(b.Hash) + len(b.PreviousHash))
	for h, tx := range b.Transactions {
		size += int64(len(h)) + tx.SizeOnMemory()
	}
	return size
}
