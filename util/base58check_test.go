// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util_test

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/util"
)

func TestBase58CheckRoundTrip(t *testing.T) {
	items := [][]byte{
		{0x00},
		{0x01, 0x02, 0x03},
		[]byte("the quick brown fox"),
		make([]byte, 33),
	}

	for i, item := range items {
		s := util.EncodeBase58Check(item)
		payload, err := util.DecodeBase58Check(s)
		assert.Nil(t, err, "%d: decode error", i)
		assert.Equal(t, item, payload, "%d: payload mismatch", i)
	}
}

func TestBase58CheckCorrupt(t *testing.T) {
	s := util.EncodeBase58Check([]byte("payload"))
	raw, err := base58.Decode(s)
	assert.Nil(t, err, "decode error")

	raw[0] ^= 0xff
	_, err = util.DecodeBase58Check(base58.Encode(raw))
	assert.Equal(t, fault.InvalidBase58Checksum, err, "corruption not detected")
}

func TestBase58CheckShort(t *testing.T) {
	_, err := util.DecodeBase58Check(base58.Encode([]byte{1, 2, 3}))
	assert.Equal(t, fault.InvalidBase58Checksum, err, "short input accepted")

	_, err = util.DecodeBase58Check("0OIl")
	assert.NotNil(t, err, "invalid alphabet accepted")
}
