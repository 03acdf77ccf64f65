// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"bytes"
	"crypto/sha256"

	"github.com/mr-tron/base58"

	"github.com/bitmark-inc/blocksync/fault"
)

// ChecksumLength - number of checksum bytes appended before base58 encoding
const ChecksumLength = 4

// EncodeBase58Check - append a double SHA-256 checksum and base58 encode
func EncodeBase58Check(payload []byte) string {
	buffer := make([]byte, 0, len(payload)+ChecksumLength)
	buffer = append(buffer, payload...)
	buffer = append(buffer, checksum(payload)...)
	return base58.Encode(buffer)
}

// DecodeBase58Check - base58 decode and verify the trailing checksum
func DecodeBase58Check(s string) ([]byte, error) {
	buffer, err := base58.Decode(s)
	if nil != err {
		return nil, err
	}
	if len(buffer) <= ChecksumLength {
		return nil, fault.InvalidBase58Checksum
	}

	n := len(buffer) - ChecksumLength
	payload := buffer[:n]
	if !bytes.Equal(checksum(payload), buffer[n:]) {
		return nil, fault.InvalidBase58Checksum
	}
	return payload, nil
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:ChecksumLength]
}
