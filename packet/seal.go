// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/blocksync/fault"
)

// Sealer - encrypts and signs outgoing content
type Sealer interface {
	Encrypt(data []byte) []byte
	Sign(hashHex string, privateKey string) string
}

// ContentHash - SHA3-512 hex of the order number followed by the content
func ContentHash(order int, content string) string {
	digest := sha3.Sum512([]byte(strconv.Itoa(order) + content))
	return hex.EncodeToString(digest[:])
}

// Seal - encrypt a content message into a request, then hash and sign it
func Seal(send *SendObject, message interface{}, sealer Sealer, privateKey string) error {
	return seal(int(send.Order), &send.Envelope, message, sealer, privateKey)
}

// SealResponse - as Seal for a response packet
func SealResponse(recv *RecvObject, message interface{}, sealer Sealer, privateKey string) error {
	return seal(int(recv.Order), &recv.Envelope, message, sealer, privateKey)
}

func seal(order int, e *Envelope, message interface{}, sealer Sealer, privateKey string) error {
	data, err := Marshal(message)
	if nil != err {
		return err
	}

	encrypted := sealer.Encrypt(data)
	if nil == encrypted {
		return fault.EncryptFailed
	}

	e.Content = base64.StdEncoding.EncodeToString(encrypted)
	e.Hash = ContentHash(order, e.Content)
	e.Signature = sealer.Sign(e.Hash, privateKey)
	if "" == e.Signature {
		return fault.SignFailed
	}
	return nil
}
