// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package packet - peer sync packets and their wire framing
//
// a packet record is seven fields joined by '#':
//
//   order # content # hash # signature # unique-id # public-key # whitelist-timestamp
//
// content is base64 of the encrypted JSON message, hash is the
// SHA3-512 hex of the order number and content, signature is base64
// DER over the hash bytes
//
// on the wire each record is base64 encoded and terminated by '*'
package packet
