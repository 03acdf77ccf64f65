// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/bitmark-inc/blocksync/cryptostream"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/packet"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/blocksync/peer/upstream"
)

// Client - one exchange with a peer, upstream.Upstream satisfies this
type Client interface {
	SendAndWait(ctx context.Context, data []byte, expected packet.ResponseOrder, keepAlive bool, broadcast bool) (*packet.RecvObject, bool)
}

// Node - this node's identity and trust policy
type Node struct {
	UniqueID string

	// signatures are not checked while the peer's whitelist
	// timestamp is younger than this, zero always checks
	WhitelistWindow time.Duration

	// leave the connection open after a successful exchange
	KeepAlive bool
}

// Request - send a content message and decode the peer's reply into response
func Request(ctx context.Context, client Client, dir directory.Directory, node Node, peerIP string, peerID string, order packet.SendOrder, request interface{}, expected packet.ResponseOrder, response interface{}) error {
	data, err := upstream.BuildRequest(dir, node.UniqueID, peerIP, peerID, order, request)
	if nil != err {
		return err
	}

	recv, ok := client.SendAndWait(ctx, data, expected, node.KeepAlive, false)
	if !ok || nil == recv {
		return fault.ConnectionFailed
	}

	return open(dir, node, peerIP, peerID, recv, response, time.Now())
}

// Broadcast - send a content message without waiting for a reply
func Broadcast(ctx context.Context, client Client, dir directory.Directory, node Node, peerIP string, peerID string, order packet.SendOrder, request interface{}) error {
	data, err := upstream.BuildRequest(dir, node.UniqueID, peerIP, peerID, order, request)
	if nil != err {
		return err
	}

	if _, ok := client.SendAndWait(ctx, data, packet.InvalidPacket, node.KeepAlive, true); !ok {
		return fault.ConnectionFailed
	}
	return nil
}

// check, decrypt and decode a received packet
func open(dir directory.Directory, node Node, peerIP string, peerID string, recv *packet.RecvObject, response interface{}, now time.Time) error {
	record, ok := dir.Get(peerIP, peerID)
	if !ok {
		return fault.PeerNotFound
	}
	stream, err := dir.Stream(peerIP, peerID)
	if nil != err {
		return err
	}

	if packet.ContentHash(int(recv.Order), recv.Content) != recv.Hash {
		return fault.InvalidPeerResponse
	}

	verified := false
	if !whitelisted(record, node.WhitelistWindow, now) {
		if !stream.Verify(recv.Hash, recv.Signature, record.PublicKey) {
			return fault.InvalidSignature
		}
		verified = true
	}

	encrypted, err := base64.StdEncoding.DecodeString(recv.Content)
	if nil != err {
		return fault.InvalidPeerResponse
	}

	plain, ok := stream.Decrypt(encrypted)
	if !ok {
		plain, ok = cryptostream.DecryptRaw(encrypted, record.EncryptionKey, record.EncryptionIV)
	}
	if !ok {
		return fault.DecryptFailed
	}

	if err := packet.Unmarshal(plain, response); nil != err {
		return fault.InvalidPeerResponse
	}

	// the whitelist timestamp is not signed, only a verified response may move it
	if verified && recv.LastWhitelistTimestamp != record.TimestampSignatureWhitelist {
		_ = dir.Update(peerIP, peerID, func(r *directory.Record) {
			r.TimestampSignatureWhitelist = recv.LastWhitelistTimestamp
		})
	}
	return nil
}

// whitelisted - peer's last whitelist timestamp is within the window
func whitelisted(r directory.Record, window time.Duration, now time.Time) bool {
	if window <= 0 || 0 == r.TimestampSignatureWhitelist {
		return false
	}
	age := now.Sub(time.Unix(r.TimestampSignatureWhitelist, 0))
	return age >= 0 && age < window
}
