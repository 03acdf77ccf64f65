// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package upstream

import (
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/packet"
	"github.com/bitmark-inc/blocksync/peer/directory"
)

// BuildRequest - encoded, sealed request packet for a peer
//
// the message is encrypted with the peer's stream and signed with
// this node's private key for that peer
func BuildRequest(dir directory.Directory, uniqueID string, peerIP string, peerID string, order packet.SendOrder, message interface{}) ([]byte, error) {
	r, ok := dir.Get(peerIP, peerID)
	if !ok {
		return nil, fault.PeerNotFound
	}
	stream, err := dir.Stream(peerIP, peerID)
	if nil != err {
		return nil, err
	}

	send := packet.NewSendObject(order, uniqueID, r.InternPublicKey, r.ClientLastWhitelistTimestamp)
	if err := packet.Seal(send, message, stream, r.InternPrivateKey); nil != err {
		return nil, err
	}
	return send.Encode()
}
