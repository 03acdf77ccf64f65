// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package upstream

// State - connection state
type State int

// connection states
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAwaitingResponse
	StateKeepAlive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateKeepAlive:
		return "KeepAlive"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "*unknown*"
	}
}
