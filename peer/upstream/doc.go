// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package upstream - maintain a TCP sync connection to one peer
//
// each exchange is one framed request and at most one framed
// response, exchanges on one connection never overlap
//
// states:
//
//   Disconnected -> Connecting -> Connected -> AwaitingResponse -> KeepAlive
//                                                              \-> Disconnected
//
// any state can move to Destroyed which is terminal
package upstream
