// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer - block synchronisation with other nodes
//
// client-side only:
//
// * register statically configured and DNS seeded peers in the directory
// * sealed request / response and broadcast over an upstream connection
// * synchroniser to elect a peer by its reported tip and download
//   the missing blocks into the cache
package peer
