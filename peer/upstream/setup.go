// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/bitmark-inc/blocksync/counter"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/packet"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/blocksync/peer/reputation"
	"github.com/bitmark-inc/logger"
)

// Settings - network limits of a connection
type Settings struct {
	UniqueID               string
	ConnectTimeout         time.Duration
	ResponseTimeout        time.Duration
	MaxPacketBufferSize    int
	MaxPacketSplitSendSize int
	MaxFrameSize           int
	KeepAliveInterval      time.Duration
}

// DefaultSettings - limits used when the configuration omits them
func DefaultSettings() Settings {
	return Settings{
		ConnectTimeout:         5 * time.Second,
		ResponseTimeout:        10 * time.Second,
		MaxPacketBufferSize:    65536,
		MaxPacketSplitSendSize: 8192,
		MaxFrameSize:           64 * 1024 * 1024,
		KeepAliveInterval:      5 * time.Second,
	}
}

func (s *Settings) fill() {
	def := DefaultSettings()
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = def.ConnectTimeout
	}
	if s.ResponseTimeout <= 0 {
		s.ResponseTimeout = def.ResponseTimeout
	}
	if s.MaxPacketBufferSize <= 0 {
		s.MaxPacketBufferSize = def.MaxPacketBufferSize
	}
	if s.MaxPacketSplitSendSize <= 0 {
		s.MaxPacketSplitSendSize = def.MaxPacketSplitSendSize
	}
	if s.MaxFrameSize <= 0 {
		s.MaxFrameSize = def.MaxFrameSize
	}
	if s.KeepAliveInterval <= 0 {
		s.KeepAliveInterval = def.KeepAliveInterval
	}
}

// Upstream - a sync connection to one peer
type Upstream interface {
	ActiveInThePast(time.Duration) bool
	Destroy()
	Name() string
	PeerID() string
	PeerIP() string
	SendAndWait(context.Context, []byte, packet.ResponseOrder, bool, bool) (*packet.RecvObject, bool)
	State() State
}

// atomically incremented counter for log names
var upstreamCounter counter.Counter

// New - create a connection object for a peer in the directory
//
// nothing is dialled until the first exchange
func New(settings Settings, dir directory.Directory, tracker reputation.Tracker, peerIP string, peerID string) (Upstream, error) {
	if !dir.Contains(peerIP, peerID) {
		return nil, fault.PeerNotFound
	}

	settings.fill()

	n := upstreamCounter.Increment()
	name := fmt.Sprintf("upstream@%d", n)

	u := &upstreamData{
		log:       logger.New(name),
		name:      name,
		peerIP:    peerIP,
		peerID:    peerID,
		settings:  settings,
		dir:       dir,
		tracker:   tracker,
		framer:    packet.NewDelimiterFramer(settings.MaxFrameSize),
		exclusive: make(chan struct{}, 1),
		shutdown:  make(chan struct{}),
		state:     StateDisconnected,
	}
	u.log.Infof("peer: %s  id: %s", peerIP, peerID)
	return u, nil
}
