// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package upstream

import (
	"context"
	"net"
	"time"

	"github.com/bitmark-inc/blocksync/packet"
)

func (u *upstreamData) startKeepAlive(conn net.Conn) {
	stop := make(chan struct{})
	done := make(chan struct{})

	u.Lock()
	if StateDestroyed == u.state {
		u.Unlock()
		return
	}
	u.keepAliveStop = stop
	u.keepAliveDone = done
	u.state = StateKeepAlive
	u.Unlock()

	go u.keepAlive(conn, stop, done)
}

// stopKeepAlive - stop the heartbeat and wait for it to exit
//
// must not hold the mutex
func (u *upstreamData) stopKeepAlive() {
	u.Lock()
	stop := u.keepAliveStop
	done := u.keepAliveDone
	u.keepAliveStop = nil
	u.keepAliveDone = nil
	if StateKeepAlive == u.state {
		u.state = StateConnected
	}
	u.Unlock()

	if nil != stop {
		close(stop)
		<-done
	}
}

// send a heartbeat at once and then every interval until stopped
func (u *upstreamData) keepAlive(conn net.Conn, stop <-chan struct{}, done chan<- struct{}) {
	log := u.log
	defer close(done)

	ticker := time.NewTicker(u.settings.KeepAliveInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	framer := packet.NewDelimiterFramer(u.settings.MaxFrameSize)

loop:
	for {
		data, err := BuildRequest(u.dir, u.settings.UniqueID, u.peerIP, u.peerID, packet.AskKeepAlive, &packet.KeepAliveRequest{
			Timestamp: time.Now().Unix(),
		})
		if nil == err {
			err = u.write(ctx, conn, framer.Encode(data))
		}
		if nil != err {
			if nil == ctx.Err() {
				log.Infof("keep alive error: %s", err)
				u.disconnect(conn)
			}
			break loop
		}

		select {
		case <-stop:
			break loop
		case <-ticker.C:
		}
	}
	log.Debug("keep alive stopped")
}
