// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package upstream

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/packet"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/blocksync/peer/reputation"
	"github.com/bitmark-inc/logger"
)

const (
	probeTimeout   = time.Millisecond
	maxProbeReads  = 16
	probeReadBytes = 4096
)

type upstreamData struct {
	sync.Mutex

	log      *logger.L
	name     string
	peerIP   string
	peerID   string
	settings Settings
	dir      directory.Directory
	tracker  reputation.Tracker

	// only touched while holding exclusive
	framer packet.Framer

	// binary semaphore, one exchange in flight
	exclusive chan struct{}
	shutdown  chan struct{}

	// protected by the mutex
	conn             net.Conn
	state            State
	keepAliveStop    chan struct{}
	keepAliveDone    chan struct{}
	lastResponseTime time.Time
}

type receiveResult struct {
	packet   *packet.RecvObject
	received bool
	err      error
}

// Name - upstream name
func (u *upstreamData) Name() string {
	return u.name
}

// PeerIP - address of the peer in the directory
func (u *upstreamData) PeerIP() string {
	return u.peerIP
}

// PeerID - unique id of the peer
func (u *upstreamData) PeerID() string {
	return u.peerID
}

// State - current connection state
func (u *upstreamData) State() State {
	u.Lock()
	defer u.Unlock()
	return u.state
}

// ActiveInThePast - true if a valid response arrived within the duration
func (u *upstreamData) ActiveInThePast(d time.Duration) bool {
	u.Lock()
	last := u.lastResponseTime
	u.Unlock()

	active := time.Since(last) < d
	u.log.Debugf("active: %t, last response time %s", active, last.Format("2006-01-02, 15:04:05 -0700"))
	return active
}

// Destroy - close the connection and stop its background work
//
// an exchange in progress fails, later exchanges fail immediately
func (u *upstreamData) Destroy() {
	if nil == u {
		return
	}

	u.Lock()
	if StateDestroyed == u.state {
		u.Unlock()
		return
	}
	u.state = StateDestroyed
	close(u.shutdown)
	if nil != u.conn {
		u.conn.Close()
		u.conn = nil
	}
	u.Unlock()

	u.stopKeepAlive()
	u.log.Info("destroyed")
}

// SendAndWait - send one packet and optionally wait for its response
//
// data is an encoded request packet. With broadcast the call returns
// once the frame is written. Otherwise it waits for one response
// frame, a response whose order is not expected counts as invalid and
// gives no response. With keepAlive a successful exchange leaves the
// connection open with a heartbeat, otherwise it is closed.
func (u *upstreamData) SendAndWait(ctx context.Context, data []byte, expected packet.ResponseOrder, keepAlive bool, broadcast bool) (*packet.RecvObject, bool) {
	log := u.log

	select {
	case u.exclusive <- struct{}{}:
	case <-u.shutdown:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
	defer func() { <-u.exclusive }()

	if u.isDestroyed() {
		return nil, false
	}

	u.stopKeepAlive()
	u.framer.Reset()

	conn := u.currentConnection()
	if nil != conn && !u.probe(conn) {
		log.Debug("connection lost")
		u.disconnect(conn)
		conn = nil
	}

	if nil == conn {
		var ok bool
		conn, ok = u.connect(ctx)
		if !ok {
			return nil, false
		}
	}

	frame := u.framer.Encode(data)
	if err := u.write(ctx, conn, frame); nil != err {
		log.Warnf("send: %d bytes  error: %s", len(frame), err)
		if nil == ctx.Err() {
			u.tracker.NoPacketConnection(u.peerIP, u.peerID)
		}
		u.disconnect(conn)
		return nil, false
	}

	if broadcast {
		if keepAlive {
			u.startKeepAlive(conn)
		} else {
			u.setState(StateConnected)
		}
		return nil, true
	}

	u.setState(StateAwaitingResponse)

	done := make(chan receiveResult, 1)
	go u.listen(conn, expected, done)

	var result receiveResult
	select {
	case result = <-done:
	case <-ctx.Done():
		_ = conn.SetReadDeadline(time.Now())
		result = <-done
		result.packet = nil
		result.err = ctx.Err()
	case <-u.shutdown:
		result = <-done
		result.packet = nil
		result.err = fault.ConnectionFailed
	}

	if result.received {
		u.markReceived()
	}

	if nil != result.err {
		if fault.IsErrInvalid(result.err) {
			log.Warnf("invalid response: %s", result.err)
			u.tracker.InvalidPacket(u.peerIP, u.peerID)
		} else {
			log.Infof("no response: %s", result.err)
		}
		u.disconnect(conn)
		return nil, false
	}

	u.Lock()
	u.lastResponseTime = time.Now()
	u.Unlock()

	if keepAlive {
		u.startKeepAlive(conn)
	} else {
		u.disconnect(conn)
	}
	return result.packet, true
}

// read until one frame completes, the deadline restarts on every chunk
func (u *upstreamData) listen(conn net.Conn, expected packet.ResponseOrder, done chan<- receiveResult) {
	buffer := make([]byte, u.settings.MaxPacketBufferSize)
	result := receiveResult{}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(u.settings.ResponseTimeout))
		n, err := conn.Read(buffer)
		if n > 0 {
			result.received = true

			frames, ferr := u.framer.Feed(buffer[:n])
			if nil != ferr {
				result.err = ferr
				break
			}
			if len(frames) > 0 {
				p, derr := packet.DecodeRecv(frames[0])
				if nil != derr {
					result.err = derr
				} else if expected != p.Order {
					u.log.Warnf("expected: %s  received: %s", expected, p.Order)
					result.err = fault.InvalidPacketOrder
				} else {
					result.packet = p
				}
				break
			}
		}
		if nil != err {
			result.err = err
			break
		}
	}

	_ = conn.SetReadDeadline(time.Time{})
	done <- result
}

// record the arrival time, the whitelist timestamp is left to the
// caller that verifies the response signature
func (u *upstreamData) markReceived() {
	now := time.Now().Unix()
	err := u.dir.Update(u.peerIP, u.peerID, func(r *directory.Record) {
		r.LastPacketReceived = now
	})
	if nil != err {
		u.log.Debugf("directory update error: %s", err)
	}
}

func (u *upstreamData) connect(ctx context.Context) (net.Conn, bool) {
	log := u.log

	if !u.tracker.AllowConnect(u.peerIP, u.peerID) {
		log.Debug("connect not allowed")
		return nil, false
	}

	r, ok := u.dir.Get(u.peerIP, u.peerID)
	if !ok {
		log.Warn("peer not in directory")
		return nil, false
	}

	u.setState(StateConnecting)

	dialer := net.Dialer{
		Timeout: u.settings.ConnectTimeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", r.Address())
	if nil != err {
		log.Infof("connect to: %s  error: %s", r.Address(), err)
		if nil == ctx.Err() {
			u.tracker.ConnectFailure(u.peerIP, u.peerID)
		}
		u.setState(StateDisconnected)
		return nil, false
	}

	u.Lock()
	if StateDestroyed == u.state {
		u.Unlock()
		conn.Close()
		return nil, false
	}
	u.conn = conn
	u.state = StateConnected
	u.Unlock()

	log.Infof("connected to: %s", r.Address())
	return conn, true
}

// write a frame in chunks of at most the split size
func (u *upstreamData) write(ctx context.Context, conn net.Conn, frame []byte) error {
	size := u.settings.MaxPacketSplitSendSize
	for start := 0; start < len(frame); start += size {
		if err := ctx.Err(); nil != err {
			return err
		}
		end := start + size
		if end > len(frame) {
			end = len(frame)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(u.settings.ResponseTimeout))
		if _, err := conn.Write(frame[start:end]); nil != err {
			return err
		}
	}
	_ = conn.SetWriteDeadline(time.Time{})
	return nil
}

// probe - check an idle connection is still open
//
// stray bytes from the peer are drained and discarded
func (u *upstreamData) probe(conn net.Conn) bool {
	buffer := make([]byte, probeReadBytes)
	defer conn.SetReadDeadline(time.Time{})

	for i := 0; i < maxProbeReads; i += 1 {
		_ = conn.SetReadDeadline(time.Now().Add(probeTimeout))
		n, err := conn.Read(buffer)
		if n > 0 {
			u.log.Debugf("drained: %d stray bytes", n)
		}
		if nil != err {
			if e, ok := err.(net.Error); ok && e.Timeout() {
				return true
			}
			return false
		}
	}
	return true
}

func (u *upstreamData) currentConnection() net.Conn {
	u.Lock()
	defer u.Unlock()
	return u.conn
}

// disconnect - close conn if it is still the current connection
func (u *upstreamData) disconnect(conn net.Conn) {
	u.Lock()
	defer u.Unlock()

	if nil != conn {
		conn.Close()
	}
	if conn == u.conn {
		u.conn = nil
	}
	if StateDestroyed != u.state {
		u.state = StateDisconnected
	}
}

func (u *upstreamData) setState(state State) {
	u.Lock()
	defer u.Unlock()
	if StateDestroyed != u.state {
		u.state = state
	}
}

func (u *upstreamData) isDestroyed() bool {
	u.Lock()
	defer u.Unlock()
	return StateDestroyed == u.state
}
