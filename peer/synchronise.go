// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"sync"
	"time"

	"github.com/bitmark-inc/blocksync/blockrecord"
	"github.com/bitmark-inc/blocksync/counter"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/packet"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/blocksync/peer/reputation"
	"github.com/bitmark-inc/blocksync/peer/upstream"
	"github.com/bitmark-inc/blocksync/peer/voting"
	"github.com/bitmark-inc/logger"
)

// BlockCache - the part of the cache the synchroniser writes to
type BlockCache interface {
	ContainsHeight(height uint64) bool
	PushOrUpdateBlock(ctx context.Context, block *blockrecord.Block, keepAlive bool) bool
}

// ClientFactory - create the client for a peer
type ClientFactory func(peerIP string, peerID string) (Client, error)

// Synchroniser - background process downloading missing blocks
//
// each round asks every peer for its tip, elects the tip most peers
// agree on and fetches missing heights from the elected peer
type Synchroniser struct {
	sync.Mutex

	log      *logger.L
	cache    BlockCache
	dir      directory.Directory
	tracker  reputation.Tracker
	node     Node
	interval time.Duration
	batch    int
	factory  ClientFactory
	votes    voting.Voting

	clients map[string]Client

	// all heights below this are present in the cache
	next uint64

	// blocks stored since start
	fetched counter.Counter
}

// NewSynchroniser - create a synchroniser using upstream connections
func NewSynchroniser(conf SynchroniseConfiguration, cache BlockCache, dir directory.Directory, tracker reputation.Tracker, node Node, settings upstream.Settings) *Synchroniser {
	factory := func(peerIP string, peerID string) (Client, error) {
		return upstream.New(settings, dir, tracker, peerIP, peerID)
	}
	return NewSynchroniserWithFactory(conf, cache, dir, tracker, node, factory)
}

// NewSynchroniserWithFactory - create a synchroniser with custom clients
func NewSynchroniserWithFactory(conf SynchroniseConfiguration, cache BlockCache, dir directory.Directory, tracker reputation.Tracker, node Node, factory ClientFactory) *Synchroniser {
	return &Synchroniser{
		log:      logger.New("synchroniser"),
		cache:    cache,
		dir:      dir,
		tracker:  tracker,
		node:     node,
		interval: conf.interval(),
		batch:    conf.batch(),
		factory:  factory,
		votes:    voting.NewVoting(conf.MinimumVotes),
		clients:  make(map[string]Client),
	}
}

// Run - synchronise now and then on every interval until shutdown
func (s *Synchroniser) Run(args interface{}, shutdown <-chan struct{}) {
	log := s.log

	log.Info("starting…")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

loop:
	for {
		n := s.Synchronise(ctx)
		log.Infof("fetched: %d blocks  total: %d", n, s.Fetched())

		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
		}
	}

	s.closeClients()
	log.Info("stopped")
}

// Synchronise - one round of election and download
//
// returns the number of blocks stored
func (s *Synchroniser) Synchronise(ctx context.Context) int {
	s.Lock()
	defer s.Unlock()

	log := s.log

	s.advance()

	s.votes.Reset()
	s.votes.SetMinHeight(s.next)

	for _, r := range s.dir.List() {
		if nil != ctx.Err() {
			return 0
		}
		if s.tracker.IsBanned(r.IP, r.UniqueID) {
			log.Debugf("skip banned peer: %s  id: %s", r.Address(), r.UniqueID)
			continue
		}
		info, ok := s.height(ctx, r.IP, r.UniqueID)
		if !ok {
			continue
		}
		s.votes.VoteBy(voting.Candidate{
			PeerIP: r.IP,
			PeerID: r.UniqueID,
			Height: info.Height,
			Hash:   info.Hash,
		})
	}

	elected, err := s.votes.ElectedCandidate()
	if nil != err {
		log.Infof("no candidate: %s", err)
		return 0
	}

	log.Infof("elected peer: %s  id: %s  height: %d", elected.PeerIP, elected.PeerID, elected.Height)

	n := s.fetch(ctx, elected)
	s.fetched.Add(uint64(n))
	s.advance()
	return n
}

// Fetched - number of blocks stored since start
func (s *Synchroniser) Fetched() uint64 {
	return s.fetched.Uint64()
}

// height - ask a peer for its tip
func (s *Synchroniser) height(ctx context.Context, peerIP string, peerID string) (*packet.HeightReply, bool) {
	client, err := s.client(peerIP, peerID)
	if nil != err {
		s.log.Errorf("peer: %s  id: %s  client error: %s", peerIP, peerID, err)
		return nil, false
	}

	var info packet.HeightReply
	err = Request(ctx, client, s.dir, s.node, peerIP, peerID, packet.AskBlockHeightInformation, &packet.HeightRequest{
		Timestamp: time.Now().Unix(),
	}, packet.SendBlockHeightInformation, &info)
	if nil != err {
		s.failed(peerIP, peerID, "height", err)
		return nil, false
	}

	s.log.Debugf("peer: %s  id: %s  height: %d", peerIP, peerID, info.Height)
	return &info, true
}

// fetch - download up to a batch of missing heights from a peer
func (s *Synchroniser) fetch(ctx context.Context, c voting.Candidate) int {
	log := s.log

	client, err := s.client(c.PeerIP, c.PeerID)
	if nil != err {
		return 0
	}

	count := 0
	for h := s.next; h <= c.Height && count < s.batch; h += 1 {
		if nil != ctx.Err() {
			break
		}
		if s.cache.ContainsHeight(h) {
			continue
		}

		var data packet.BlockDataReply
		err := Request(ctx, client, s.dir, s.node, c.PeerIP, c.PeerID, packet.AskBlockData, &packet.BlockDataRequest{
			Height:    h,
			Timestamp: time.Now().Unix(),
		}, packet.SendBlockData, &data)
		if nil != err {
			s.failed(c.PeerIP, c.PeerID, "block", err)
			break
		}

		if nil == data.Block || h != data.Block.Height || !data.Block.IsComplete() {
			log.Warnf("peer: %s  id: %s  bad block for height: %d", c.PeerIP, c.PeerID, h)
			s.tracker.InvalidPacket(c.PeerIP, c.PeerID)
			break
		}

		if !s.cache.PushOrUpdateBlock(ctx, data.Block, false) {
			log.Errorf("store block: %d failed", h)
			break
		}
		count += 1
	}
	return count
}

// advance next past heights already in the cache
func (s *Synchroniser) advance() {
	for s.cache.ContainsHeight(s.next) {
		s.next += 1
	}
}

// failed - log a request error, protocol violations count against the peer
func (s *Synchroniser) failed(peerIP string, peerID string, what string, err error) {
	s.log.Warnf("peer: %s  id: %s  %s request error: %s", peerIP, peerID, what, err)
	if fault.IsErrInvalid(err) || fault.DecryptFailed == err {
		s.tracker.InvalidPacket(peerIP, peerID)
	}
}

func (s *Synchroniser) client(peerIP string, peerID string) (Client, error) {
	key := peerIP + "/" + peerID
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	c, err := s.factory(peerIP, peerID)
	if nil != err {
		return nil, err
	}
	s.clients[key] = c
	return c, nil
}

// destroy every upstream connection
func (s *Synchroniser) closeClients() {
	s.Lock()
	defer s.Unlock()

	for key, c := range s.clients {
		if d, ok := c.(interface{ Destroy() }); ok {
			d.Destroy()
		}
		delete(s.clients, key)
	}
}
