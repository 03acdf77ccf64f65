// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package reputation - strike counting and temporary bans for misbehaving peers
package reputation

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"
)

// Tracker - records peer failures and decides on bans
type Tracker interface {
	ConnectFailure(ip string, uniqueID string)
	NoPacketConnection(ip string, uniqueID string)
	InvalidPacket(ip string, uniqueID string)
	IsBanned(ip string, uniqueID string) bool
	AllowConnect(ip string, uniqueID string) bool
}

// Configuration - limits for the tracker
type Configuration struct {
	MaxConnectFailures int     `gluamapper:"max_connect_failures" json:"max_connect_failures"`
	MaxInvalidPackets  int     `gluamapper:"max_invalid_packets" json:"max_invalid_packets"`
	BanDuration        int     `gluamapper:"ban_duration" json:"ban_duration"` // seconds
	ConnectRate        float64 `gluamapper:"connect_rate" json:"connect_rate"` // per second
	ConnectBurst       int     `gluamapper:"connect_burst" json:"connect_burst"`
}

// DefaultConfiguration - limits used when the configuration omits them
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxConnectFailures: 5,
		MaxInvalidPackets:  3,
		BanDuration:        300,
		ConnectRate:        1,
		ConnectBurst:       5,
	}
}

const (
	limiterExpiry   = 10 * time.Minute
	cleanupInterval = time.Minute

	connectStrike = "c:"
	invalidStrike = "i:"
)

type tracker struct {
	sync.Mutex

	log         *logger.L
	maxConnect  int
	maxInvalid  int
	banDuration time.Duration
	limit       rate.Limit
	burst       int

	strikes  *cache.Cache
	banned   *cache.Cache
	limiters *cache.Cache
}

// New - create a tracker, zero values in conf take the defaults
func New(conf Configuration) Tracker {
	def := DefaultConfiguration()
	if conf.MaxConnectFailures <= 0 {
		conf.MaxConnectFailures = def.MaxConnectFailures
	}
	if conf.MaxInvalidPackets <= 0 {
		conf.MaxInvalidPackets = def.MaxInvalidPackets
	}
	if conf.BanDuration <= 0 {
		conf.BanDuration = def.BanDuration
	}
	if conf.ConnectBurst <= 0 {
		conf.ConnectBurst = def.ConnectBurst
	}

	limit := rate.Inf
	if conf.ConnectRate > 0 {
		limit = rate.Limit(conf.ConnectRate)
	}

	banDuration := time.Duration(conf.BanDuration) * time.Second
	return &tracker{
		log:         logger.New("reputation"),
		maxConnect:  conf.MaxConnectFailures,
		maxInvalid:  conf.MaxInvalidPackets,
		banDuration: banDuration,
		limit:       limit,
		burst:       conf.ConnectBurst,
		strikes:     cache.New(banDuration, cleanupInterval),
		banned:      cache.New(banDuration, cleanupInterval),
		limiters:    cache.New(limiterExpiry, cleanupInterval),
	}
}

// ConnectFailure - a connection attempt failed
func (t *tracker) ConnectFailure(ip string, uniqueID string) {
	t.strike(connectStrike, ip, uniqueID, t.maxConnect)
}

// NoPacketConnection - a connection was open but a packet could not be sent
func (t *tracker) NoPacketConnection(ip string, uniqueID string) {
	t.strike(connectStrike, ip, uniqueID, t.maxConnect)
}

// InvalidPacket - the peer violated the protocol
func (t *tracker) InvalidPacket(ip string, uniqueID string) {
	t.strike(invalidStrike, ip, uniqueID, t.maxInvalid)
}

// IsBanned - true while a ban is in force
func (t *tracker) IsBanned(ip string, uniqueID string) bool {
	_, found := t.banned.Get(peerKey(ip, uniqueID))
	return found
}

// AllowConnect - false if banned or the peer's connect rate is exhausted
func (t *tracker) AllowConnect(ip string, uniqueID string) bool {
	key := peerKey(ip, uniqueID)
	if _, found := t.banned.Get(key); found {
		return false
	}

	t.Lock()
	var limiter *rate.Limiter
	if l, found := t.limiters.Get(key); found {
		limiter = l.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(t.limit, t.burst)
	}
	t.limiters.Set(key, limiter, cache.DefaultExpiration)
	t.Unlock()

	return limiter.Allow()
}

func (t *tracker) strike(kind string, ip string, uniqueID string, limit int) {
	key := peerKey(ip, uniqueID)
	strikeKey := kind + key

	t.Lock()
	defer t.Unlock()

	count := 1
	if _, found := t.strikes.Get(strikeKey); found {
		n, err := t.strikes.IncrementInt(strikeKey, 1)
		if nil == err {
			count = n
		}
	} else {
		t.strikes.Set(strikeKey, count, cache.DefaultExpiration)
	}

	t.log.Debugf("peer: %s  strike: %s  count: %d", key, kind, count)

	if count >= limit {
		t.log.Warnf("ban peer: %s  for: %s", key, t.banDuration)
		t.banned.Set(key, count, cache.DefaultExpiration)
		t.strikes.Delete(connectStrike + key)
		t.strikes.Delete(invalidStrike + key)
	}
}

func peerKey(ip string, uniqueID string) string {
	return ip + "/" + uniqueID
}
