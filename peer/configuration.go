// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"time"

	"github.com/bitmark-inc/blocksync/peer/upstream"
)

// defaults, times in milliseconds unless noted
const (
	DefaultConnectTimeout         = 5000
	DefaultResponseTimeout        = 10000
	DefaultMaxPacketBufferSize    = 65536
	DefaultMaxPacketSplitSendSize = 8192
	DefaultMaxFrameSize           = 64 * 1024 * 1024
	DefaultKeepAliveInterval      = 5000
	DefaultSynchroniseInterval    = 60 // seconds
	DefaultSynchroniseBatch       = 100
	DefaultMinimumVotes           = 1
)

// Connection - a statically configured peer
//
// keys are hex, empty means use the network key
type Connection struct {
	Address       string `gluamapper:"address" json:"address"`
	UniqueID      string `gluamapper:"unique_id" json:"unique_id"`
	PublicKey     string `gluamapper:"public_key" json:"public_key"`
	EncryptionKey string `gluamapper:"encryption_key" json:"encryption_key"`
	EncryptionIV  string `gluamapper:"encryption_iv" json:"encryption_iv"`
}

// Configuration - the peering section of the configuration file
type Configuration struct {
	UniqueID               string       `gluamapper:"unique_id" json:"unique_id"`
	PrivateKey             string       `gluamapper:"private_key" json:"private_key"`
	ConnectTimeout         int          `gluamapper:"connect_timeout" json:"connect_timeout"`
	ResponseTimeout        int          `gluamapper:"response_timeout" json:"response_timeout"`
	MaxPacketBufferSize    int          `gluamapper:"max_packet_buffer_size" json:"max_packet_buffer_size"`
	MaxPacketSplitSendSize int          `gluamapper:"max_packet_split_send_size" json:"max_packet_split_send_size"`
	MaxFrameSize           int          `gluamapper:"max_frame_size" json:"max_frame_size"`
	KeepAlive              bool         `gluamapper:"keep_alive" json:"keep_alive"`
	KeepAliveInterval      int          `gluamapper:"keep_alive_interval" json:"keep_alive_interval"`
	WhitelistWindow        int          `gluamapper:"whitelist_window" json:"whitelist_window"`
	NetworkKey             string       `gluamapper:"network_key" json:"network_key"`
	NetworkIV              string       `gluamapper:"network_iv" json:"network_iv"`
	Connect                []Connection `gluamapper:"connect" json:"connect"`
	DNSSeed                string       `gluamapper:"dns_seed" json:"dns_seed"`
}

// SynchroniseConfiguration - block download schedule
type SynchroniseConfiguration struct {
	Interval     int `gluamapper:"interval" json:"interval"`
	Batch        int `gluamapper:"batch" json:"batch"`
	MinimumVotes int `gluamapper:"minimum_votes" json:"minimum_votes"`
}

// DefaultConfiguration - peering values used when the file omits them
func DefaultConfiguration() Configuration {
	return Configuration{
		ConnectTimeout:         DefaultConnectTimeout,
		ResponseTimeout:        DefaultResponseTimeout,
		MaxPacketBufferSize:    DefaultMaxPacketBufferSize,
		MaxPacketSplitSendSize: DefaultMaxPacketSplitSendSize,
		MaxFrameSize:           DefaultMaxFrameSize,
		KeepAliveInterval:      DefaultKeepAliveInterval,
		Connect:                []Connection{},
	}
}

// DefaultSynchroniseConfiguration - schedule used when the file omits it
func DefaultSynchroniseConfiguration() SynchroniseConfiguration {
	return SynchroniseConfiguration{
		Interval:     DefaultSynchroniseInterval,
		Batch:        DefaultSynchroniseBatch,
		MinimumVotes: DefaultMinimumVotes,
	}
}

// Settings - connection limits for the upstream package
func (conf *Configuration) Settings() upstream.Settings {
	return upstream.Settings{
		UniqueID:               conf.UniqueID,
		ConnectTimeout:         time.Duration(conf.ConnectTimeout) * time.Millisecond,
		ResponseTimeout:        time.Duration(conf.ResponseTimeout) * time.Millisecond,
		MaxPacketBufferSize:    conf.MaxPacketBufferSize,
		MaxPacketSplitSendSize: conf.MaxPacketSplitSendSize,
		MaxFrameSize:           conf.MaxFrameSize,
		KeepAliveInterval:      time.Duration(conf.KeepAliveInterval) * time.Millisecond,
	}
}

// Node - this node's identity and trust policy
func (conf *Configuration) Node() Node {
	return Node{
		UniqueID:        conf.UniqueID,
		WhitelistWindow: time.Duration(conf.WhitelistWindow) * time.Second,
		KeepAlive:       conf.KeepAlive,
	}
}

func (conf *SynchroniseConfiguration) interval() time.Duration {
	if conf.Interval <= 0 {
		return DefaultSynchroniseInterval * time.Second
	}
	return time.Duration(conf.Interval) * time.Second
}

func (conf *SynchroniseConfiguration) batch() int {
	if conf.Batch <= 0 {
		return DefaultSynchroniseBatch
	}
	return conf.Batch
}
