// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer_test

import (
	"encoding/hex"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/peer"
	"github.com/bitmark-inc/blocksync/peer/domain"
	"github.com/bitmark-inc/logger"
)

type fakeLookuper struct {
	seeds  []domain.Seed
	err    error
	domain string
}

func (l *fakeLookuper) Lookup(domainName string) ([]domain.Seed, error) {
	l.domain = domainName
	return l.seeds, l.err
}

func registerConfiguration(t *testing.T) (*peer.Configuration, identity) {
	node := newIdentity(t)
	remote := newIdentity(t)

	conf := peer.DefaultConfiguration()
	conf.UniqueID = "me"
	conf.PrivateKey = node.private
	conf.Connect = []peer.Connection{
		{
			Address:       "192.0.2.1:2136",
			UniqueID:      "one",
			PublicKey:     remote.public,
			EncryptionKey: hex.EncodeToString(testKey),
			EncryptionIV:  hex.EncodeToString(testIV),
		},
		{
			Address:       "[2001:db8::1]:2137",
			UniqueID:      "two",
			PublicKey:     remote.public,
			EncryptionKey: hex.EncodeToString(testKey[:16]),
			EncryptionIV:  hex.EncodeToString(testIV),
		},
	}
	return &conf, node
}

func TestRegisterConnections(t *testing.T) {
	store := newMemoryStore(t)
	defer store.Close()

	conf, node := registerConfiguration(t)
	n, err := peer.Register(logger.New("test"), store, conf, nil)
	assert.Nil(t, err, "register error")
	assert.Equal(t, 2, n, "wrong count")

	r, ok := store.Get("192.0.2.1", "one")
	assert.True(t, ok, "peer one missing")
	assert.Equal(t, 2136, r.Port, "wrong port")
	assert.Equal(t, node.public, r.InternPublicKey, "wrong node public key")
	assert.Equal(t, node.private, r.InternPrivateKey, "wrong node private key")
	assert.Equal(t, testKey, r.EncryptionKey, "wrong key")

	r, ok = store.Get("2001:db8::1", "two")
	assert.True(t, ok, "peer two missing")
	assert.Equal(t, "[2001:db8::1]:2137", r.Address(), "wrong address")
	assert.Equal(t, testKey[:16], r.EncryptionKey, "wrong key")
}

func TestRegisterRefreshesKeys(t *testing.T) {
	store := newMemoryStore(t)
	defer store.Close()

	conf, _ := registerConfiguration(t)
	_, err := peer.Register(logger.New("test"), store, conf, nil)
	assert.Nil(t, err, "register error")

	newKey := make([]byte, 32)
	conf.Connect[0].EncryptionKey = hex.EncodeToString(newKey)
	conf.Connect[0].Address = "192.0.2.1:3000"

	n, err := peer.Register(logger.New("test"), store, conf, nil)
	assert.Nil(t, err, "second register error")
	assert.Equal(t, 2, n, "wrong count")
	assert.Equal(t, 2, len(store.List()), "duplicate peers")

	r, _ := store.Get("192.0.2.1", "one")
	assert.Equal(t, newKey, r.EncryptionKey, "key not refreshed")
	assert.Equal(t, 3000, r.Port, "port not refreshed")
}

func TestRegisterErrors(t *testing.T) {
	items := []struct {
		modify func(*peer.Configuration)
		err    error
	}{
		{func(c *peer.Configuration) { c.PrivateKey = "bad" }, fault.InvalidBase58Checksum},
		{func(c *peer.Configuration) { c.Connect[0].Address = "no-port" }, fault.InvalidIpAddress},
		{func(c *peer.Configuration) { c.Connect[0].Address = "host.example:2136" }, fault.InvalidIpAddress},
		{func(c *peer.Configuration) { c.Connect[0].Address = "192.0.2.1:0" }, fault.InvalidPortNumber},
		{func(c *peer.Configuration) { c.Connect[0].Address = "192.0.2.1:65536" }, fault.InvalidPortNumber},
		{func(c *peer.Configuration) { c.Connect[0].UniqueID = "" }, fault.InvalidUniqueID},
		{func(c *peer.Configuration) { c.Connect[0].PublicKey = "bad" }, fault.InvalidBase58Checksum},
		{func(c *peer.Configuration) { c.Connect[0].EncryptionKey = "abcd" }, fault.InvalidKeyLength},
		{func(c *peer.Configuration) { c.Connect[0].EncryptionKey = "zz" }, fault.InvalidKeyLength},
		{func(c *peer.Configuration) { c.Connect[0].EncryptionIV = "00" }, fault.InvalidIV},
		{func(c *peer.Configuration) {
			c.Connect[0].EncryptionKey = ""
			c.Connect[0].EncryptionIV = ""
		}, fault.InvalidKeyLength},
		{func(c *peer.Configuration) { c.NetworkKey = "00" }, fault.InvalidKeyLength},
	}

	for i, item := range items {
		store := newMemoryStore(t)
		conf, _ := registerConfiguration(t)
		item.modify(conf)

		_, err := peer.Register(logger.New("test"), store, conf, nil)
		assert.Equal(t, item.err, err, "%d: wrong error", i)
		store.Close()
	}
}

func TestRegisterNetworkKey(t *testing.T) {
	store := newMemoryStore(t)
	defer store.Close()

	conf, _ := registerConfiguration(t)
	conf.NetworkKey = hex.EncodeToString(testKey)
	conf.NetworkIV = hex.EncodeToString(testIV)
	conf.Connect[0].EncryptionKey = ""
	conf.Connect[0].EncryptionIV = ""

	_, err := peer.Register(logger.New("test"), store, conf, nil)
	assert.Nil(t, err, "register error")

	r, _ := store.Get("192.0.2.1", "one")
	assert.Equal(t, testKey, r.EncryptionKey, "network key not used")
	assert.Equal(t, testIV, r.EncryptionIV, "network iv not used")
}

func TestRegisterDNSSeeds(t *testing.T) {
	store := newMemoryStore(t)
	defer store.Close()

	seedKey := newIdentity(t)
	lookuper := &fakeLookuper{
		seeds: []domain.Seed{
			{
				IPv4:      net.ParseIP("198.51.100.7"),
				Port:      2136,
				UniqueID:  "seed-one",
				PublicKey: seedKey.public,
			},
			{
				IPv6:      net.ParseIP("2001:db8::7"),
				Port:      2136,
				UniqueID:  "seed-two",
				PublicKey: seedKey.public,
			},
		},
	}

	conf, _ := registerConfiguration(t)
	conf.Connect = nil
	conf.DNSSeed = "nodes.test.example"
	conf.NetworkKey = hex.EncodeToString(testKey)
	conf.NetworkIV = hex.EncodeToString(testIV)

	n, err := peer.Register(logger.New("test"), store, conf, lookuper)
	assert.Nil(t, err, "register error")
	assert.Equal(t, 2, n, "wrong count")
	assert.Equal(t, "nodes.test.example", lookuper.domain, "wrong domain")
	assert.True(t, store.Contains("198.51.100.7", "seed-one"), "IPv4 seed missing")
	assert.True(t, store.Contains("2001:db8::7", "seed-two"), "IPv6 seed missing")
}

func TestRegisterDNSSeedsIgnored(t *testing.T) {
	store := newMemoryStore(t)
	defer store.Close()

	lookuper := &fakeLookuper{
		err: errors.New("no such host"),
	}

	conf, _ := registerConfiguration(t)
	conf.DNSSeed = "nodes.test.example"

	// no network key
	n, err := peer.Register(logger.New("test"), store, conf, lookuper)
	assert.Nil(t, err, "register error")
	assert.Equal(t, 2, n, "wrong count")
	assert.Equal(t, "", lookuper.domain, "lookup without network key")

	// lookup failure
	conf.NetworkKey = hex.EncodeToString(testKey)
	conf.NetworkIV = hex.EncodeToString(testIV)
	n, err = peer.Register(logger.New("test"), store, conf, lookuper)
	assert.Nil(t, err, "lookup failure not ignored")
	assert.Equal(t, 2, n, "wrong count")
}
