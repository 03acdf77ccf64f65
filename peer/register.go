// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"encoding/hex"
	"net"
	"strconv"

	"github.com/bitmark-inc/blocksync/cryptostream"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/blocksync/peer/domain"
	"github.com/bitmark-inc/logger"
)

// Registry - a directory that accepts new peers
type Registry interface {
	directory.Directory
	Add(directory.Record) error
}

type sessionKeys struct {
	publicKey  string
	privateKey string
	key        []byte
	iv         []byte
}

// Register - enter the configured and DNS seeded peers into the registry
//
// existing peers have their keys refreshed, returns the number of
// peers processed
func Register(log *logger.L, registry Registry, conf *Configuration, lookuper domain.Lookuper) (int, error) {
	publicKey, err := cryptostream.PublicKeyFor(conf.PrivateKey)
	if nil != err {
		return 0, err
	}

	networkKey, networkIV, err := decodeKeys(conf.NetworkKey, conf.NetworkIV)
	if nil != err {
		return 0, err
	}

	count := 0
	for i, c := range conf.Connect {
		ip, port, err := splitAddress(c.Address)
		if nil != err {
			log.Errorf("connect[%d]: %q  error: %s", i, c.Address, err)
			return count, err
		}
		if "" == c.UniqueID {
			log.Errorf("connect[%d]: %q  missing unique id", i, c.Address)
			return count, fault.InvalidUniqueID
		}
		if _, err := cryptostream.ParsePublicKey(c.PublicKey); nil != err {
			log.Errorf("connect[%d]: %q  error: %s", i, c.Address, err)
			return count, err
		}

		keys := sessionKeys{
			publicKey:  publicKey,
			privateKey: conf.PrivateKey,
			key:        networkKey,
			iv:         networkIV,
		}
		if "" != c.EncryptionKey || "" != c.EncryptionIV {
			keys.key, keys.iv, err = decodeKeys(c.EncryptionKey, c.EncryptionIV)
			if nil != err {
				log.Errorf("connect[%d]: %q  error: %s", i, c.Address, err)
				return count, err
			}
		}
		if nil == keys.key {
			log.Errorf("connect[%d]: %q  no encryption key", i, c.Address)
			return count, fault.InvalidKeyLength
		}

		if err := registerPeer(registry, ip, port, c.UniqueID, c.PublicKey, keys); nil != err {
			return count, err
		}
		count += 1
	}

	if "" == conf.DNSSeed || nil == lookuper {
		return count, nil
	}
	if nil == networkKey {
		log.Warnf("dns seed: %q  ignored without a network key", conf.DNSSeed)
		return count, nil
	}

	seeds, err := lookuper.Lookup(conf.DNSSeed)
	if nil != err {
		log.Warnf("dns seed: %q  error: %s", conf.DNSSeed, err)
		return count, nil
	}

	for _, seed := range seeds {
		keys := sessionKeys{
			publicKey:  publicKey,
			privateKey: conf.PrivateKey,
			key:        networkKey,
			iv:         networkIV,
		}
		err := registerPeer(registry, seed.IP(), int(seed.Port), seed.UniqueID, seed.PublicKey, keys)
		if nil != err {
			log.Warnf("seed: %s  error: %s", seed.UniqueID, err)
			continue
		}
		count += 1
	}

	return count, nil
}

func registerPeer(registry Registry, ip string, port int, uniqueID string, peerPublicKey string, keys sessionKeys) error {
	if registry.Contains(ip, uniqueID) {
		return registry.Update(ip, uniqueID, func(r *directory.Record) {
			r.Port = port
			r.PublicKey = peerPublicKey
			r.InternPublicKey = keys.publicKey
			r.InternPrivateKey = keys.privateKey
			r.EncryptionKey = keys.key
			r.EncryptionIV = keys.iv
		})
	}

	return registry.Add(directory.Record{
		IP:               ip,
		Port:             port,
		UniqueID:         uniqueID,
		PublicKey:        peerPublicKey,
		InternPublicKey:  keys.publicKey,
		InternPrivateKey: keys.privateKey,
		EncryptionKey:    keys.key,
		EncryptionIV:     keys.iv,
	})
}

// decodeKeys - hex key and iv, both empty gives nil
func decodeKeys(key string, iv string) ([]byte, []byte, error) {
	if "" == key && "" == iv {
		return nil, nil, nil
	}
	k, err := hex.DecodeString(key)
	if nil != err {
		return nil, nil, fault.InvalidKeyLength
	}
	switch len(k) {
	case 16, 24, 32:
	default:
		return nil, nil, fault.InvalidKeyLength
	}
	v, err := hex.DecodeString(iv)
	if nil != err || 16 != len(v) {
		return nil, nil, fault.InvalidIV
	}
	return k, v, nil
}

// splitAddress - IP and port of "host:port", the host must be a literal IP
func splitAddress(address string) (string, int, error) {
	host, portString, err := net.SplitHostPort(address)
	if nil != err {
		return "", 0, fault.InvalidIpAddress
	}
	ip := net.ParseIP(host)
	if nil == ip {
		return "", 0, fault.InvalidIpAddress
	}
	port, err := strconv.Atoi(portString)
	if nil != err || port < 1 || port > 65535 {
		return "", 0, fault.InvalidPortNumber
	}
	return ip.String(), port, nil
}
