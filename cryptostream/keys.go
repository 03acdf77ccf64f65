// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cryptostream

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec"

	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/util"
)

// byte sizes of decoded keys
const (
	PrivateKeySize = 32
	PublicKeySize  = btcec.PubKeyBytesLenCompressed
)

// GenerateKeyPair - new secp256k1 key pair as base58-check strings
func GenerateKeyPair() (publicKey string, privateKey string, err error) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if nil != err {
		return "", "", err
	}
	return encodePublicKey(key.PubKey()), encodePrivateKey(key), nil
}

// PublicKeyFor - derive the public key string of a private key string
func PublicKeyFor(privateKey string) (string, error) {
	key, err := ParsePrivateKey(privateKey)
	if nil != err {
		return "", err
	}
	return encodePublicKey(key.PubKey()), nil
}

// ParsePrivateKey - decode a base58-check private key
func ParsePrivateKey(s string) (*btcec.PrivateKey, error) {
	buffer, err := util.DecodeBase58Check(s)
	if nil != err {
		return nil, err
	}
	if PrivateKeySize != len(buffer) {
		return nil, fault.InvalidPrivateKey
	}

	d := new(big.Int).SetBytes(buffer)
	if 0 == d.Sign() || d.Cmp(btcec.S256().N) >= 0 {
		return nil, fault.InvalidPrivateKey
	}

	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), buffer)
	return key, nil
}

// ParsePublicKey - decode a base58-check compressed or uncompressed public key
func ParsePublicKey(s string) (*btcec.PublicKey, error) {
	buffer, err := util.DecodeBase58Check(s)
	if nil != err {
		return nil, err
	}
	key, err := btcec.ParsePubKey(buffer, btcec.S256())
	if nil != err {
		return nil, fault.InvalidPublicKey
	}
	return key, nil
}

func encodePrivateKey(key *btcec.PrivateKey) string {
	return util.EncodeBase58Check(key.Serialize())
}

func encodePublicKey(key *btcec.PublicKey) string {
	return util.EncodeBase58Check(key.SerializeCompressed())
}
