// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cryptostream - per peer symmetric encryption and packet signing
//
// payloads are AES in CFB mode over PKCS#7 style padded data, hashes
// are signed with deterministic (RFC6979) ECDSA on secp256k1 and the
// signature is sent as base64 DER
package cryptostream

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"sync"

	"github.com/btcsuite/btcd/btcec"
)

// Stream - crypto state of one peer session
type Stream struct {
	sync.Mutex

	block       cipher.Block
	iv          []byte
	privateKey  *btcec.PrivateKey
	publicKey   *btcec.PublicKey
	initialised bool

	// last verification key, parsed once per distinct string
	verifyKeyString string
	verifyKey       *btcec.PublicKey
}

// New - create a stream, the stream is unusable if an error is returned
//
// either key string may be empty, the private key can then be
// supplied later on the first Sign
func New(key []byte, iv []byte, publicKey string, privateKey string) (*Stream, error) {
	s := &Stream{}
	err := s.Update(key, iv, publicKey, privateKey)
	return s, err
}

// Update - re-key the stream
//
// on any failure the stream is left uninitialised
func (s *Stream) Update(key []byte, iv []byte, publicKey string, privateKey string) error {
	s.Lock()
	defer s.Unlock()

	s.initialised = false

	block, err := newCipher(key, iv)
	if nil != err {
		return err
	}

	var private *btcec.PrivateKey
	if "" != privateKey {
		private, err = ParsePrivateKey(privateKey)
		if nil != err {
			return err
		}
	}

	var public *btcec.PublicKey
	if "" != publicKey {
		public, err = ParsePublicKey(publicKey)
		if nil != err {
			return err
		}
	} else if nil != private {
		public = private.PubKey()
	}

	s.block = block
	s.iv = append([]byte{}, iv...)
	s.privateKey = private
	s.publicKey = public
	s.initialised = true
	return nil
}

// IsInitialised - true if the last Update succeeded
func (s *Stream) IsInitialised() bool {
	s.Lock()
	defer s.Unlock()
	return s.initialised
}

// PublicKey - base58-check form of this stream's public key, empty if none
func (s *Stream) PublicKey() string {
	s.Lock()
	defer s.Unlock()
	if nil == s.publicKey {
		return ""
	}
	return encodePublicKey(s.publicKey)
}

func (s *Stream) state() (cipher.Block, []byte, bool) {
	s.Lock()
	defer s.Unlock()
	return s.block, s.iv, s.initialised
}

// Encrypt - pad and encrypt, nil on failure
func (s *Stream) Encrypt(data []byte) []byte {
	block, iv, ok := s.state()
	if !ok {
		return nil
	}
	return encrypt(block, iv, data)
}

// Decrypt - decrypt and strip padding
//
// ok is false for an uninitialised stream, malformed input, bad
// padding or empty output
//
// CFB carries no authentication, a wrong key still yields valid
// padding for roughly one input in two hundred, so ok is not proof of
// the right key: received content must pass the hash and signature
// checks and decode before it is trusted
func (s *Stream) Decrypt(data []byte) ([]byte, bool) {
	block, iv, ok := s.state()
	if !ok {
		return nil, false
	}
	return decrypt(block, iv, data)
}

// Sign - sign the bytes of a hex encoded hash, returns base64 DER or
// empty string on failure
//
// if the stream has no private key yet it is derived from privateKey
// and kept for later calls
func (s *Stream) Sign(hashHex string, privateKey string) string {
	hash, err := hex.DecodeString(hashHex)
	if nil != err || 0 == len(hash) {
		return ""
	}

	s.Lock()
	if !s.initialised {
		s.Unlock()
		return ""
	}
	if nil == s.privateKey {
		key, err := ParsePrivateKey(privateKey)
		if nil != err {
			s.Unlock()
			return ""
		}
		s.privateKey = key
		if nil == s.publicKey {
			s.publicKey = key.PubKey()
		}
	}
	key := s.privateKey
	s.Unlock()

	signature, err := key.Sign(hash)
	if nil != err {
		return ""
	}
	return base64.StdEncoding.EncodeToString(signature.Serialize())
}

// Verify - check a base64 DER signature over the bytes of a hex hash
func (s *Stream) Verify(hashHex string, signature string, publicKey string) bool {
	hash, err := hex.DecodeString(hashHex)
	if nil != err || 0 == len(hash) {
		return false
	}
	der, err := base64.StdEncoding.DecodeString(signature)
	if nil != err {
		return false
	}
	sig, err := btcec.ParseDERSignature(der, btcec.S256())
	if nil != err {
		return false
	}

	s.Lock()
	if !s.initialised {
		s.Unlock()
		return false
	}
	if publicKey != s.verifyKeyString || nil == s.verifyKey {
		key, err := ParsePublicKey(publicKey)
		if nil != err {
			s.Unlock()
			return false
		}
		s.verifyKeyString = publicKey
		s.verifyKey = key
	}
	key := s.verifyKey
	s.Unlock()

	return sig.Verify(hash, key)
}
