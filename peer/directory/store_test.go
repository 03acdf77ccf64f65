// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package directory_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/bitmark-inc/blocksync/cryptostream"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/logger"
)

const (
	testingDirName = "testing"
)

func TestMain(m *testing.M) {
	setupTestLogger()
	rc := m.Run()
	teardownTestLogger()
	os.Exit(rc)
}

func setupTestLogger() {
	removeFiles()
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)
}

func teardownTestLogger() {
	logger.Finalise()
	removeFiles()
}

func removeFiles() {
	os.RemoveAll(testingDirName)
}

func newMemoryStore(t *testing.T) *directory.Store {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	assert.Nil(t, err, "database open error")
	s, err := directory.New(db)
	assert.Nil(t, err, "store error")
	return s
}

func testRecord(t *testing.T, ip string, id string) directory.Record {
	public, private, err := cryptostream.GenerateKeyPair()
	assert.Nil(t, err, "key generation error")
	peerPublic, _, err := cryptostream.GenerateKeyPair()
	assert.Nil(t, err, "key generation error")

	return directory.Record{
		IP:               ip,
		Port:             2136,
		UniqueID:         id,
		PublicKey:        peerPublic,
		InternPublicKey:  public,
		InternPrivateKey: private,
		EncryptionKey:    bytes.Repeat([]byte{1}, 32),
		EncryptionIV:     bytes.Repeat([]byte{2}, 16),
	}
}

func TestAddGet(t *testing.T) {
	s := newMemoryStore(t)
	defer s.Close()

	r := testRecord(t, "10.0.0.1", "one")
	assert.Nil(t, s.Add(r), "add error")
	assert.Equal(t, fault.PeerAlreadyExists, s.Add(r), "duplicate accepted")
	assert.Equal(t, fault.MissingParameters, s.Add(directory.Record{IP: "10.0.0.2"}), "missing id accepted")

	got, ok := s.Get("10.0.0.1", "one")
	assert.True(t, ok, "record not found")
	assert.Equal(t, r, got, "record mismatch")
	assert.Equal(t, "10.0.0.1:2136", got.Address(), "wrong address")

	assert.True(t, s.Contains("10.0.0.1", "one"), "contains failed")
	assert.False(t, s.Contains("10.0.0.1", "two"), "unknown id found")

	// the returned copy is independent
	got.EncryptionKey[0] = 0xff
	again, _ := s.Get("10.0.0.1", "one")
	assert.Equal(t, byte(1), again.EncryptionKey[0], "copy shares key buffer")
}

func TestUpdate(t *testing.T) {
	s := newMemoryStore(t)
	defer s.Close()

	assert.Nil(t, s.Add(testRecord(t, "10.0.0.1", "one")), "add error")

	err := s.Update("10.0.0.1", "one", func(r *directory.Record) {
		r.LastPacketReceived = 1234
		r.IP = "10.9.9.9"
	})
	assert.Nil(t, err, "update error")

	got, ok := s.Get("10.0.0.1", "one")
	assert.True(t, ok, "record moved")
	assert.Equal(t, int64(1234), got.LastPacketReceived, "update lost")

	err = s.Update("10.0.0.1", "missing", func(*directory.Record) {})
	assert.Equal(t, fault.PeerNotFound, err, "wrong error")
}

func TestList(t *testing.T) {
	s := newMemoryStore(t)
	defer s.Close()

	assert.Nil(t, s.Add(testRecord(t, "10.0.0.2", "b")), "add error")
	assert.Nil(t, s.Add(testRecord(t, "10.0.0.1", "z")), "add error")
	assert.Nil(t, s.Add(testRecord(t, "10.0.0.2", "a")), "add error")

	list := s.List()
	assert.Equal(t, 3, len(list), "wrong count")
	assert.Equal(t, "z", list[0].UniqueID, "wrong order")
	assert.Equal(t, "a", list[1].UniqueID, "wrong order")
	assert.Equal(t, "b", list[2].UniqueID, "wrong order")
}

func TestStreamLifecycle(t *testing.T) {
	s := newMemoryStore(t)
	defer s.Close()

	r := testRecord(t, "10.0.0.1", "one")
	assert.Nil(t, s.Add(r), "add error")

	stream, err := s.Stream("10.0.0.1", "one")
	assert.Nil(t, err, "stream error")
	assert.True(t, stream.IsInitialised(), "stream not initialised")
	assert.Equal(t, r.InternPublicKey, stream.PublicKey(), "wrong stream key")

	same, err := s.Stream("10.0.0.1", "one")
	assert.Nil(t, err, "stream error")
	assert.True(t, stream == same, "stream rebuilt")

	encrypted := stream.Encrypt([]byte("before"))

	// re-keying keeps the stream object but changes the cipher
	err = s.Update("10.0.0.1", "one", func(r *directory.Record) {
		r.EncryptionKey = bytes.Repeat([]byte{7}, 32)
	})
	assert.Nil(t, err, "update error")
	plain, ok := stream.Decrypt(encrypted)
	if ok {
		assert.NotEqual(t, []byte("before"), plain, "stream not re-keyed")
	}

	// bad key material leaves the stream unusable
	err = s.Update("10.0.0.1", "one", func(r *directory.Record) {
		r.EncryptionIV = []byte("short")
	})
	assert.Nil(t, err, "update error")
	assert.False(t, stream.IsInitialised(), "bad re-key accepted")

	_, err = s.Stream("10.0.0.1", "missing")
	assert.Equal(t, fault.PeerNotFound, err, "wrong error")
}

func TestStreamBadKeys(t *testing.T) {
	s := newMemoryStore(t)
	defer s.Close()

	r := testRecord(t, "10.0.0.1", "one")
	r.EncryptionKey = []byte("short")
	assert.Nil(t, s.Add(r), "add error")

	_, err := s.Stream("10.0.0.1", "one")
	assert.Equal(t, fault.InvalidKeyLength, err, "wrong error")
}

func TestPersistence(t *testing.T) {
	dir, err := ioutil.TempDir("", "directory-")
	assert.Nil(t, err, "temp dir error")
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "peers.leveldb")

	s, err := directory.Open(path)
	assert.Nil(t, err, "open error")
	r := testRecord(t, "2001:db8::1", "six")
	assert.Nil(t, s.Add(r), "add error")
	assert.Nil(t, s.Update("2001:db8::1", "six", func(r *directory.Record) {
		r.TimestampSignatureWhitelist = 99
	}), "update error")
	assert.Nil(t, s.Close(), "close error")

	s, err = directory.Open(path)
	assert.Nil(t, err, "reopen error")
	defer s.Close()

	got, ok := s.Get("2001:db8::1", "six")
	assert.True(t, ok, "record not persisted")
	assert.Equal(t, int64(99), got.TimestampSignatureWhitelist, "update not persisted")
	assert.Equal(t, r.EncryptionKey, got.EncryptionKey, "key not persisted")
	assert.Equal(t, "[2001:db8::1]:2136", got.Address(), "wrong address")
}
