// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package directory - the set of known peers and their session keys
package directory

import (
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/blocksync/cryptostream"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/logger"
)

// Directory - access to peer records by IP and unique id
type Directory interface {
	Get(ip string, uniqueID string) (Record, bool)
	Contains(ip string, uniqueID string) bool
	Update(ip string, uniqueID string, f func(*Record)) error
	Stream(ip string, uniqueID string) (*cryptostream.Stream, error)
	List() []Record
}

const keyPrefix = "P"

type entry struct {
	record Record
	stream *cryptostream.Stream
}

// Store - Directory held in memory and persisted to leveldb
type Store struct {
	sync.RWMutex

	log     *logger.L
	db      *leveldb.DB
	entries map[string]*entry
}

// Open - open or create the database at path and load its records
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if nil != err {
		return nil, err
	}
	s, err := New(db)
	if nil != err {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New - create a store on an already open database
func New(db *leveldb.DB) (*Store, error) {
	s := &Store{
		log:     logger.New("directory"),
		db:      db,
		entries: make(map[string]*entry),
	}

	iter := db.NewIterator(ldb_util.BytesPrefix([]byte(keyPrefix)), nil)
	for iter.Next() {
		r, err := unmarshalRecord(iter.Value())
		if nil != err {
			s.log.Warnf("skip corrupt record: %q  error: %s", iter.Key(), err)
			continue
		}
		s.entries[makeKey(r.IP, r.UniqueID)] = &entry{record: *r}
	}
	iter.Release()
	if err := iter.Error(); nil != err {
		return nil, err
	}

	s.log.Infof("loaded %d peers", len(s.entries))
	return s, nil
}

// Close - close the database
func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()
	return s.db.Close()
}

// Add - insert a new peer
func (s *Store) Add(record Record) error {
	if "" == record.IP || "" == record.UniqueID {
		return fault.MissingParameters
	}

	key := makeKey(record.IP, record.UniqueID)

	s.Lock()
	defer s.Unlock()

	if _, ok := s.entries[key]; ok {
		return fault.PeerAlreadyExists
	}

	e := &entry{record: record.clone()}
	if err := s.save(key, &e.record); nil != err {
		return err
	}
	s.entries[key] = e

	s.log.Infof("add peer: %s  id: %s", record.Address(), record.UniqueID)
	return nil
}

// Get - copy of a peer record
func (s *Store) Get(ip string, uniqueID string) (Record, bool) {
	s.RLock()
	defer s.RUnlock()

	e, ok := s.entries[makeKey(ip, uniqueID)]
	if !ok {
		return Record{}, false
	}
	return e.record.clone(), true
}

// Contains - true if the peer is known
func (s *Store) Contains(ip string, uniqueID string) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.entries[makeKey(ip, uniqueID)]
	return ok
}

// List - copies of all records ordered by IP then unique id
func (s *Store) List() []Record {
	s.RLock()
	records := make([]Record, 0, len(s.entries))
	for _, e := range s.entries {
		records = append(records, e.record.clone())
	}
	s.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].IP == records[j].IP {
			return records[i].UniqueID < records[j].UniqueID
		}
		return records[i].IP < records[j].IP
	})
	return records
}

// Update - mutate a record in place and persist it
//
// the IP and unique id cannot be changed, an existing stream is
// re-keyed if any key material changed
func (s *Store) Update(ip string, uniqueID string, f func(*Record)) error {
	key := makeKey(ip, uniqueID)

	s.Lock()
	defer s.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return fault.PeerNotFound
	}

	r := e.record.clone()
	f(&r)
	r.IP = ip
	r.UniqueID = uniqueID

	if err := s.save(key, &r); nil != err {
		return err
	}

	if nil != e.stream && !r.sameKeys(&e.record) {
		err := e.stream.Update(r.EncryptionKey, r.EncryptionIV, r.InternPublicKey, r.InternPrivateKey)
		if nil != err {
			s.log.Warnf("re-key peer: %s  id: %s  error: %s", r.Address(), uniqueID, err)
		}
	}
	e.record = r
	return nil
}

// Stream - the peer's crypto stream, created on first use
func (s *Store) Stream(ip string, uniqueID string) (*cryptostream.Stream, error) {
	s.Lock()
	defer s.Unlock()

	e, ok := s.entries[makeKey(ip, uniqueID)]
	if !ok {
		return nil, fault.PeerNotFound
	}
	if nil != e.stream {
		return e.stream, nil
	}

	r := &e.record
	stream, err := cryptostream.New(r.EncryptionKey, r.EncryptionIV, r.InternPublicKey, r.InternPrivateKey)
	if nil != err {
		return nil, err
	}
	e.stream = stream
	return stream, nil
}

// must hold lock
func (s *Store) save(key string, r *Record) error {
	data, err := marshalRecord(r)
	if nil != err {
		return err
	}
	return s.db.Put([]byte(key), data, nil)
}

func makeKey(ip string, uniqueID string) string {
	return keyPrefix + ip + "/" + uniqueID
}
