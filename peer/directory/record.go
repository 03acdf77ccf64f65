// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package directory

import (
	"bytes"
	"net"
	"strconv"

	"github.com/gogo/protobuf/proto"
)

// Record - everything known about one peer
//
// Get returns a copy, changes are made through Directory.Update
type Record struct {
	IP       string
	Port     int
	UniqueID string

	// the peer's signing key, used to verify its responses
	PublicKey string

	// this node's key pair towards the peer
	InternPublicKey  string
	InternPrivateKey string

	// symmetric session material
	EncryptionKey []byte
	EncryptionIV  []byte

	// unix seconds
	LastPacketReceived           int64
	ClientLastWhitelistTimestamp int64
	TimestampSignatureWhitelist  int64
}

// Address - host:port for dialling
func (r *Record) Address() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

func (r *Record) clone() Record {
	c := *r
	c.EncryptionKey = append([]byte(nil), r.EncryptionKey...)
	c.EncryptionIV = append([]byte(nil), r.EncryptionIV...)
	return c
}

func (r *Record) sameKeys(other *Record) bool {
	return r.PublicKey == other.PublicKey &&
		r.InternPublicKey == other.InternPublicKey &&
		r.InternPrivateKey == other.InternPrivateKey &&
		bytes.Equal(r.EncryptionKey, other.EncryptionKey) &&
		bytes.Equal(r.EncryptionIV, other.EncryptionIV)
}

// recordPB - protobuf form of a record stored in the database
type recordPB struct {
	IP                           string `protobuf:"bytes,1,opt,name=ip,proto3" json:"ip,omitempty"`
	Port                         int32  `protobuf:"varint,2,opt,name=port,proto3" json:"port,omitempty"`
	UniqueID                     string `protobuf:"bytes,3,opt,name=unique_id,json=uniqueId,proto3" json:"unique_id,omitempty"`
	PublicKey                    string `protobuf:"bytes,4,opt,name=public_key,json=publicKey,proto3" json:"public_key,omitempty"`
	InternPublicKey              string `protobuf:"bytes,5,opt,name=intern_public_key,json=internPublicKey,proto3" json:"intern_public_key,omitempty"`
	InternPrivateKey             string `protobuf:"bytes,6,opt,name=intern_private_key,json=internPrivateKey,proto3" json:"intern_private_key,omitempty"`
	EncryptionKey                []byte `protobuf:"bytes,7,opt,name=encryption_key,json=encryptionKey,proto3" json:"encryption_key,omitempty"`
	EncryptionIV                 []byte `protobuf:"bytes,8,opt,name=encryption_iv,json=encryptionIv,proto3" json:"encryption_iv,omitempty"`
	LastPacketReceived           int64  `protobuf:"varint,9,opt,name=last_packet_received,json=lastPacketReceived,proto3" json:"last_packet_received,omitempty"`
	ClientLastWhitelistTimestamp int64  `protobuf:"varint,10,opt,name=client_last_whitelist_timestamp,json=clientLastWhitelistTimestamp,proto3" json:"client_last_whitelist_timestamp,omitempty"`
	TimestampSignatureWhitelist  int64  `protobuf:"varint,11,opt,name=timestamp_signature_whitelist,json=timestampSignatureWhitelist,proto3" json:"timestamp_signature_whitelist,omitempty"`
}

func (m *recordPB) Reset()         { *m = recordPB{} }
func (m *recordPB) String() string { return proto.CompactTextString(m) }
func (*recordPB) ProtoMessage()    {}

func marshalRecord(r *Record) ([]byte, error) {
	pb := &recordPB{
		IP:                           r.IP,
		Port:                         int32(r.Port),
		UniqueID:                     r.UniqueID,
		PublicKey:                    r.PublicKey,
		InternPublicKey:              r.InternPublicKey,
		InternPrivateKey:             r.InternPrivateKey,
		EncryptionKey:                r.EncryptionKey,
		EncryptionIV:                 r.EncryptionIV,
		LastPacketReceived:           r.LastPacketReceived,
		ClientLastWhitelistTimestamp: r.ClientLastWhitelistTimestamp,
		TimestampSignatureWhitelist:  r.TimestampSignatureWhitelist,
	}
	return proto.Marshal(pb)
}

func unmarshalRecord(data []byte) (*Record, error) {
	pb := &recordPB{}
	if err := proto.Unmarshal(data, pb); nil != err {
		return nil, err
	}
	return &Record{
		IP:                           pb.IP,
		Port:                         int(pb.Port),
		UniqueID:                     pb.UniqueID,
		PublicKey:                    pb.PublicKey,
		InternPublicKey:              pb.InternPublicKey,
		InternPrivateKey:             pb.InternPrivateKey,
		EncryptionKey:                pb.EncryptionKey,
		EncryptionIV:                 pb.EncryptionIV,
		LastPacketReceived:           pb.LastPacketReceived,
		ClientLastWhitelistTimestamp: pb.ClientLastWhitelistTimestamp,
		TimestampSignatureWhitelist:  pb.TimestampSignatureWhitelist,
	}, nil
}
