// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/bitmark-inc/blocksync/fault"
)

// FieldSeparator - separates the fields of a packet record
const FieldSeparator = '#'

const fieldCount = 7

// Envelope - the fields shared by request and response packets
//
// Content is base64 of the encrypted message, Hash is hex and
// Signature is base64 so none of them can contain the separator
type Envelope struct {
	Content                string
	Hash                   string
	Signature              string
	UniqueID               string
	PublicKey              string
	LastWhitelistTimestamp int64
}

// SendObject - a request packet
type SendObject struct {
	Order SendOrder
	Envelope
}

// RecvObject - a response packet
type RecvObject struct {
	Order ResponseOrder
	Envelope
}

// NewSendObject - request carrying the sender's identity fields
func NewSendObject(order SendOrder, uniqueID string, publicKey string, lastWhitelist int64) *SendObject {
	return &SendObject{
		Order: order,
		Envelope: Envelope{
			UniqueID:               uniqueID,
			PublicKey:              publicKey,
			LastWhitelistTimestamp: lastWhitelist,
		},
	}
}

// NewRecvObject - response carrying the sender's identity fields
func NewRecvObject(order ResponseOrder, uniqueID string, publicKey string, lastWhitelist int64) *RecvObject {
	return &RecvObject{
		Order: order,
		Envelope: Envelope{
			UniqueID:               uniqueID,
			PublicKey:              publicKey,
			LastWhitelistTimestamp: lastWhitelist,
		},
	}
}

// Encode - serialise a request packet
func (p *SendObject) Encode() ([]byte, error) {
	if !p.Order.IsValid() {
		return nil, fault.InvalidPacketOrder
	}
	return encode(int(p.Order), &p.Envelope)
}

// Encode - serialise a response packet
func (p *RecvObject) Encode() ([]byte, error) {
	if !p.Order.IsValid() {
		return nil, fault.InvalidPacketOrder
	}
	return encode(int(p.Order), &p.Envelope)
}

// DecodeSend - parse a request packet
func DecodeSend(data []byte) (*SendObject, error) {
	order, envelope, err := decode(data)
	if nil != err {
		return nil, err
	}
	p := &SendObject{
		Order:    SendOrder(order),
		Envelope: envelope,
	}
	if !p.Order.IsValid() {
		return nil, fault.InvalidPacketOrder
	}
	return p, nil
}

// DecodeRecv - parse a response packet
func DecodeRecv(data []byte) (*RecvObject, error) {
	order, envelope, err := decode(data)
	if nil != err {
		return nil, err
	}
	p := &RecvObject{
		Order:    ResponseOrder(order),
		Envelope: envelope,
	}
	if !p.Order.IsValid() {
		return nil, fault.InvalidPacketOrder
	}
	return p, nil
}

func encode(order int, e *Envelope) ([]byte, error) {
	fields := []string{
		strconv.Itoa(order),
		e.Content,
		e.Hash,
		e.Signature,
		e.UniqueID,
		e.PublicKey,
		strconv.FormatInt(e.LastWhitelistTimestamp, 10),
	}

	separator := string(FieldSeparator)
	for _, f := range fields {
		if strings.Contains(f, separator) {
			return nil, fault.InvalidPacket
		}
	}
	return []byte(strings.Join(fields, separator)), nil
}

func decode(data []byte) (int, Envelope, error) {
	fields := bytes.Split(data, []byte{FieldSeparator})
	if fieldCount != len(fields) {
		return 0, Envelope{}, fault.InvalidFieldCount
	}

	order, err := strconv.Atoi(string(fields[0]))
	if nil != err {
		return 0, Envelope{}, fault.InvalidPacketOrder
	}
	timestamp, err := strconv.ParseInt(string(fields[6]), 10, 64)
	if nil != err {
		return 0, Envelope{}, fault.InvalidPacket
	}

	e := Envelope{
		Content:                string(fields[1]),
		Hash:                   string(fields[2]),
		Signature:              string(fields[3]),
		UniqueID:               string(fields[4]),
		PublicKey:              string(fields[5]),
		LastWhitelistTimestamp: timestamp,
	}
	return order, e, nil
}
