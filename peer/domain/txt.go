// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package domain

import (
	"net"
	"strconv"
	"strings"

	"github.com/bitmark-inc/blocksync/cryptostream"
	"github.com/bitmark-inc/blocksync/fault"
)

// the tag to detect applicable TXT records from DNS
var supportedTags = map[string]struct{}{
	"blocksync=v1": {},
}

const maxUniqueIDLength = 64

// Seed - one peer announced through DNS
type Seed struct {
	IPv4      net.IP
	IPv6      net.IP
	Port      uint16
	UniqueID  string
	PublicKey string
}

// IP - preferred address of the seed, IPv4 first
func (s *Seed) IP() string {
	if nil != s.IPv4 {
		return s.IPv4.String()
	}
	if nil != s.IPv6 {
		return s.IPv6.String()
	}
	return ""
}

// Parse - decode DNS TXT records of this form
//
//   <TAG> a=<IPv4;IPv6> c=<PORT> i=<UNIQUE-ID> p=<BASE58-PUBLIC-KEY>
//
// other invalid combinations or extraneous items are rejected
func Parse(s string) (*Seed, error) {

	t := &Seed{}

	countA := 0
	countC := 0
	countI := 0
	countP := 0

words:
	for i, w := range strings.Split(strings.TrimSpace(s), " ") {

		if 0 == i {
			if _, ok := supportedTags[w]; ok {
				continue words
			}
			return nil, fault.InvalidDnsTxtRecord
		}

		// ignore empty
		if "" == w {
			continue words
		}

		// require form: <letter>=<word>
		if len(w) < 3 || '=' != w[1] {
			return nil, fault.InvalidDnsTxtRecord
		}

		parameter := w[2:]
		err := error(nil)
		switch w[0] {
		case 'a':
		addresses:
			for _, address := range strings.Split(parameter, ";") {
				if "" == address {
					err = fault.InvalidIpAddress
					break addresses
				}
				if '[' == address[0] {
					end := len(address) - 1
					if ']' == address[end] {
						address = address[1:end]
					}
				}
				IP := net.ParseIP(address)
				if nil == IP {
					err = fault.InvalidIpAddress
					break addresses
				}
				if nil != IP.To4() {
					t.IPv4 = IP
				} else {
					t.IPv6 = IP
				}
			}
			countA += 1

		case 'c':
			t.Port, err = getPort(parameter)
			countC += 1

		case 'i':
			if len(parameter) > maxUniqueIDLength || strings.ContainsAny(parameter, "#*") {
				err = fault.InvalidUniqueID
			} else {
				t.UniqueID = parameter
			}
			countI += 1

		case 'p':
			if _, e := cryptostream.ParsePublicKey(parameter); nil != e {
				err = fault.InvalidPublicKey
			} else {
				t.PublicKey = parameter
			}
			countP += 1

		default:
			err = fault.InvalidDnsTxtRecord
		}
		if nil != err {
			return nil, err
		}
	}

	// ensure that there is only one each of the required items
	if countA != 1 || countC != 1 || countI != 1 || countP != 1 {
		return nil, fault.InvalidDnsTxtRecord
	}

	return t, nil
}

func getPort(s string) (uint16, error) {
	port, err := strconv.Atoi(s)
	if nil != err {
		return 0, fault.InvalidPortNumber
	}
	if port < 1 || port > 65535 {
		return 0, fault.InvalidPortNumber
	}
	return uint16(port), nil
}
