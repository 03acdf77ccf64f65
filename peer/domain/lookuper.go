// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package domain

import (
	"strings"

	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/logger"
)

// Lookuper - interface to lookup peer seeds
type Lookuper interface {
	Lookup(string) ([]Seed, error)
}

type lookuper struct {
	log *logger.L
	f   func(string) ([]string, error)
}

// NewLookuper - new Lookuper using f to fetch the TXT strings
func NewLookuper(log *logger.L, f func(string) ([]string, error)) Lookuper {
	return &lookuper{
		log: log,
		f:   f,
	}
}

// Lookup - query DNS TXT records and parse the usable ones
func (l *lookuper) Lookup(domainName string) ([]Seed, error) {
	log := l.log
	var result []Seed
	if "" == domainName {
		log.Error("invalid node domain")
		return result, fault.InvalidNodeDomain
	}

	txts, err := l.f(domainName)
	if nil != err {
		log.Errorf("lookup TXT record error: %s", err)
		return result, err
	}

	for i, t := range txts {
		t = strings.TrimSpace(t)
		seed, err := Parse(t)
		if nil != err {
			log.Debugf("ignore TXT[%d]: %q  error: %s", i, t, err)
			continue
		}

		log.Infof("process TXT[%d]: %q", i, t)
		log.Infof("result[%d]: IPv4: %q  IPv6: %q  port: %d  id: %s", i, seed.IPv4, seed.IPv6, seed.Port, seed.UniqueID)
		result = append(result, *seed)
	}

	return result, nil
}
