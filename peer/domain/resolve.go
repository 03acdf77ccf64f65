// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package domain - peer seeds announced through DNS TXT records
package domain

import (
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	configFile      = "/etc/resolv.conf"
	maxNameServers  = 3
	exchangeTimeout = 5 * time.Second
)

// ResolveTXT - fetch the TXT strings of a domain from the system name servers
//
// the character strings of one record are joined, the first server
// with an answer wins
func ResolveTXT(domainName string) ([]string, error) {
	conf, err := dns.ClientConfigFromFile(configFile)
	if nil != err {
		return nil, err
	}
	return resolveTXT(domainName, conf.Servers, conf.Port)
}

func resolveTXT(domainName string, servers []string, port string) ([]string, error) {
	// limit the nameservers to lookup
	if len(servers) > maxNameServers {
		servers = servers[:maxNameServers]
	}

	c := dns.Client{
		Timeout: exchangeTimeout,
	}
	msg := dns.Msg{}
	msg.SetQuestion(dns.Fqdn(domainName), dns.TypeTXT)

	err := error(nil)
	for _, server := range servers {
		r, _, e := c.Exchange(&msg, net.JoinHostPort(server, port))
		if nil != e {
			err = e
			continue
		}
		if dns.RcodeSuccess != r.Rcode {
			err = &net.DNSError{
				Err:  dns.RcodeToString[r.Rcode],
				Name: domainName,
			}
			continue
		}
		return txtStrings(r.Answer), nil
	}
	if nil == err {
		err = &net.DNSError{
			Err:  "no name servers",
			Name: domainName,
		}
	}
	return nil, err
}

func txtStrings(rrs []dns.RR) []string {
	result := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if txt, ok := rr.(*dns.TXT); ok {
			result = append(result, strings.Join(txt.Txt, ""))
		}
	}
	return result
}
