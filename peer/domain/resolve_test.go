// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package domain

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func startNameServer(t *testing.T, rcode int, txt ...string) (string, string, func()) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	assert.Nil(t, err, "listen error")

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetRcode(r, rcode)
			if dns.RcodeSuccess == rcode {
				m.Answer = append(m.Answer, &dns.TXT{
					Hdr: dns.RR_Header{
						Name:   r.Question[0].Name,
						Rrtype: dns.TypeTXT,
						Class:  dns.ClassINET,
						Ttl:    60,
					},
					Txt: txt,
				})
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() {
		_ = server.ActivateAndServe()
	}()
	<-started

	host, port, err := net.SplitHostPort(pc.LocalAddr().String())
	assert.Nil(t, err, "address error")
	return host, port, func() {
		_ = server.Shutdown()
	}
}

func TestResolveTXT(t *testing.T) {
	host, port, stop := startNameServer(t, dns.RcodeSuccess, "blocksync=v1 a=10.0.0.1", " c=2136")
	defer stop()

	txts, err := resolveTXT("seed.example.org", []string{host}, port)
	assert.Nil(t, err, "resolve error")
	assert.Equal(t, []string{"blocksync=v1 a=10.0.0.1 c=2136"}, txts, "wrong TXT strings")
}

func TestResolveTXTFailure(t *testing.T) {
	host, port, stop := startNameServer(t, dns.RcodeNameError)
	defer stop()

	_, err := resolveTXT("missing.example.org", []string{host}, port)
	assert.NotNil(t, err, "name error not reported")

	_, err = resolveTXT("missing.example.org", nil, port)
	assert.NotNil(t, err, "no servers not reported")
}
