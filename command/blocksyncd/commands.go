// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bitmark-inc/blocksync/cryptostream"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"
)

// setup command handler
//
// commands that run to create keys, these commands cannot access
// any internal database or states or the configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {
	case "gen-peer-identity", "peer":
		publicKey, privateKey, err := cryptostream.GenerateKeyPair()
		if nil != err {
			exitwithstatus.Message("generate key pair error: %s", err)
		}
		fmt.Printf("private_key = %q\n", privateKey)
		fmt.Printf("public_key  = %q\n", publicKey)

	case "start", "run":
		return false // continue processing

	case "config-test", "cfg", "dns-txt", "txt", "peers", "p":
		return false // defer processing until configuration is read

	case "version", "v":
		fmt.Printf("%s\n", version)

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %q\n", command)
		}

		fmt.Printf("usage: %s [--help] [--verbose] [--quiet] --config-file=FILE [[command|help] arguments...]", program)

		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                       (h)      - display this message\n\n")
		fmt.Printf("  version                    (v)      - display version sting\n\n")

		fmt.Printf("  gen-peer-identity          (peer)   - display a new private key for peering.private_key\n")
		fmt.Printf("                                        and its public key\n")
		fmt.Printf("\n")

		fmt.Printf("  dns-txt IP:PORT...         (txt)    - display the data to put in a dns TXT record\n")
		fmt.Printf("\n")

		fmt.Printf("  start                      (run)    - just run the program, same as no arguments\n")
		fmt.Printf("                                        for convienience when passing script arguments\n")
		fmt.Printf("\n")

		fmt.Printf("  config-test                (cfg)    - just check the configuration file\n")
		fmt.Printf("\n")

		fmt.Printf("  peers                      (p)      - list the peer directory as JSON\n")
		fmt.Printf("\n")

		exitwithstatus.Exit(1)
	}

	// indicate processing complete and prefor normal exit from main
	return true
}

// configuration command handler
//
// commands that just read the configuration and
// do not access any internal database or states
func processConfigCommand(arguments []string, options *Configuration) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {
	case "dns-txt", "txt":
		txt, err := dnsTXT(options, arguments)
		if nil != err {
			exitwithstatus.Message("error: %s", err)
		}
		fmt.Printf("%s\n", txt)

	case "config-test", "cfg":
		s, err := json.MarshalIndent(options, "", "  ")
		if nil != err {
			exitwithstatus.Message("error: %s", err)
		}
		fmt.Printf("configuration:\n%s\n", s)

	default: // unknown commands fall through to data command processing
		return false
	}

	// indicate processing complete and prefor normal exit from main
	return true
}

// data command handler
//
// the internal data has been initialised
func processDataCommand(log *logger.L, arguments []string, dir *directory.Store) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
	}

	switch command {
	case "start", "run":
		return false // continue processing

	case "peers", "p":
		s, err := json.MarshalIndent(listPeers(dir), "", "  ")
		if nil != err {
			exitwithstatus.Message("error: %s", err)
		}
		fmt.Printf("%s\n", s)

	default:
		log.Errorf("unknown command: %q", command)
		exitwithstatus.Message("error: no such command: %q", command)
	}

	// indicate processing complete and prefor normal exit from main
	return true
}

// the record announcing this node to the DNS seed
//
//   blocksync=v1 a=<IPv4;IPv6> c=<PORT> i=<UNIQUE-ID> p=<BASE58-PUBLIC-KEY>
func dnsTXT(options *Configuration, listeners []string) (string, error) {
	if 0 == len(listeners) {
		return "", fmt.Errorf("missing listener address")
	}

	publicKey, err := cryptostream.PublicKeyFor(options.Peering.PrivateKey)
	if nil != err {
		return "", err
	}

	addresses := make([]string, 0, len(listeners))
	port := ""
	for _, l := range listeners {
		host, p, err := net.SplitHostPort(l)
		if nil != err {
			return "", err
		}
		if "" != port && p != port {
			return "", fmt.Errorf("listener: %q port differs from: %s", l, port)
		}
		if _, err := strconv.ParseUint(p, 10, 16); nil != err {
			return "", err
		}
		port = p

		ip := net.ParseIP(host)
		if nil == ip {
			return "", fmt.Errorf("listener: %q is not an IP address", l)
		}
		if nil == ip.To4() {
			addresses = append(addresses, "["+ip.String()+"]")
		} else {
			addresses = append(addresses, ip.String())
		}
	}

	return fmt.Sprintf("blocksync=v1 a=%s c=%s i=%s p=%s",
		strings.Join(addresses, ";"), port, options.Peering.UniqueID, publicKey), nil
}

// public view of a peer, no key material
type peerEntry struct {
	Address       string `json:"address"`
	UniqueID      string `json:"unique_id"`
	PublicKey     string `json:"public_key"`
	LastReceived  string `json:"last_received,omitempty"`
	WhitelistFrom string `json:"whitelist_from,omitempty"`
}

func listPeers(dir *directory.Store) []peerEntry {
	records := dir.List()
	entries := make([]peerEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, peerEntry{
			Address:       r.Address(),
			UniqueID:      r.UniqueID,
			PublicKey:     r.PublicKey,
			LastReceived:  unixTime(r.LastPacketReceived),
			WhitelistFrom: unixTime(r.TimestampSignatureWhitelist),
		})
	}
	return entries
}

func unixTime(seconds int64) string {
	if 0 == seconds {
		return ""
	}
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
