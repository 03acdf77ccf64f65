// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/bitmark-inc/blocksync/cryptostream"
	"github.com/bitmark-inc/logger"
)

// return the node private key
//
// precedence: the configured key, then the identity file; if neither
// exists a new key is generated and saved to the identity file
func loadIdentity(log *logger.L, configured string, fileName string) (string, error) {
	if "" != configured {
		_, err := cryptostream.ParsePrivateKey(configured)
		return configured, err
	}

	data, err := ioutil.ReadFile(fileName)
	if nil == err {
		key := strings.TrimSpace(string(data))
		if _, err := cryptostream.ParsePrivateKey(key); nil != err {
			return "", err
		}
		log.Infof("identity from: %q", fileName)
		return key, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	publicKey, privateKey, err := cryptostream.GenerateKeyPair()
	if nil != err {
		return "", err
	}

	err = ioutil.WriteFile(fileName, []byte(privateKey+"\n"), 0600)
	if nil != err {
		return "", err
	}
	log.Warnf("generated identity: %q  public key: %s", fileName, publicKey)

	return privateKey, nil
}
