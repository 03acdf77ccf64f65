// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package reputation_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/blocksync/peer/reputation"
	"github.com/bitmark-inc/logger"
)

const (
	testingDirName = "testing"
)

func TestMain(m *testing.M) {
	removeFiles()
	_ = os.Mkdir(testingDirName, 0700)

	_ = logger.Initialise(logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	})

	rc := m.Run()

	logger.Finalise()
	removeFiles()
	os.Exit(rc)
}

func removeFiles() {
	os.RemoveAll(testingDirName)
}

func TestConnectFailuresBan(t *testing.T) {
	tr := reputation.New(reputation.Configuration{
		MaxConnectFailures: 3,
		MaxInvalidPackets:  2,
		BanDuration:        60,
		ConnectBurst:       100,
	})

	tr.ConnectFailure("10.0.0.1", "one")
	tr.NoPacketConnection("10.0.0.1", "one")
	assert.False(t, tr.IsBanned("10.0.0.1", "one"), "banned too early")
	assert.True(t, tr.AllowConnect("10.0.0.1", "one"), "connect refused")

	tr.ConnectFailure("10.0.0.1", "one")
	assert.True(t, tr.IsBanned("10.0.0.1", "one"), "not banned")
	assert.False(t, tr.AllowConnect("10.0.0.1", "one"), "banned peer allowed")

	assert.False(t, tr.IsBanned("10.0.0.1", "two"), "ban leaked to other id")
}

func TestInvalidPacketsBan(t *testing.T) {
	tr := reputation.New(reputation.Configuration{
		MaxConnectFailures: 10,
		MaxInvalidPackets:  2,
		BanDuration:        60,
	})

	tr.InvalidPacket("10.0.0.1", "one")
	tr.ConnectFailure("10.0.0.1", "one")
	assert.False(t, tr.IsBanned("10.0.0.1", "one"), "strike kinds mixed")

	tr.InvalidPacket("10.0.0.1", "one")
	assert.True(t, tr.IsBanned("10.0.0.1", "one"), "not banned")
}

func TestConnectRate(t *testing.T) {
	tr := reputation.New(reputation.Configuration{
		ConnectRate:  0.001,
		ConnectBurst: 2,
	})

	assert.True(t, tr.AllowConnect("10.0.0.1", "one"), "first connect refused")
	assert.True(t, tr.AllowConnect("10.0.0.1", "one"), "second connect refused")
	assert.False(t, tr.AllowConnect("10.0.0.1", "one"), "burst exceeded")
	assert.True(t, tr.AllowConnect("10.0.0.2", "one"), "limit shared between peers")
}

func TestDefaults(t *testing.T) {
	def := reputation.DefaultConfiguration()
	tr := reputation.New(reputation.Configuration{})

	for i := 1; i < def.MaxInvalidPackets; i += 1 {
		tr.InvalidPacket("10.0.0.1", "one")
	}
	assert.False(t, tr.IsBanned("10.0.0.1", "one"), "banned too early")
	tr.InvalidPacket("10.0.0.1", "one")
	assert.True(t, tr.IsBanned("10.0.0.1", "one"), "default limit not applied")
}
