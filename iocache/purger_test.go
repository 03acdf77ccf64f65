// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/blocksync/background"
	"github.com/bitmark-inc/blocksync/iocache"
)

func TestPurgerFlushes(t *testing.T) {
	dir, cleanup := tempDirectory(t)
	defer cleanup()

	ctx := context.Background()
	s := newSystem(t, dir, 10, largeMemory, false)
	defer s.Close()

	assert.True(t, s.PushOrUpdateBlock(ctx, makeBlock(1, 1), true), "push failed")
	assert.Equal(t, 1, s.Statistics()[0].Dirty, "entry not dirty")

	p := background.Start(background.Processes{
		iocache.NewPurger(s, 10*time.Millisecond),
	}, nil)
	time.Sleep(100 * time.Millisecond)
	p.Stop()

	stats := s.Statistics()[0]
	assert.Equal(t, 0, stats.Dirty, "purger did not flush")
	assert.Equal(t, int64(1), stats.KeptAlive, "fresh entry evicted")
}
