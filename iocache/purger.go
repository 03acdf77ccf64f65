// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"context"
	"time"
)

// Purger - background process that periodically purges and flushes
// the cache
type Purger struct {
	system   *System
	interval time.Duration
}

// NewPurger - create a purge process for use with background.Start
func NewPurger(system *System, interval time.Duration) *Purger {
	return &Purger{
		system:   system,
		interval: interval,
	}
}

// Run - loop until shutdown
func (p *Purger) Run(args interface{}, shutdown <-chan struct{}) {
	log := p.system.log
	log.Info("purger starting…")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
			if !p.system.Flush(ctx) {
				log.Warn("flush incomplete")
			}
			p.system.Purge(ctx)
		}
	}

	log.Info("purger stopped")
}
