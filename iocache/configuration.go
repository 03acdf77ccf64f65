// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package iocache

import (
	"time"

	"github.com/bitmark-inc/blocksync/fault"
)

// defaults
const (
	DefaultMaxBlocksPerFile = 1000
	DefaultMaxMemory        = 256 * 1024 * 1024
	DefaultTaskWaitDelay    = 100 // milliseconds
	DefaultPurgeInterval    = 60  // seconds
	DefaultIdleTimeout      = 300 // seconds
)

// Configuration - cache settings as read from the configuration file
type Configuration struct {
	Directory        string `gluamapper:"directory" json:"directory"`
	MaxBlocksPerFile uint64 `gluamapper:"max_blocks_per_file" json:"max_blocks_per_file"`
	MaxMemory        int64  `gluamapper:"max_memory" json:"max_memory"`
	MultiTask        bool   `gluamapper:"multi_task" json:"multi_task"`
	TaskWaitDelay    int    `gluamapper:"task_wait_delay" json:"task_wait_delay"`
	PurgeInterval    int    `gluamapper:"purge_interval" json:"purge_interval"`
	IdleTimeout      int    `gluamapper:"idle_timeout" json:"idle_timeout"`
}

// DefaultConfiguration - settings used when a field is not configured
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxBlocksPerFile: DefaultMaxBlocksPerFile,
		MaxMemory:        DefaultMaxMemory,
		MultiTask:        true,
		TaskWaitDelay:    DefaultTaskWaitDelay,
		PurgeInterval:    DefaultPurgeInterval,
		IdleTimeout:      DefaultIdleTimeout,
	}
}

func (conf *Configuration) validate() error {
	if "" == conf.Directory {
		return fault.CacheDirectoryRequired
	}
	if 0 == conf.MaxBlocksPerFile {
		return fault.InvalidBlockCount
	}
	if conf.MaxMemory <= 0 {
		return fault.InvalidCount
	}
	return nil
}

func (conf *Configuration) taskWaitDelay() time.Duration {
	if conf.TaskWaitDelay <= 0 {
		return DefaultTaskWaitDelay * time.Millisecond
	}
	return time.Duration(conf.TaskWaitDelay) * time.Millisecond
}

func (conf *Configuration) idleTimeout() time.Duration {
	if conf.IdleTimeout <= 0 {
		return DefaultIdleTimeout * time.Second
	}
	return time.Duration(conf.IdleTimeout) * time.Second
}

// PurgeEvery - interval between background purges
func (conf *Configuration) PurgeEvery() time.Duration {
	if conf.PurgeInterval <= 0 {
		return DefaultPurgeInterval * time.Second
	}
	return time.Duration(conf.PurgeInterval) * time.Second
}
