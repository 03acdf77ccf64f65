// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"strconv"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/blocksync/blockrecord"
	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/blocksync/util"
)

func runHeights(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	heights := m.system.Heights()
	if m.verbose {
		fmt.Fprintf(m.e, "heights: %d\n", len(heights))
	}
	return printJson(m.w, heights)
}

func runShow(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	height, err := heightArgument(c)
	if nil != err {
		return err
	}

	block := m.system.GetBlock(context.Background(), height, false, true)
	if nil == block {
		return fault.BlockNotFound
	}
	return printJson(m.w, block)
}

func runTransaction(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	hash := c.String("hash")
	if "" == hash {
		return fmt.Errorf("missing transaction hash")
	}
	height := c.Uint64("height")

	tx := m.system.GetTransaction(context.Background(), hash, height, false)
	if nil == tx {
		return fault.TransactionNotFound
	}
	return printJson(m.w, tx)
}

type usageReply struct {
	Memory    string       `json:"memory"`
	MaxMemory string       `json:"maxMemory"`
	KeptAlive int64        `json:"keptAlive"`
	Shards    []shardReply `json:"shards"`
}

type shardReply struct {
	FileName  string `json:"fileName"`
	Heights   int    `json:"heights"`
	Dirty     int    `json:"dirty"`
	Memory    string `json:"memory"`
	FileSize  string `json:"fileSize"`
	DeadBytes string `json:"deadBytes"`
}

func runUsage(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	memory, keptAlive := m.system.MemoryUsage()
	reply := usageReply{
		Memory:    util.FormatSize(memory),
		MaxMemory: util.FormatSize(m.system.MaxMemory()),
		KeptAlive: keptAlive,
		Shards:    make([]shardReply, 0),
	}
	for _, s := range m.system.Statistics() {
		reply.Shards = append(reply.Shards, shardReply{
			FileName:  s.FileName,
			Heights:   s.Heights,
			Dirty:     s.Dirty,
			Memory:    util.FormatSize(s.Memory),
			FileSize:  util.FormatSize(s.FileSize),
			DeadBytes: util.FormatSize(s.DeadBytes),
		})
	}
	return printJson(m.w, reply)
}

func runImport(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	fileName := c.Args().Get(0)
	if "" == fileName {
		return fmt.Errorf("missing file name")
	}

	data, err := ioutil.ReadFile(fileName)
	if nil != err {
		return err
	}

	var blocks []*blockrecord.Block
	if err := json.Unmarshal(data, &blocks); nil != err {
		return err
	}

	for i, b := range blocks {
		if nil == b {
			return fmt.Errorf("block: %d is null", i)
		}
		if nil == b.Transactions {
			b.Transactions = make(map[string]*blockrecord.Transaction)
		}
	}

	if !m.system.PushOrUpdateBlockList(context.Background(), blocks, false) {
		return fmt.Errorf("import of: %d blocks failed", len(blocks))
	}
	if !m.system.Flush(context.Background()) {
		return fmt.Errorf("flush failed")
	}

	if m.verbose {
		fmt.Fprintf(m.e, "imported: %d blocks\n", len(blocks))
	}
	return nil
}

func runDelete(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	height, err := heightArgument(c)
	if nil != err {
		return err
	}

	if !m.system.TryDeleteBlock(height) {
		return fmt.Errorf("delete height: %d failed", height)
	}
	return nil
}

func runCompact(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	if !m.system.Flush(context.Background()) {
		return fmt.Errorf("flush failed")
	}
	if !m.system.Compact(context.Background()) {
		return fmt.Errorf("compact failed")
	}
	return nil
}

func runClean(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)
	return m.system.Clean()
}

func heightArgument(c *cli.Context) (uint64, error) {
	s := c.Args().Get(0)
	if "" == s {
		return 0, fmt.Errorf("missing height")
	}
	return strconv.ParseUint(s, 10, 64)
}

func printJson(handle io.Writer, message interface{}) error {

	b, err := json.MarshalIndent(message, "", "  ")
	if nil != err {
		return err
	}

	fmt.Fprintf(handle, "%s\n", b)
	return nil
}
