// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/blocksync/iocache"
	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"
)

type metadata struct {
	system  *iocache.System
	verbose bool
	e       io.Writer
	w       io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	logging := logger.Configuration{
		Directory: os.TempDir(),
		File:      "ioblock-cli.log",
		Size:      1048576,
		Count:     2,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "warn",
		},
	}
	if err := logger.Initialise(logging); nil != err {
		exitwithstatus.Message("logger setup failed with error: %s", err)
	}
	defer logger.Finalise()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); nil != err {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		exitwithstatus.Exit(1)
	}
}

func newApp(w io.Writer, e io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "ioblock-cli"
	app.Usage = "inspect and maintain a block cache directory"
	app.Version = version
	app.HideVersion = true

	app.Writer = w
	app.ErrWriter = e

	defaults := iocache.DefaultConfiguration()

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:  "directory, d",
			Value: "",
			Usage: "*cache `DIRECTORY`",
		},
		cli.Uint64Flag{
			Name:  "blocks-per-file, b",
			Value: defaults.MaxBlocksPerFile,
			Usage: " blocks in each shard file `COUNT`",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "heights",
			Usage:  "list every cached height",
			Action: runHeights,
		},
		{
			Name:      "show",
			Usage:     "display one block",
			ArgsUsage: "HEIGHT",
			Action:    runShow,
		},
		{
			Name:      "transaction",
			Usage:     "display one transaction of a block",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.Uint64Flag{
					Name:  "height, H",
					Usage: "*block `HEIGHT`",
				},
				cli.StringFlag{
					Name:  "hash, t",
					Value: "",
					Usage: "*transaction `HASH`",
				},
			},
			Action: runTransaction,
		},
		{
			Name:   "usage",
			Usage:  "shard and memory statistics",
			Action: runUsage,
		},
		{
			Name:      "import",
			Usage:     "add or update blocks from a JSON array",
			ArgsUsage: "FILE",
			Action:    runImport,
		},
		{
			Name:      "delete",
			Usage:     "delete one block",
			ArgsUsage: "HEIGHT",
			Action:    runDelete,
		},
		{
			Name:   "compact",
			Usage:  "rewrite shard files without dead space",
			Action: runCompact,
		},
		{
			Name:   "clean",
			Usage:  "delete every shard file",
			Action: runClean,
		},
		{
			Name:  "version",
			Usage: "display ioblock-cli version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	// open the cache
	app.Before = func(c *cli.Context) error {
		command := c.Args().Get(0)
		if "" == command || "version" == command || "help" == command || "h" == command {
			return nil
		}

		directory := c.GlobalString("directory")
		if "" == directory {
			return fmt.Errorf("missing cache directory")
		}

		conf := defaults
		conf.Directory = directory
		conf.MaxBlocksPerFile = c.GlobalUint64("blocks-per-file")

		system, err := iocache.New(conf)
		if nil != err {
			return err
		}
		heights, err := system.Initialise(context.Background())
		if nil != err {
			return err
		}

		m := &metadata{
			system:  system,
			verbose: c.GlobalBool("verbose"),
			e:       c.App.ErrWriter,
			w:       c.App.Writer,
		}
		if m.verbose {
			fmt.Fprintf(m.e, "directory: %s  heights: %d\n", directory, len(heights))
		}

		c.App.Metadata = map[string]interface{}{
			"config": m,
		}
		return nil
	}

	// flush and release the cache
	app.After = func(c *cli.Context) error {
		m, ok := c.App.Metadata["config"].(*metadata)
		if !ok {
			return nil
		}
		return m.system.Close()
	}

	return app
}
