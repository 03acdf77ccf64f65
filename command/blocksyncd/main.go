// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/blocksync/background"
	"github.com/bitmark-inc/blocksync/iocache"
	"github.com/bitmark-inc/blocksync/peer"
	"github.com/bitmark-inc/blocksync/peer/directory"
	"github.com/bitmark-inc/blocksync/peer/domain"
	"github.com/bitmark-inc/blocksync/peer/reputation"
	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// these commands do not require the configuration and
	// process data needed for initial setup
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := getConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// these commands require the configuration and
	// perform enquiries on the configuration
	if len(arguments) > 0 && processConfigCommand(arguments, theConfiguration) {
		return
	}

	if len(options["verbose"]) > 0 {
		theConfiguration.Logging.Console = true
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Debugf("theConfiguration: %v", theConfiguration)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	// peer directory
	log.Infof("peer database: %q", theConfiguration.PeerDatabase)
	dir, err := directory.Open(theConfiguration.PeerDatabase)
	if nil != err {
		log.Criticalf("peer directory open error: %s", err)
		exitwithstatus.Message("peer directory open error: %s", err)
	}
	defer dir.Close()

	// these commands need the peer directory
	if len(arguments) > 0 && processDataCommand(log, arguments, dir) {
		return
	}

	// block cache
	log.Infof("cache directory: %q", theConfiguration.Cache.Directory)
	cache, err := iocache.New(theConfiguration.Cache)
	if nil != err {
		log.Criticalf("cache setup error: %s", err)
		exitwithstatus.Message("cache setup error: %s", err)
	}
	heights, err := cache.Initialise(context.Background())
	if nil != err {
		log.Criticalf("cache initialise error: %s", err)
		exitwithstatus.Message("cache initialise error: %s", err)
	}
	defer cache.Close()
	log.Infof("cached heights: %d", len(heights))

	// node identity
	privateKey, err := loadIdentity(log, theConfiguration.Peering.PrivateKey, theConfiguration.IdentityFile)
	if nil != err {
		log.Criticalf("identity error: %s", err)
		exitwithstatus.Message("identity error: %s", err)
	}
	theConfiguration.Peering.PrivateKey = privateKey

	// static and DNS seeded peers
	lookuper := domain.NewLookuper(logger.New("domain"), domain.ResolveTXT)
	n, err := peer.Register(log, dir, &theConfiguration.Peering, lookuper)
	if nil != err {
		log.Criticalf("peer register error: %s", err)
		exitwithstatus.Message("peer register error: %s", err)
	}
	log.Infof("registered peers: %d", n)

	tracker := reputation.New(theConfiguration.Reputation)

	synchroniser := peer.NewSynchroniser(
		theConfiguration.Synchronise,
		cache,
		dir,
		tracker,
		theConfiguration.Peering.Node(),
		theConfiguration.Peering.Settings(),
	)

	processes := background.Processes{
		iocache.NewPurger(cache, theConfiguration.Cache.PurgeEvery()),
		synchroniser,
	}

	// reload log levels when the configuration file changes
	channels := newWatcherChannel()
	watcher, err := newFileWatcher(configurationFile, logger.New(fileWatcherLoggerPrefix), channels)
	if nil != err {
		log.Warnf("configuration file watcher error: %s", err)
	} else {
		processes = append(processes, watcher, newReloader(configurationFile, channels))
	}

	bg := background.Start(processes, nil)
	defer bg.Stop()

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}
}
