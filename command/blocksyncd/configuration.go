// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/blocksync/configuration"
	"github.com/bitmark-inc/blocksync/iocache"
	"github.com/bitmark-inc/blocksync/peer"
	"github.com/bitmark-inc/blocksync/peer/reputation"
	"github.com/bitmark-inc/logger"
)

// basic defaults (directories and files are relative to the "DataDirectory" from Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultCacheDirectory = "cache"
	defaultPeerDatabase   = "peers.leveldb"
	defaultIdentityFile   = "peer.private"

	defaultLogDirectory = "log"
	defaultLogFile      = "blocksyncd.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size
)

// LoglevelMap - to hold log levels
type LoglevelMap map[string]string

var (
	defaultLogLevels = LoglevelMap{
		logger.DefaultTag: "critical",
	}
)

// Configuration - the daemon configuration file layout
type Configuration struct {
	DataDirectory string                        `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string                        `gluamapper:"pidfile" json:"pidfile"`
	PeerDatabase  string                        `gluamapper:"peer_database" json:"peer_database"`
	IdentityFile  string                        `gluamapper:"identity_file" json:"identity_file"`
	Cache         iocache.Configuration         `gluamapper:"cache" json:"cache"`
	Peering       peer.Configuration            `gluamapper:"peering" json:"peering"`
	Reputation    reputation.Configuration      `gluamapper:"reputation" json:"reputation"`
	Synchronise   peer.SynchroniseConfiguration `gluamapper:"synchronise" json:"synchronise"`
	Logging       logger.Configuration          `gluamapper:"logging" json:"logging"`
}

// read and validate the configuration file, all relative paths are
// made absolute with respect to the data directory
func getConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	cache := iocache.DefaultConfiguration()
	cache.Directory = defaultCacheDirectory

	options := &Configuration{
		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default
		PeerDatabase:  defaultPeerDatabase,
		IdentityFile:  defaultIdentityFile,
		Cache:         cache,
		Peering:       peer.DefaultConfiguration(),
		Reputation:    reputation.DefaultConfiguration(),
		Synchronise:   peer.DefaultSynchroniseConfiguration(),

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := configuration.ParseConfigurationFile(configurationFileName, options); nil != err {
		return nil, err
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("Path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("Path: %q is not a directory", options.DataDirectory)
	}

	mustBeAbsolute := []*string{
		&options.PeerDatabase,
		&options.IdentityFile,
		&options.Cache.Directory,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = configuration.ResolvePath(options.DataDirectory, *f)
	}

	if "" != options.PidFile {
		options.PidFile = configuration.ResolvePath(options.DataDirectory, options.PidFile)
	}

	// log file must be a plain name inside the log directory
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fmt.Errorf("Files: %q is not plain name", options.Logging.File)
	}

	for _, d := range []string{
		options.Cache.Directory,
		options.Logging.Directory,
	} {
		if err := os.MkdirAll(d, 0700); nil != err {
			return nil, err
		}
	}

	return options, nil
}
