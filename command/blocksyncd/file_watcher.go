// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bitmark-inc/blocksync/fault"
	"github.com/bitmark-inc/logger"
)

const (
	fileWatcherLoggerPrefix = "file-watcher"
)

// WatcherChannel - events raised for the watched file
type WatcherChannel struct {
	change chan struct{}
	remove chan struct{}
}

func newWatcherChannel() WatcherChannel {
	return WatcherChannel{
		change: make(chan struct{}, 1),
		remove: make(chan struct{}, 1),
	}
}

// FileWatcher - notify on changes to a single file
type FileWatcher struct {
	log      *logger.L
	channels WatcherChannel
	watcher  *fsnotify.Watcher
	filePath string
}

func newFileWatcher(targetFile string, log *logger.L, channels WatcherChannel) (*FileWatcher, error) {
	filePath, err := filepath.Abs(filepath.Clean(targetFile))
	if nil != err {
		return nil, err
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fault.FileNotFound
	}

	watcher, err := fsnotify.NewWatcher()
	if nil != err {
		log.Errorf("new watcher with error: %s", err)
		return nil, err
	}

	return &FileWatcher{
		log:      log,
		channels: channels,
		watcher:  watcher,
		filePath: filePath,
	}, nil
}

// Run - background process forwarding file events until shutdown
//
// the directory is watched rather than the file so that editors which
// replace the file are seen as a change
func (w *FileWatcher) Run(args interface{}, shutdown <-chan struct{}) {
	defer w.watcher.Close()

	err := w.watcher.Add(filepath.Dir(w.filePath))
	if nil != err {
		w.log.Errorf("watcher add error: %s, abort", err)
		return
	}

loop:
	for {
		select {
		case <-shutdown:
			break loop

		case err, ok := <-w.watcher.Errors:
			if !ok {
				break loop
			}
			w.log.Errorf("watcher error: %s", err)

		case event, ok := <-w.watcher.Events:
			if !ok {
				break loop
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue loop
			}
			w.log.Debugf("file event: %v", event)

			if watcherEventFileRemove(event) {
				w.log.Warnf("file: %s removed", w.filePath)
				w.sendEvent(w.channels.remove, "remove")
			} else if watcherEventFileChange(event) {
				w.sendEvent(w.channels.change, "change")
			}
		}
	}
	w.log.Info("shutting down…")
}

func (w *FileWatcher) sendEvent(ch chan<- struct{}, name string) {
	select {
	case ch <- struct{}{}:
	default:
		w.log.Debugf("event channel %s full, discard event", name)
	}
}

func watcherEventFileRemove(event fsnotify.Event) bool {
	return event.Op&fsnotify.Remove == fsnotify.Remove ||
		event.Op&fsnotify.Rename == fsnotify.Rename
}

func watcherEventFileChange(event fsnotify.Event) bool {
	return event.Op&fsnotify.Write == fsnotify.Write ||
		event.Op&fsnotify.Create == fsnotify.Create ||
		event.Op&fsnotify.Chmod == fsnotify.Chmod
}

// reloader - re-read the configuration on change and apply the new
// log levels, other settings need a restart
type reloader struct {
	log      *logger.L
	fileName string
	channels WatcherChannel
	load     func(string) (*Configuration, error)
	apply    func(map[string]string)
}

func newReloader(fileName string, channels WatcherChannel) *reloader {
	return &reloader{
		log:      logger.New("reloader"),
		fileName: fileName,
		channels: channels,
		load:     getConfiguration,
		apply:    func(levels map[string]string) { logger.LoadLevels(levels) },
	}
}

// Run - background process
func (r *reloader) Run(args interface{}, shutdown <-chan struct{}) {
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-r.channels.remove:
			r.log.Warnf("configuration file: %q removed", r.fileName)
		case <-r.channels.change:
			conf, err := r.load(r.fileName)
			if nil != err {
				r.log.Errorf("failed to read configuration from: %q  error: %s", r.fileName, err)
				continue loop
			}
			r.log.Infof("reload log levels: %v", conf.Logging.Levels)
			r.apply(conf.Logging.Levels)
		}
	}
}
