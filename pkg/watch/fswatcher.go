// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/mgrep/pkg/change"
	"github.com/walteh/mgrep/pkg/ignore"
	"github.com/walteh/mgrep/pkg/metrics"
)

// 👀 fsWatcher recursively subscribes to a directory tree, replays the
// existing files as Created events and then streams live changes
type fsWatcher struct {
	root    string
	filter  *ignore.Filter
	metrics *metrics.Recorder
	logger  zerolog.Logger

	fw     *fsnotify.Watcher
	events chan change.Event
	errors chan error
	ready  chan struct{}
	exited chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	dirs    map[string]struct{}
	gone    map[string]struct{} // unsubscribed directories whose late events are dropped
	stopped bool
	err     error // why the event loop ended on its own
}

func newFSWatcher(ctx context.Context, root string, filter *ignore.Filter, rec *metrics.Recorder) (*fsWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating fsnotify watcher: %w", err)
	}

	return &fsWatcher{
		root:    root,
		filter:  filter,
		metrics: rec,
		logger:  zerolog.Ctx(ctx).With().Str("component", "fswatcher").Logger(),
		fw:      fw,
		events:  make(chan change.Event),
		errors:  make(chan error, 16),
		ready:   make(chan struct{}),
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
		dirs:    make(map[string]struct{}),
		gone:    make(map[string]struct{}),
	}, nil
}

// Start subscribes to the root and begins the backfill. Failing to watch the
// root itself is the only error; problems below it are sent on Errors.
func (w *fsWatcher) Start() error {
	if err := w.fw.Add(w.root); err != nil {
		_ = w.fw.Close()
		return errors.Errorf("watching %s: %w", w.root, err)
	}
	w.track(w.root)

	w.wg.Add(1)
	go w.run()
	return nil
}

// Events is unbuffered; during backfill every send completes before Ready closes.
func (w *fsWatcher) Events() <-chan change.Event { return w.events }

func (w *fsWatcher) Errors() <-chan error { return w.errors }

// Ready is closed once every pre-existing file has been delivered.
func (w *fsWatcher) Ready() <-chan struct{} { return w.ready }

// Exited is closed when the event loop returns, either after Stop or because
// fsnotify closed its channels.
func (w *fsWatcher) Exited() <-chan struct{} { return w.exited }

// Err returns the reason the event loop exited without Stop, if it knows one.
func (w *fsWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// WatchedDirs returns the number of subscribed directories.
func (w *fsWatcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// 🛑 Stop closes the fsnotify handle and waits for the event loop. Safe to
// call multiple times.
func (w *fsWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.done)
	err := w.fw.Close()
	w.wg.Wait()
	if err != nil {
		return errors.Errorf("closing fsnotify watcher: %w", err)
	}
	return nil
}

func (w *fsWatcher) run() {
	defer w.wg.Done()
	defer close(w.exited)

	if !w.addTree(w.root, true) {
		return
	}
	close(w.ready)
	w.logger.Debug().Int("dirs", w.WatchedDirs()).Msg("backfill complete")

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.handle(event) {
				return
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if !w.report(err) {
				return
			}
		}
	}
}

// handle converts one fsnotify event; it returns false once the watcher is
// shutting down or the root itself is gone.
func (w *fsWatcher) handle(event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	if path == w.root {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			w.fail(errors.Errorf("%s: %w", w.root, ErrRootRemoved))
			return false
		}
		return true
	}

	switch {
	case event.Has(fsnotify.Create):
		w.forget(path)
		info, err := os.Lstat(path)
		if err == nil && info.IsDir() {
			// files inside a new directory are announced by the walk
			return w.addTree(path, false)
		}
		if err == nil && !info.Mode().IsRegular() {
			return true
		}
		return w.emit(path, change.Created)

	case event.Has(fsnotify.Write):
		return w.emit(path, change.Modified)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.untrack(path) {
			w.logger.Debug().Str("dir", path).Msg("directory removed, unsubscribed")
			return true
		}
		if w.wasDir(path) {
			return true
		}
		// the new name, if any, arrives as its own Create
		return w.emit(path, change.Deleted)
	}

	// chmod
	return true
}

// addTree subscribes to dir and every non-pruned directory below it and emits
// Created for each regular file found. It returns false once the watcher is
// shutting down.
func (w *fsWatcher) addTree(dir string, isRoot bool) bool {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-w.done:
			return filepath.SkipAll
		default:
		}

		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
			return nil
		}

		rel := change.RelativeTo(w.root, path)

		if d.IsDir() {
			if path != w.root && w.filter.ShouldSkipDir(rel) {
				return filepath.SkipDir
			}
			if !(isRoot && path == w.root) {
				if err := w.fw.Add(path); err != nil {
					if !w.report(errors.Errorf("watching %s: %w", rel, err)) {
						return filepath.SkipAll
					}
					return filepath.SkipDir
				}
				w.track(path)
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if !w.emit(path, change.Created) {
			return filepath.SkipAll
		}
		return nil
	})

	if err != nil {
		// a directory that vanished before we could read it is not worth reporting
		if errors.Is(err, fs.ErrNotExist) {
			return w.alive()
		}
		return w.report(errors.Errorf("walking %s: %w", dir, err))
	}
	return w.alive()
}

func (w *fsWatcher) emit(path string, kind change.Kind) bool {
	select {
	case w.events <- change.Event{Path: path, Kind: kind, Time: time.Now()}:
		return true
	case <-w.done:
		return false
	}
}

func (w *fsWatcher) report(err error) bool {
	select {
	case w.errors <- err:
		return true
	case <-w.done:
		return false
	}
}

func (w *fsWatcher) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
	w.logger.Error().Err(err).Msg("watcher can no longer deliver events")
}

func (w *fsWatcher) alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *fsWatcher) track(dir string) {
	w.mu.Lock()
	w.dirs[dir] = struct{}{}
	n := len(w.dirs)
	w.mu.Unlock()
	w.metrics.WatchedDirectories(n)
}

// untrack drops dir and every tracked directory below it. It reports false
// when dir was not a watched directory.
func (w *fsWatcher) untrack(dir string) bool {
	w.mu.Lock()
	if _, ok := w.dirs[dir]; !ok || dir == w.root {
		w.mu.Unlock()
		return false
	}

	prefix := dir + string(filepath.Separator)
	var removed []string
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
			w.gone[d] = struct{}{}
			removed = append(removed, d)
		}
	}
	n := len(w.dirs)
	w.mu.Unlock()

	for _, d := range removed {
		// the kernel already dropped watches on deleted directories
		_ = w.fw.Remove(d)
	}
	w.metrics.WatchedDirectories(n)
	return true
}

// wasDir reports whether path is a directory that has already been
// unsubscribed, so a late Remove for it is not mistaken for a file deletion.
func (w *fsWatcher) wasDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.gone[path]
	return ok
}

// forget clears path from the unsubscribed set once something new appears there.
func (w *fsWatcher) forget(path string) {
	w.mu.Lock()
	delete(w.gone, path)
	w.mu.Unlock()
}
