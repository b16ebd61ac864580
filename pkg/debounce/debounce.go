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

// Package debounce coalesces bursts of raw filesystem events per path into a
// single settled change once the path has been quiet for a stability window.
package debounce

import (
	"sync"
	"time"

	"github.com/walteh/mgrep/pkg/change"
)

// DefaultWindow is the quiet period a path needs before it settles.
const DefaultWindow = 50 * time.Millisecond

// ⏳ pending is the live countdown for one path
type pending struct {
	last  change.Event
	timer *time.Timer
	gen   uint64 // bumped on every reset; a firing timer must still match
}

// ⏱️ Debouncer turns a noisy event stream into settled changes
type Debouncer struct {
	root   string
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pending
	stopped bool

	settled chan change.Settled
	done    chan struct{}
}

// 🏭 New creates a debouncer for paths under root
func New(root string, window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{
		root:    root,
		window:  window,
		pending: make(map[string]*pending),
		settled: make(chan change.Settled),
		done:    make(chan struct{}),
	}
}

// Window returns the configured stability window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Settled returns the channel of settled changes. It is never closed; select
// on it together with your own shutdown signal.
func (d *Debouncer) Settled() <-chan change.Settled {
	return d.settled
}

// 📥 Feed records a raw event and (re)starts the countdown for its path
func (d *Debouncer) Feed(ev change.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[ev.Path]; ok {
		p.last = ev
		p.gen++
		p.timer.Stop()
		gen := p.gen
		p.timer = time.AfterFunc(d.window, func() { d.fire(ev.Path, gen) })
		return
	}

	p := &pending{last: ev}
	d.pending[ev.Path] = p
	p.timer = time.AfterFunc(d.window, func() { d.fire(ev.Path, 0) })
}

// fire emits the settled change for path unless a newer event reset it.
func (d *Debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok || p.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	out := change.Settled{
		Path:         path,
		Kind:         p.last.Kind,
		RelativePath: change.RelativeTo(d.root, path),
	}

	select {
	case d.settled <- out:
	case <-d.done:
	}
}

// Pending returns the number of paths with a running countdown.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// 🛑 Stop discards every pending countdown without emitting. Later calls to
// Feed are ignored. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
	close(d.done)
}
