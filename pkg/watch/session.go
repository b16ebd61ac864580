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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/walteh/mgrep/pkg/change"
	"github.com/walteh/mgrep/pkg/classify"
	"github.com/walteh/mgrep/pkg/config"
	"github.com/walteh/mgrep/pkg/debounce"
	"github.com/walteh/mgrep/pkg/ignore"
	"github.com/walteh/mgrep/pkg/log"
	"github.com/walteh/mgrep/pkg/metrics"
	"github.com/walteh/mgrep/pkg/upload"
)

var (
	// ErrRootNotDirectory is returned by New when the watch root is a file.
	ErrRootNotDirectory = errors.Base("watch root is not a directory")
	// ErrWatcherClosed is returned by Run when the filesystem watcher stops
	// delivering events without being asked to.
	ErrWatcherClosed = errors.Base("filesystem watcher closed unexpectedly")
	// ErrRootRemoved is returned by Run when the watch root is deleted or
	// renamed while watching.
	ErrRootRemoved = errors.Base("watch root was removed")
)

// 📤 Indexer uploads one settled change
type Indexer interface {
	Upload(ctx context.Context, s change.Settled, class classify.Classification) upload.Outcome
}

// 🔄 State is the lifecycle state of a session
type State int32

const (
	Initializing State = iota
	ActiveWatching
	ShuttingDown
	Stopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case ActiveWatching:
		return "active"
	case ShuttingDown:
		return "shutting-down"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// 📊 Stats is a snapshot of the session counters
type Stats struct {
	Settled int64 // Changes emitted by the debouncer
	Indexed int64 // Uploads accepted by the backend
	Failed  int64 // Uploads that ended in an error
	Deleted int64 // Deletions acknowledged locally
	Ignored int64 // Raw events dropped by the ignore filter
}

func (s Stats) String() string {
	return fmt.Sprintf("settled=%d indexed=%d failed=%d deleted=%d ignored=%d",
		s.Settled, s.Indexed, s.Failed, s.Deleted, s.Ignored)
}

// ⚙️ Options configures a session
type Options struct {
	// Root is the directory to watch. Relative paths are resolved against the
	// working directory.
	Root string
	// Credentials identify the session to the backend.
	Credentials config.Credentials

	// Filter defaults to ignore.Default().
	Filter *ignore.Filter
	// Window is the debounce stability window; zero means debounce.DefaultWindow.
	Window time.Duration
	// Concurrency bounds parallel uploads; zero means config.DefaultUploadConcurrency.
	Concurrency int

	// Indexer defaults to an upload.Uploader built from Credentials and UploadOptions.
	Indexer       Indexer
	UploadOptions []upload.Option

	// Console defaults to a logger that only writes to the context's zerolog logger.
	Console *log.Logger
	// Metrics may be nil.
	Metrics *metrics.Recorder
	// OnOutcome, when set, is called after every upload attempt.
	OnOutcome func(upload.Outcome)
}

// 👀 Session owns one watch of one directory tree
type Session struct {
	id      string
	root    string
	creds   config.Credentials
	filter  *ignore.Filter
	window  time.Duration
	workers int
	indexer Indexer
	console *log.Logger
	metrics *metrics.Recorder
	observe func(upload.Outcome)

	state atomic.Int32
	ready chan struct{}

	settled atomic.Int64
	indexed atomic.Int64
	failed  atomic.Int64
	deleted atomic.Int64
	ignored atomic.Int64

	qmu    sync.Mutex
	queues map[string][]change.Settled // a key is present while its path has a worker

	// set by Run before the event loop starts
	watcher *fsWatcher
}

// 🏭 New validates the root and credentials and returns a session in the
// Initializing state
func New(ctx context.Context, opts Options) (*Session, error) {
	root, err := resolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}

	creds := opts.Credentials
	if err := creds.Validate(); err != nil {
		return nil, errors.Errorf("validating credentials: %w", err)
	}
	if creds.ProjectName == "" {
		creds.ProjectName = config.DefaultProject
	}

	s := &Session{
		id:      uuid.NewString(),
		root:    root,
		creds:   creds,
		filter:  opts.Filter,
		window:  opts.Window,
		workers: opts.Concurrency,
		indexer: opts.Indexer,
		console: opts.Console,
		metrics: opts.Metrics,
		observe: opts.OnOutcome,
		ready:   make(chan struct{}),
		queues:  make(map[string][]change.Settled),
	}

	if s.filter == nil {
		s.filter = ignore.Default()
	}
	if s.window <= 0 {
		s.window = debounce.DefaultWindow
	}
	if s.workers <= 0 {
		s.workers = config.DefaultUploadConcurrency
	}
	if s.indexer == nil {
		s.indexer = upload.New(creds, opts.UploadOptions...)
	}
	if s.console == nil {
		s.console = log.New(io.Discard, *zerolog.Ctx(ctx))
	}

	zerolog.Ctx(ctx).Debug().
		Str("session", s.id).
		Str("root", root).
		Str("project", creds.ProjectName).
		Dur("window", s.window).
		Int("concurrency", s.workers).
		Msg("watch session created")

	return s, nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Errorf("resolving watch root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Errorf("watch root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", errors.Errorf("%s: %w", abs, ErrRootNotDirectory)
	}
	// events are reported against the real path
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Errorf("resolving symlinks in %s: %w", abs, err)
	}
	return resolved, nil
}

// ID returns the session id used to correlate log lines.
func (s *Session) ID() string { return s.id }

// Root returns the resolved watch root.
func (s *Session) Root() string { return s.root }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Ready is closed once the initial scan has been delivered to the debouncer.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Settled: s.settled.Load(),
		Indexed: s.indexed.Load(),
		Failed:  s.failed.Load(),
		Deleted: s.deleted.Load(),
		Ignored: s.ignored.Load(),
	}
}

// 🚀 Run watches until ctx is cancelled. It returns nil on a requested
// shutdown and an error if the watch could not start or the watcher died.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.state.CompareAndSwap(int32(Initializing), int32(ActiveWatching)) {
		return errors.Errorf("session %s already started", s.id)
	}

	logger := zerolog.Ctx(ctx).With().Str("session", s.id).Logger()
	ctx = logger.WithContext(ctx)

	w, err := newFSWatcher(ctx, s.root, s.filter, s.metrics)
	if err != nil {
		s.state.Store(int32(Stopped))
		return err
	}
	if err := w.Start(); err != nil {
		s.state.Store(int32(Stopped))
		return err
	}
	s.watcher = w

	deb := debounce.New(s.root, s.window)
	sem := semaphore.NewWeighted(int64(s.workers))
	var uploads errgroup.Group

	// uploads outlive the cancellation that triggers shutdown
	uploadCtx := context.WithoutCancel(ctx)

	s.console.Banner(log.Banner{
		Root:       s.root,
		Project:    s.creds.ProjectName,
		Ignored:    s.filter.Patterns(),
		BackendURL: s.creds.BackendURL,
	})

	ready := w.Ready()

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("shutdown requested")
			break loop

		case <-w.Exited():
			err = w.Err()
			if err == nil {
				err = ErrWatcherClosed
			}
			break loop

		case ev := <-w.Events():
			s.route(ctx, ev, deb)

		case werr := <-w.Errors():
			s.metrics.WatcherError()
			s.console.WatcherError(werr)

		case <-ready:
			ready = nil
			close(s.ready)
			s.console.InitialScanComplete()

		case st := <-deb.Settled():
			s.settled.Add(1)
			s.metrics.Settled(st.Kind)
			s.enqueue(uploadCtx, &uploads, sem, st)
		}
	}

	s.state.Store(int32(ShuttingDown))

	if stopErr := w.Stop(); stopErr != nil {
		logger.Warn().Err(stopErr).Msg("stopping watcher")
	}
	deb.Stop()
	_ = uploads.Wait()

	s.state.Store(int32(Stopped))
	s.console.Stopped(s.Stats().String())

	if err != nil {
		return errors.Errorf("watching %s: %w", s.root, err)
	}
	return nil
}

// route applies the ignore filter and hands the event to the debouncer.
func (s *Session) route(ctx context.Context, ev change.Event, deb *debounce.Debouncer) {
	rel := change.RelativeTo(s.root, ev.Path)
	if s.filter.ShouldIgnore(rel) {
		s.ignored.Add(1)
		s.metrics.Ignored()
		zerolog.Ctx(ctx).Trace().Str("path", rel).Str("kind", ev.Kind.String()).Msg("ignored")
		return
	}
	s.metrics.Event(ev.Kind)
	deb.Feed(ev)
}

// enqueue appends st to its path's queue and starts a worker for the path if
// none is running.
func (s *Session) enqueue(ctx context.Context, g *errgroup.Group, sem *semaphore.Weighted, st change.Settled) {
	s.qmu.Lock()
	q, busy := s.queues[st.Path]
	s.queues[st.Path] = append(q, st)
	s.qmu.Unlock()

	if busy {
		return
	}

	g.Go(func() error {
		s.drain(ctx, sem, st.Path)
		return nil
	})
}

// drain uploads the queued changes for path one at a time, in settle order.
func (s *Session) drain(ctx context.Context, sem *semaphore.Weighted, path string) {
	for {
		s.qmu.Lock()
		q := s.queues[path]
		if len(q) == 0 || s.State() >= ShuttingDown {
			if len(q) > 0 {
				zerolog.Ctx(ctx).Debug().Str("path", path).Int("dropped", len(q)).Msg("dropping queued uploads on shutdown")
			}
			delete(s.queues, path)
			s.qmu.Unlock()
			return
		}
		next := q[0]
		s.queues[path] = q[1:]
		s.qmu.Unlock()

		// ctx is never cancelled so Acquire only returns once a slot is free
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		s.process(ctx, next)
		sem.Release(1)
	}
}

// process classifies and uploads one settled change and reports the outcome.
func (s *Session) process(ctx context.Context, st change.Settled) {
	class := classify.Classify(st.Path)

	if st.Kind != change.Deleted {
		s.console.IndexingStarted(st.RelativePath)
		if class == classify.UnknownTreatedAsText {
			s.console.UnknownType(st.RelativePath)
		}
	}

	s.metrics.UploadStarted()
	out := s.indexer.Upload(ctx, st, class)
	s.metrics.Outcome(out)

	switch out.Result {
	case upload.Indexed:
		s.indexed.Add(1)
		s.console.Indexed(st.RelativePath)
	case upload.DeletionNotPropagated:
		s.deleted.Add(1)
		s.console.DeletionNotPropagated(st.RelativePath)
	default:
		s.failed.Add(1)
		s.console.IndexFailed(st.RelativePath, out.Err)
	}

	if s.observe != nil {
		s.observe(out)
	}
}
