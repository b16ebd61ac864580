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

// Package metrics exposes prometheus counters for a watch session.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/mgrep/pkg/change"
	"github.com/walteh/mgrep/pkg/upload"
)

const namespace = "mgrep"

// 📈 Recorder owns a registry and the session's collectors. A nil *Recorder
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	eventsTotal        *prometheus.CounterVec
	eventsIgnored      prometheus.Counter
	changesSettled     *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
	uploadDuration     *prometheus.HistogramVec
	uploadsInFlight    prometheus.Gauge
	watcherErrors      prometheus.Counter
	watchedDirectories prometheus.Gauge
}

// 🏭 New creates a recorder with a fresh registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		eventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fs_events_total",
			Help:      "Raw filesystem events that passed the ignore filter",
		}, []string{"kind"}),
		eventsIgnored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fs_events_ignored_total",
			Help:      "Raw filesystem events suppressed by the ignore filter",
		}),
		changesSettled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_settled_total",
			Help:      "Changes emitted by the debouncer",
		}, []string{"kind"}),
		uploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload outcomes by classification and result",
		}, []string{"classification", "result"}),
		uploadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent per upload attempt",
			Buckets:   prometheus.DefBuckets,
		}, []string{"classification"}),
		uploadsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_in_flight",
			Help:      "Uploads currently running",
		}),
		watcherErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_errors_total",
			Help:      "Errors reported by the filesystem watcher",
		}),
		watchedDirectories: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_directories",
			Help:      "Directories currently subscribed",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Event records a raw event that will be debounced.
func (r *Recorder) Event(kind change.Kind) {
	if r == nil {
		return
	}
	r.eventsTotal.WithLabelValues(kind.String()).Inc()
}

// Ignored records a raw event dropped by the ignore filter.
func (r *Recorder) Ignored() {
	if r == nil {
		return
	}
	r.eventsIgnored.Inc()
}

// Settled records a change emitted by the debouncer.
func (r *Recorder) Settled(kind change.Kind) {
	if r == nil {
		return
	}
	r.changesSettled.WithLabelValues(kind.String()).Inc()
}

// UploadStarted bumps the in-flight gauge.
func (r *Recorder) UploadStarted() {
	if r == nil {
		return
	}
	r.uploadsInFlight.Inc()
}

// 📊 Outcome records a finished upload and drops the in-flight gauge
func (r *Recorder) Outcome(out upload.Outcome) {
	if r == nil {
		return
	}
	r.uploadsInFlight.Dec()
	class := out.Classification.String()
	r.uploadsTotal.WithLabelValues(class, out.Result.String()).Inc()
	if out.Result != upload.DeletionNotPropagated {
		r.uploadDuration.WithLabelValues(class).Observe(out.Duration.Seconds())
	}
}

// WatcherError records an error surfaced by the filesystem watcher.
func (r *Recorder) WatcherError() {
	if r == nil {
		return
	}
	r.watcherErrors.Inc()
}

// WatchedDirectories sets the number of subscribed directories.
func (r *Recorder) WatchedDirectories(n int) {
	if r == nil {
		return
	}
	r.watchedDirectories.Set(float64(n))
}

// Handler returns the exposition handler for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// 🌐 Serve exposes /metrics on addr until ctx is done
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Errorf("listening on %s: %w", addr, err)
	}
	return r.serve(ctx, ln)
}

func (r *Recorder) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	zerolog.Ctx(ctx).Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return errors.Errorf("serving metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Errorf("shutting down metrics server: %w", err)
	}
	return nil
}
