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

package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	indent = 2 // spaces before follow-up notices
)

// 📦 Banner is what the startup banner shows
type Banner struct {
	Root       string   // Watched directory
	Project    string   // Project name sent with every upload
	Ignored    []string // Ignore patterns
	BackendURL string   // Indexing backend
}

// 🎯 Logger prints one console line per watch lifecycle event and mirrors it
// into zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	errs    io.Writer // failure lines; defaults to console
	mu      sync.Mutex
}

// Option configures a Logger.
type Option func(*Logger)

// WithErrorWriter sends failure lines (failed uploads, watcher errors and
// Error/Errorf) to w instead of the console writer.
func WithErrorWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.errs = w
	}
}

// 🏭 New creates a new logger
func New(console io.Writer, zlog zerolog.Logger, opts ...Option) *Logger {
	l := &Logger{
		zlog:    zlog,
		console: console,
		errs:    console,
		mu:      sync.Mutex{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// line prints a symbol prefixed line in the given color
func (l *Logger) line(symbol string, attr color.Attribute, msg string) {
	l.write(l.console, symbol, attr, msg)
}

// failure is line for the error writer.
func (l *Logger) failure(symbol string, attr color.Attribute, msg string) {
	l.write(l.errs, symbol, attr, msg)
}

func (l *Logger) write(w io.Writer, symbol string, attr color.Attribute, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(w, "%s %s\n", color.New(attr).Sprint(symbol), msg)
}

// 🚀 Banner prints the watch configuration once at startup
func (l *Logger) Banner(b Banner) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := pterm.Info.
		WithPrefix(pterm.Prefix{Text: "MGREP", Style: pterm.Info.Prefix.Style}).
		WithWriter(l.console)

	p.Printfln("Watching directory: %s", b.Root)
	p.Printfln("Project Name: %s", b.Project)
	p.Printfln("Ignoring: %s", strings.Join(b.Ignored, ", "))
	p.Printfln("Backend URL: %s", b.BackendURL)

	l.zlog.Info().
		Str("root", b.Root).
		Str("project", b.Project).
		Strs("ignored", b.Ignored).
		Str("backend_url", b.BackendURL).
		Msg("watching directory")
}

// 📤 IndexingStarted logs the start of an upload
func (l *Logger) IndexingStarted(rel string) {
	l.line("→", color.FgBlue, fmt.Sprintf("Indexing %s...", rel))
	l.zlog.Info().Str("file", rel).Msg("indexing")
}

// UnknownType notes that a file with an unlisted extension is sent as text.
func (l *Logger) UnknownType(rel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "%*s%s\n", indent, "", color.New(color.FgYellow).Sprint("Unknown file type, attempting as text..."))
	l.zlog.Info().Str("file", rel).Msg("unknown file type, attempting as text")
}

// ✅ Indexed logs a successful upload
func (l *Logger) Indexed(rel string) {
	l.line("✓", color.FgGreen, fmt.Sprintf("Successfully indexed %s.", rel))
	l.zlog.Info().Str("file", rel).Msg("indexed")
}

// ❌ IndexFailed logs a failed upload
func (l *Logger) IndexFailed(rel string, err error) {
	l.failure("✗", color.FgRed, fmt.Sprintf("Error indexing %s: %v", rel, err))
	l.zlog.Error().Str("file", rel).Err(err).Msg("indexing failed")
}

// 🗑️ DeletionNotPropagated logs a local deletion the backend was not told about
func (l *Logger) DeletionNotPropagated(rel string) {
	l.line("⊘", color.FgYellow, fmt.Sprintf("File deleted: %s. (Deletion from index not implemented yet)", rel))
	l.zlog.Warn().Str("file", rel).Msg("deletion not propagated")
}

// ⚠️ WatcherError logs an error from the filesystem watcher
func (l *Logger) WatcherError(err error) {
	l.failure("⚠️ ", color.FgYellow, fmt.Sprintf("Watcher error: %v", err))
	l.zlog.Error().Err(err).Msg("watcher error")
}

// 👀 InitialScanComplete logs the end of the backfill
func (l *Logger) InitialScanComplete() {
	l.line("✅", color.FgGreen, "Initial scan complete. Watching for changes...")
	l.zlog.Info().Msg("initial scan complete")
}

// 🛑 Stopped logs the end of the session with its totals
func (l *Logger) Stopped(summary string) {
	l.line("◆", color.FgMagenta, fmt.Sprintf("Stopped watching. %s", summary))
	l.zlog.Info().Str("summary", summary).Msg("stopped watching")
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("mgrep")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.line("ℹ️ ", color.FgCyan, msg)
	l.zlog.Info().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.failure("❌", color.FgRed, msg)
	l.zlog.Error().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}
