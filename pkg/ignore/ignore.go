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

// Package ignore decides which paths under the watch root are never indexed.
package ignore

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// DefaultPatterns covers version control metadata, dependency and virtualenv
// directories, the credential file, log files and python bytecode.
var DefaultPatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.venv/**",
	"**/venv/**",
	"**/.env",
	"**/*.log",
	"**/__pycache__/**",
	"**/*.pyc",
}

// probe is joined onto a directory to ask whether anything inside it survives.
const probe = "_"

// 🚫 Filter matches slash separated paths relative to the watch root
type Filter struct {
	patterns []string
}

// 🏭 New creates a filter from the given glob patterns
func New(patterns ...string) (*Filter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &Filter{patterns: append([]string(nil), patterns...)}, nil
}

// Default returns a filter over DefaultPatterns.
func Default() *Filter {
	f, err := New(DefaultPatterns...)
	if err != nil {
		panic(err)
	}
	return f
}

// Patterns returns a copy of the configured patterns.
func (f *Filter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// 🔍 ShouldIgnore reports whether rel (relative to the root) must be suppressed
func (f *Filter) ShouldIgnore(rel string) bool {
	rel = normalize(rel)
	if rel == "." || rel == "" {
		return false
	}
	for _, pattern := range f.patterns {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

// ShouldSkipDir reports whether nothing below the directory rel can ever be
// indexed, so the watcher need not subscribe to it.
func (f *Filter) ShouldSkipDir(rel string) bool {
	rel = normalize(rel)
	if rel == "." || rel == "" {
		return false
	}
	return f.ShouldIgnore(path.Join(rel, probe))
}

func normalize(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "./")
	return strings.TrimSuffix(rel, "/")
}
