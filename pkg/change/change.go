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

// Package change holds the value types that flow through the watch pipeline.
package change

import (
	"path/filepath"
	"strings"
	"time"
)

// 🔄 Kind is the kind of filesystem change observed for a path
type Kind int

const (
	// Created means the file appeared (including synthetic backfill events).
	Created Kind = iota
	// Modified means the file content was written.
	Modified
	// Deleted means the file was removed or renamed away.
	Deleted
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// 📥 Event is a single raw filesystem notification
type Event struct {
	Path string    // Absolute path
	Kind Kind      // What happened
	Time time.Time // When it was observed
}

// 📦 Settled is one logical change to a path after its quiet period elapsed
type Settled struct {
	Path         string // Absolute path
	Kind         Kind   // Kind of the last raw event in the burst
	RelativePath string // Slash separated path relative to the watch root
}

// RelativeTo returns path relative to root using forward slashes.
// Paths outside root are returned cleaned and slash separated.
func RelativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}
