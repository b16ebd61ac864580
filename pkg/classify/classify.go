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

// Package classify maps file paths to the representation used to upload them.
package classify

import (
	"path/filepath"
	"strings"
)

// 🏷️ Classification is the content handling mode for a file
type Classification int

const (
	// UnknownTreatedAsText is used for extensions in neither table.
	UnknownTreatedAsText Classification = iota
	// Text files are sent as JSON content.
	Text
	// Binary files are streamed as multipart uploads.
	Binary
)

// String returns a human-readable representation of the classification.
func (c Classification) String() string {
	switch c {
	case Binary:
		return "binary"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// IsText reports whether the file is read and sent as text.
func (c Classification) IsText() bool {
	return c != Binary
}

// images, office documents, archives
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".webp": {}, ".svg": {}, ".ico": {},
	".pdf": {}, ".docx": {}, ".doc": {}, ".xlsx": {}, ".xls": {}, ".pptx": {}, ".ppt": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
}

var textExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {}, ".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".hpp": {},
	".go": {}, ".rs": {}, ".rb": {}, ".php": {}, ".html": {}, ".css": {}, ".scss": {}, ".sass": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".xml": {}, ".md": {}, ".txt": {}, ".sh": {}, ".bash": {},
	".sql": {}, ".r": {}, ".swift": {}, ".kt": {}, ".cs": {}, ".vb": {}, ".pl": {}, ".lua": {},
}

// 🎯 Classify returns the classification for path based on its extension
func Classify(path string) Classification {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := binaryExtensions[ext]; ok {
		return Binary
	}
	if _, ok := textExtensions[ext]; ok {
		return Text
	}
	return UnknownTreatedAsText
}
