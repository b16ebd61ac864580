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

package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// 📦 buildInfo is what the binary knows about its own build
type buildInfo struct {
	version   string
	revision  string
	time      string
	modified  bool
	goVersion string
	platform  string
}

func readBuildInfo() buildInfo {
	info := buildInfo{
		version:   "dev",
		goVersion: runtime.Version(),
		platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.version = v
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.revision = setting.Value
		case "vcs.time":
			info.time = setting.Value
		case "vcs.modified":
			info.modified = setting.Value == "true"
		}
	}
	return info
}

// userAgent identifies this build to the indexing backend
func userAgent() string {
	info := readBuildInfo()
	return fmt.Sprintf("mgrep/%s (%s)", info.version, info.platform)
}

// formatVersion renders the body printed under the version header
func formatVersion() string {
	info := readBuildInfo()

	revision := info.revision
	if info.modified {
		revision += " (modified)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Version:   %s\n", info.version)
	fmt.Fprintf(&b, "Revision:  %s\n", revision)
	fmt.Fprintf(&b, "Built:     %s\n", info.time)
	fmt.Fprintf(&b, "Go:        %s\n", info.goVersion)
	fmt.Fprintf(&b, "Platform:  %s\n", info.platform)
	return b.String()
}
