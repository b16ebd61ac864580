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

package opts

import (
	"github.com/walteh/mgrep/pkg/log"
)

// 🎯 RootOpts holds what every subcommand shares
type RootOpts struct {
	// Console prints user facing lines.
	Console *log.Logger
	// ConfigFile is the optional watch configuration file.
	ConfigFile string
	// ConfigExplicit is set when --config was given, making a missing file an error.
	ConfigExplicit bool
	// MetricsAddr enables the prometheus endpoint when not empty.
	MetricsAddr string
	// UserAgent is sent with every upload.
	UserAgent string
	// Version renders the build details printed by the version command.
	Version func() string
}
