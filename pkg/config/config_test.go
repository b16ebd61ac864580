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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		config      string
		errContains string
		check       func(t *testing.T, cfg *WatchConfig)
	}{
		{
			name:     "full_yaml",
			filename: ".mgrep.yaml",
			config: `
project: my-service
stability_window: 120ms
upload_concurrency: 8
request_timeout: 5s
`,
			check: func(t *testing.T, cfg *WatchConfig) {
				assert.Equal(t, "my-service", cfg.Project, "project should match")
				assert.Equal(t, 120*time.Millisecond, cfg.Window(), "window should be parsed")
				assert.Equal(t, 8, cfg.UploadConcurrency, "concurrency should match")
				assert.Equal(t, 5*time.Second, cfg.Timeout(), "timeout should be parsed")
			},
		},
		{
			name:     "empty_yaml_uses_defaults",
			filename: "watch.yml",
			config:   "",
			check: func(t *testing.T, cfg *WatchConfig) {
				assert.Equal(t, DefaultProject, cfg.Project)
				assert.Equal(t, DefaultStabilityWindow, cfg.Window())
				assert.Equal(t, DefaultUploadConcurrency, cfg.UploadConcurrency)
				assert.Equal(t, DefaultRequestTimeout, cfg.Timeout())
			},
		},
		{
			name:     "hcl",
			filename: "mgrep.hcl",
			config: `
project           = "from-hcl"
stability_window  = "75ms"
upload_concurrency = 2
`,
			check: func(t *testing.T, cfg *WatchConfig) {
				assert.Equal(t, "from-hcl", cfg.Project)
				assert.Equal(t, 75*time.Millisecond, cfg.Window())
				assert.Equal(t, 2, cfg.UploadConcurrency)
				assert.Equal(t, DefaultRequestTimeout, cfg.Timeout())
			},
		},
		{
			name:     "json",
			filename: "mgrep.json",
			config:   `{"project": "from-json", "request_timeout": "1m"}`,
			check: func(t *testing.T, cfg *WatchConfig) {
				assert.Equal(t, "from-json", cfg.Project)
				assert.Equal(t, time.Minute, cfg.Timeout())
			},
		},
		{
			name:        "unknown_yaml_field",
			filename:    "bad.yaml",
			config:      "projct: typo\n",
			errContains: "parsing YAML",
		},
		{
			name:        "unknown_json_field",
			filename:    "bad.json",
			config:      `{"ignore": ["x"]}`,
			errContains: "parsing JSON",
		},
		{
			name:        "bad_duration",
			filename:    "bad.yaml",
			config:      "stability_window: soon\n",
			errContains: "stability_window",
		},
		{
			name:        "negative_duration",
			filename:    "bad.yaml",
			config:      "request_timeout: -1s\n",
			errContains: "must be positive",
		},
		{
			name:        "negative_concurrency",
			filename:    "bad.yaml",
			config:      "upload_concurrency: -3\n",
			errContains: "must not be negative",
		},
		{
			name:        "unsupported_extension",
			filename:    "mgrep.toml",
			config:      "project = 'x'",
			errContains: "no parser found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.filename)
			require.NoError(t, os.WriteFile(path, []byte(tt.config), 0o644))

			cfg, err := Load(testContext(t), path)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	ctx := testContext(t)
	missing := filepath.Join(t.TempDir(), DefaultConfigFile)

	cfg, err := LoadOptional(ctx, missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultProject, cfg.Project)
	assert.Equal(t, DefaultStabilityWindow, cfg.Window())

	_, err = LoadOptional(ctx, missing, true)
	require.Error(t, err, "an explicitly requested config file must exist")

	present := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(present, []byte("project: present\n"), 0o644))
	cfg, err = LoadOptional(ctx, present, true)
	require.NoError(t, err)
	assert.Equal(t, "present", cfg.Project)
}

func TestWatchConfigString(t *testing.T) {
	assert.Equal(t, "project=default-project window=50ms concurrency=4 timeout=30s", Default().String())
}
