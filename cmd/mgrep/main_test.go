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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/mgrep/pkg/config"
	"github.com/walteh/mgrep/pkg/watch"
)

// isolate runs the test from an empty working directory without credentials
// in the environment.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvBackendURL, "")
	return dir
}

func execute(ctx context.Context, args ...string) (string, error) {
	buf := &lockedBuffer{}
	err := executeTo(ctx, buf, buf, args...)
	return buf.String(), err
}

func executeTo(ctx context.Context, stdout, stderr io.Writer, args ...string) error {
	cmd, _ := newRootCmd()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// lockedBuffer can be read while a running command writes to it
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mgrep")
	assert.Contains(t, out, "version info")
	assert.Contains(t, out, "Version:")
	assert.Contains(t, out, "Platform:")
}

func TestWatchStartupErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string) []string
		wantErr error
		errText string
	}{
		{
			name: "missing_api_key",
			setup: func(t *testing.T, dir string) []string {
				return []string{"watch", dir}
			},
			wantErr: config.ErrMissingAPIKey,
		},
		{
			name: "root_is_file",
			setup: func(t *testing.T, dir string) []string {
				file := filepath.Join(dir, "file.txt")
				require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
				return []string{"--api-key", "k", "watch", file}
			},
			wantErr: watch.ErrRootNotDirectory,
		},
		{
			name: "missing_explicit_config",
			setup: func(t *testing.T, dir string) []string {
				return []string{"--api-key", "k", "--config", filepath.Join(dir, "nope.yaml"), "watch", dir}
			},
			errText: "loading watch config",
		},
		{
			name: "too_many_args",
			setup: func(t *testing.T, dir string) []string {
				return []string{"watch", dir, dir}
			},
			errText: "accepts at most 1 arg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			_, err := execute(context.Background(), tt.setup(t, dir)...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
		})
	}
}

// recordingBackend remembers the project name of every JSON upload
type recordingBackend struct {
	mu       sync.Mutex
	projects []string
	apiKeys  []string
}

func (b *recordingBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectName string `json:"project_name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.projects = append(b.projects, req.ProjectName)
	b.apiKeys = append(b.apiKeys, r.Header.Get("X-API-Key"))
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (b *recordingBackend) snapshot() ([]string, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.projects...), append([]string(nil), b.apiKeys...)
}

func TestWatchProjectAndCredentialPrecedence(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		credentials string
		flags       []string
		watchFlags  []string
		wantProject string
		wantKey     string
	}{
		{
			name:        "defaults",
			flags:       []string{"--api-key", "flag-key"},
			wantProject: config.DefaultProject,
			wantKey:     "flag-key",
		},
		{
			name:        "config_file_project",
			configFile:  "project: from-config\nstability_window: 20ms\n",
			flags:       []string{"--api-key", "flag-key"},
			wantProject: "from-config",
			wantKey:     "flag-key",
		},
		{
			name:        "project_flag_wins",
			configFile:  "project: from-config\n",
			flags:       []string{"--api-key", "flag-key"},
			watchFlags:  []string{"-p", "from-flag"},
			wantProject: "from-flag",
			wantKey:     "flag-key",
		},
		{
			name:        "credential_file",
			credentials: "MGREP_API_KEY=file-key\n",
			wantProject: config.DefaultProject,
			wantKey:     "file-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			b := &recordingBackend{}
			ts := httptest.NewServer(b)
			defer ts.Close()

			if tt.configFile != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte(tt.configFile), 0o644))
			}
			if tt.credentials != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, config.CredentialFile), []byte(tt.credentials), 0o600))
			}

			src := filepath.Join(dir, "src")
			require.NoError(t, os.MkdirAll(src, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(src, "a.py"), []byte("x=1"), 0o644))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			args := append([]string{"--backend-url", ts.URL}, tt.flags...)
			args = append(args, "watch", src)
			args = append(args, tt.watchFlags...)

			done := make(chan error, 1)
			go func() {
				_, err := execute(ctx, args...)
				done <- err
			}()

			require.Eventually(t, func() bool {
				projects, _ := b.snapshot()
				return len(projects) >= 1
			}, 5*time.Second, 10*time.Millisecond)

			cancel()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("watch did not stop")
			}

			projects, keys := b.snapshot()
			assert.Equal(t, tt.wantProject, projects[0])
			assert.Equal(t, tt.wantKey, keys[0])
		})
	}
}

func TestWatchFailuresGoToStderr(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	dir := isolate(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FilePath string `json:"file_path"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.FilePath == "bad.py" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"detail":"boom"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "good.py"), []byte("ok = 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bad.py"), []byte("raise"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout, stderr := &lockedBuffer{}, &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeTo(ctx, stdout, stderr,
			"--api-key", "k", "--backend-url", ts.URL, "--metrics-addr", "127.0.0.1:0", "watch", src)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "Successfully indexed good.py.") &&
			strings.Contains(stderr.String(), "Error indexing bad.py: 500 - boom")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.Contains(t, stdout.String(), "Serving metrics on http://127.0.0.1:0/metrics")
	assert.NotContains(t, stdout.String(), "Error indexing")
	assert.NotContains(t, stderr.String(), "Successfully indexed")
}
