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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func clearCredentialEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvBackendURL, "")
}

func writeCredentialFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CredentialFile), []byte(content), 0o600))
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(FlagBackendURL, DefaultBackendURL, "")
	fs.String(FlagAPIKey, "", "")
	return fs
}

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		args    []string
		wantKey string
		wantURL string
		wantErr error
	}{
		{
			name:    "credential_file_only",
			file:    "MGREP_API_KEY=file-key\nBACKEND_URL=https://index.example.com/\n",
			wantKey: "file-key",
			wantURL: "https://index.example.com",
		},
		{
			name:    "default_backend_url",
			file:    "MGREP_API_KEY=file-key\n",
			wantKey: "file-key",
			wantURL: DefaultBackendURL,
		},
		{
			name:    "flags_override_file",
			file:    "MGREP_API_KEY=file-key\nBACKEND_URL=https://file.example.com\n",
			args:    []string{"--api-key", "flag-key", "--backend-url", "http://flag.example.com:9000"},
			wantKey: "flag-key",
			wantURL: "http://flag.example.com:9000",
		},
		{
			name:    "env_overrides_file",
			file:    "MGREP_API_KEY=file-key\n",
			env:     map[string]string{EnvAPIKey: "env-key"},
			wantKey: "env-key",
			wantURL: DefaultBackendURL,
		},
		{
			name:    "flag_overrides_env",
			env:     map[string]string{EnvAPIKey: "env-key", EnvBackendURL: "http://env.example.com"},
			args:    []string{"--api-key", "flag-key"},
			wantKey: "flag-key",
			wantURL: "http://env.example.com",
		},
		{
			name:    "missing_everything",
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "file_without_key",
			file:    "BACKEND_URL=http://localhost:8000\nOTHER=1\n",
			wantErr: ErrMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			if tt.file != "" {
				writeCredentialFile(t, dir, tt.file)
			}

			flags := newFlags()
			require.NoError(t, flags.Parse(tt.args))

			creds, err := LoadCredentials(testContext(t), CredentialSource{Dir: dir, Flags: flags})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, creds.APIKey)
			assert.Equal(t, tt.wantURL, creds.BackendURL)
		})
	}
}

func TestLoadCredentialsWithoutFlags(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	writeCredentialFile(t, dir, "MGREP_API_KEY=abc\n")

	creds, err := LoadCredentials(testContext(t), CredentialSource{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "abc", creds.APIKey)
	assert.Equal(t, DefaultBackendURL, creds.BackendURL)
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{name: "ok", creds: Credentials{APIKey: "k", BackendURL: "http://localhost:8000"}},
		{name: "no_key", creds: Credentials{BackendURL: "http://localhost:8000"}, wantErr: true},
		{name: "no_url", creds: Credentials{APIKey: "k"}, wantErr: true},
		{name: "bad_scheme", creds: Credentials{APIKey: "k", BackendURL: "ftp://host"}, wantErr: true},
		{name: "no_host", creds: Credentials{APIKey: "k", BackendURL: "http://"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEndpoint(t *testing.T) {
	c := Credentials{BackendURL: "http://localhost:8000/"}
	assert.Equal(t, "http://localhost:8000/api/index", c.Endpoint("/api/index"))
	assert.Equal(t, "http://localhost:8000/api/index/file", c.Endpoint("api/index/file"))
}
