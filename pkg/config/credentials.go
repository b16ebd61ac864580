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
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
)

const (
	// CredentialFile is the key-value file written by the auth flow.
	CredentialFile = ".env"
	// EnvAPIKey names the API key in the credential file and the environment.
	EnvAPIKey = "MGREP_API_KEY"
	// EnvBackendURL names the backend URL in the credential file and the environment.
	EnvBackendURL = "BACKEND_URL"
	// DefaultBackendURL is used when nothing else names a backend.
	DefaultBackendURL = "http://localhost:8000"

	// FlagAPIKey and FlagBackendURL are the global flag names bound as overrides.
	FlagAPIKey     = "api-key"
	FlagBackendURL = "backend-url"
)

var (
	// ErrMissingAPIKey is returned when no source provides an API key.
	ErrMissingAPIKey = errors.Base(`API key not found. Please run "mgrep auth" first or provide --api-key`)
	// ErrMissingBackendURL is returned when the backend URL resolves to an empty string.
	ErrMissingBackendURL = errors.Base("backend URL is empty")
)

// 🔑 Credentials identify the session to the backend; immutable once loaded
type Credentials struct {
	BackendURL  string
	APIKey      string
	ProjectName string
}

// 🔍 Validate checks that the credentials are usable
func (c Credentials) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BackendURL == "" {
		return ErrMissingBackendURL
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return errors.Errorf("parsing backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("backend URL %q must use http or https", c.BackendURL)
	}
	if u.Host == "" {
		return errors.Errorf("backend URL %q has no host", c.BackendURL)
	}
	return nil
}

// Endpoint joins a route onto the backend URL.
func (c Credentials) Endpoint(route string) string {
	return strings.TrimRight(c.BackendURL, "/") + "/" + strings.TrimLeft(route, "/")
}

// 📦 CredentialSource describes where credentials are read from
type CredentialSource struct {
	// Dir holds the credential file; usually the working directory.
	Dir string
	// Flags, when set, provides --api-key and --backend-url overrides.
	Flags *pflag.FlagSet
}

// 🎯 LoadCredentials resolves the API key and backend URL. ProjectName is
// left for the caller to fill in.
func LoadCredentials(ctx context.Context, src CredentialSource) (Credentials, error) {
	logger := zerolog.Ctx(ctx)

	v := viper.New()
	v.SetDefault(EnvBackendURL, DefaultBackendURL)

	if err := v.BindEnv(EnvAPIKey, EnvAPIKey); err != nil {
		return Credentials{}, errors.Errorf("binding %s: %w", EnvAPIKey, err)
	}
	if err := v.BindEnv(EnvBackendURL, EnvBackendURL); err != nil {
		return Credentials{}, errors.Errorf("binding %s: %w", EnvBackendURL, err)
	}

	if src.Flags != nil {
		if f := src.Flags.Lookup(FlagAPIKey); f != nil {
			if err := v.BindPFlag(EnvAPIKey, f); err != nil {
				return Credentials{}, errors.Errorf("binding --%s: %w", FlagAPIKey, err)
			}
		}
		if f := src.Flags.Lookup(FlagBackendURL); f != nil {
			if err := v.BindPFlag(EnvBackendURL, f); err != nil {
				return Credentials{}, errors.Errorf("binding --%s: %w", FlagBackendURL, err)
			}
		}
	}

	path := filepath.Join(src.Dir, CredentialFile)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Credentials{}, errors.Errorf("reading credential file %s: %w", path, err)
		}
		logger.Debug().Str("path", path).Msg("loaded credential file")
	} else if !os.IsNotExist(err) {
		return Credentials{}, errors.Errorf("checking credential file %s: %w", path, err)
	}

	creds := Credentials{
		APIKey:     strings.TrimSpace(v.GetString(EnvAPIKey)),
		BackendURL: strings.TrimRight(strings.TrimSpace(v.GetString(EnvBackendURL)), "/"),
	}

	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	return creds, nil
}
