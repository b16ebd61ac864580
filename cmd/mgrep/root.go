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
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/walteh/mgrep/cmd/mgrep/opts"
	"github.com/walteh/mgrep/pkg/config"
	"github.com/walteh/mgrep/pkg/log"
)

var (
	// Flags
	configFile   string
	debugLogging bool
	logFile      string
	metricsAddr  string
	apiKey       string
	backendURL   string
)

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile, "watch config file (yaml, hcl or json)")
	cmd.PersistentFlags().BoolVarP(&debugLogging, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file, rotated")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.PersistentFlags().StringVar(&apiKey, config.FlagAPIKey, "", "API key, overrides "+config.EnvAPIKey)
	cmd.PersistentFlags().StringVar(&backendURL, config.FlagBackendURL, config.DefaultBackendURL, "indexing backend, overrides "+config.EnvBackendURL)
}

// setupLogging builds the zerolog logger from flags. Structured logs go to
// stderr only with --debug; --log-file adds a rotating JSON sink.
func setupLogging() zerolog.Logger {
	level := zerolog.InfoLevel
	if debugLogging {
		level = zerolog.DebugLevel
	}

	var writers []io.Writer
	if debugLogging {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if logFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	if len(writers) == 0 {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
}

// newRootOpts creates the shared options once flags are parsed
func newRootOpts(cmd *cobra.Command, logger zerolog.Logger) *opts.RootOpts {
	return &opts.RootOpts{
		Console:        log.New(cmd.OutOrStdout(), logger, log.WithErrorWriter(cmd.ErrOrStderr())),
		ConfigFile:     configFile,
		ConfigExplicit: cmd.Flags().Changed("config"),
		MetricsAddr:    metricsAddr,
		UserAgent:      userAgent(),
		Version:        formatVersion,
	}
}
