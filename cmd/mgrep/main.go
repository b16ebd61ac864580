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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/walteh/mgrep/cmd/mgrep/commands"
	"github.com/walteh/mgrep/cmd/mgrep/opts"
	"github.com/walteh/mgrep/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rootOpts := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if rootOpts.Console != nil {
			rootOpts.Console.Errorf("%v", err)
		} else {
			cmd.PrintErrln(err)
		}
		stop()
		os.Exit(1)
	}
}

// newRootCmd wires the commands. Options are built in PersistentPreRunE so
// they see the parsed flags.
func newRootCmd() (*cobra.Command, *opts.RootOpts) {
	rootOpts := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "mgrep",
		Short: "Keep a semantic search index in sync with a directory",
		Long: `mgrep watches a directory tree and uploads files to an indexing backend as
they are created and modified.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging()
			*rootOpts = *newRootOpts(cmd, logger)

			ctx := logger.WithContext(cmd.Context())
			ctx = log.NewContext(ctx, rootOpts.Console)
			cmd.SetContext(ctx)
			return nil
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewWatchCmd(rootOpts),
		commands.NewVersionCmd(rootOpts),
	)

	return rootCmd, rootOpts
}
