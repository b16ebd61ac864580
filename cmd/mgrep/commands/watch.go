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

package commands

import (
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/mgrep/cmd/mgrep/opts"
	"github.com/walteh/mgrep/pkg/config"
	"github.com/walteh/mgrep/pkg/log"
	"github.com/walteh/mgrep/pkg/metrics"
	"github.com/walteh/mgrep/pkg/upload"
	"github.com/walteh/mgrep/pkg/watch"
)

// 🎯 NewWatchCmd creates the watch command
func NewWatchCmd(opts *opts.RootOpts) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory and keep the search index up to date",
		Long: `Watch indexes every file under path and then keeps uploading files as they
change until interrupted. Files matching the built-in ignore list are skipped.

Credentials are read from --api-key/--backend-url, then the MGREP_API_KEY and
BACKEND_URL environment variables, then the .env file in the working directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			cfg, err := config.LoadOptional(ctx, opts.ConfigFile, opts.ConfigExplicit)
			if err != nil {
				return errors.Errorf("loading watch config: %w", err)
			}

			wd, err := os.Getwd()
			if err != nil {
				return errors.Errorf("getting working directory: %w", err)
			}

			creds, err := config.LoadCredentials(ctx, config.CredentialSource{Dir: wd, Flags: cmd.Flags()})
			if err != nil {
				return err
			}

			creds.ProjectName = cfg.Project
			if cmd.Flags().Changed("project") {
				creds.ProjectName = project
			}

			var rec *metrics.Recorder
			if opts.MetricsAddr != "" {
				rec = metrics.New()
			}

			session, err := watch.New(ctx, watch.Options{
				Root:        root,
				Credentials: creds,
				Window:      cfg.Window(),
				Concurrency: cfg.UploadConcurrency,
				UploadOptions: []upload.Option{
					upload.WithTimeout(cfg.Timeout()),
					upload.WithUserAgent(opts.UserAgent),
				},
				Console: log.FromContext(ctx),
				Metrics: rec,
			})
			if err != nil {
				return errors.Errorf("starting watch: %w", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			if rec != nil {
				log.FromContext(ctx).Infof("Serving metrics on http://%s/metrics", opts.MetricsAddr)
				g.Go(func() error {
					return rec.Serve(gctx, opts.MetricsAddr)
				})
			}
			g.Go(func() error {
				return session.Run(gctx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", config.DefaultProject, "project name sent with every upload")

	return cmd
}
