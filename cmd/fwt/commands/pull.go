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
	"github.com/spf13/cobra"
	"github.com/walteh/fwt/cmd/fwt/opts"
	"github.com/walteh/fwt/pkg/manager"
	"gitlab.com/tozd/go/errors"
)

// NewPullCmd creates the pull command
func NewPullCmd(ro *opts.RootOpts) *cobra.Command {
	var (
		from   string
		to     string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "pull --from SRC --to DST",
		Short: "Pull assets from another project",
		Long: `Pull copies every file of the --from project that the --to project's
databases reference into the --to project, at the same place relative to
the project, and points the references at the copies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, err := resolveProject(ctx, ro, from)
			if err != nil {
				return err
			}
			dst, err := resolveProject(ctx, ro, to)
			if err != nil {
				return err
			}
			if src.ProjectRelDir() == dst.ProjectRelDir() {
				return errors.Errorf("--from and --to are both %s", src.ProjectRelDir())
			}

			m, err := manager.New(ctx, dst, ro.ManagerOptions()...)
			if err != nil {
				return err
			}
			if err := m.FindRemoteAssets(ctx, src); err != nil {
				return errors.Errorf("finding assets of %s: %w", src.ProjectRelDir(), err)
			}
			ro.UserLogger.LogProject("Remote assets", len(m.Files()))

			return run(ctx, ro, "pull "+src.ProjectRelDir()+" into "+dst.ProjectRelDir(), m, manager.RunOptions{DryRun: dryRun}, m.Failed)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "project to pull assets from")
	cmd.Flags().StringVar(&to, "to", "", "project to pull assets into")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without changing anything")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}
