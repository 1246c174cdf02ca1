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
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/manager"
	"gitlab.com/tozd/go/errors"
)

// NewRenameCmd creates the rename command
func NewRenameCmd(ro *opts.RootOpts) *cobra.Command {
	var keepSrc bool

	cmd := &cobra.Command{
		Use:   "rename SRC TARGET",
		Short: "Rename a file or project and update the databases",
		Long: `Rename moves SRC to TARGET and rewrites the database references to it.
When SRC is a world or module directory the whole project is renamed,
including its id in the manifest. With --keep-src the source is copied
instead, which also allows copying between projects.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, err := ro.Resolve(ctx, args[0])
			if err != nil {
				return errors.Errorf("resolving %s: %w", args[0], err)
			}
			target, err := ro.Resolve(ctx, args[1], fpath.AllowMissing())
			if err != nil {
				return errors.Errorf("resolving %s: %w", args[1], err)
			}

			if src.IsProject() && target.IsProject() && src.ProjectRelDir() != target.ProjectRelDir() && !keepSrc {
				return errors.New("src and target are in different projects, which is only supported with --keep-src")
			}

			if src.IsProjectDir() {
				m, err := manager.New(ctx, src, ro.ManagerOptions()...)
				if err != nil {
					return err
				}
				log.FromContext(ctx).Header("rename project " + src.ProjectRelDir())
				next, err := m.RenameProject(ctx, target, keepSrc)
				if err != nil {
					return err
				}
				log.FromContext(ctx).Summary()
				ro.UserLogger.LogDone("project is now at " + next.Project().TargetRelPath())
				return nil
			}

			var owner fpath.Path
			switch {
			case src.IsProject():
				owner = src
			case target.IsProject():
				owner = target
			default:
				return errors.Errorf("%w: no project directory found for %s or %s", fpath.ErrPath, src, target)
			}
			m, err := manager.New(ctx, owner, ro.ManagerOptions()...)
			if err != nil {
				return err
			}
			e := m.AddFile(src)
			e.KeepOriginal = keepSrc
			if err := e.SetPlanned(ctx, target); err != nil {
				return err
			}

			return run(ctx, ro, "rename "+src.TargetRelPath(), m, manager.RunOptions{}, m.Failed)
		},
	}

	cmd.Flags().BoolVar(&keepSrc, "keep-src", false, "keep the source file")

	return cmd
}
