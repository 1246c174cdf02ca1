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

// NewRenameAllCmd creates the renameall command
func NewRenameAllCmd(ro *opts.RootOpts) *cobra.Command {
	var (
		exts    []string
		remove  []string
		replace []string
		lower   bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "renameall DIR",
		Short: "Rename files by pattern and update the databases",
		Long: `Renameall rewrites the names of every file in a world or module. Each path
segment below the project has the --remove patterns deleted, the --replace
rules applied and, with --lower, is lowercased. Database references follow.

DIR should be a directory inside a world or module.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if p := ro.Preset; p != nil {
				exts = append(exts, p.Ext...)
				remove = append(remove, p.Remove...)
				replace = append(replace, p.Replace...)
				lower = lower || p.Lower
			}
			if len(remove) == 0 && len(replace) == 0 && !lower {
				return errors.New("no action requested, set --remove, --replace or --lower")
			}

			dir, err := resolveProject(ctx, ro, args[0])
			if err != nil {
				return err
			}
			m, err := manager.New(ctx, dir, ro.ManagerOptions()...)
			if err != nil {
				return err
			}
			m.AddFileExtensions(exts...)
			for _, p := range remove {
				if err := m.AddRemovePattern(p); err != nil {
					return err
				}
			}
			for _, p := range replace {
				if err := m.AddReplacePattern(p); err != nil {
					return err
				}
			}
			if err := m.Scan(ctx); err != nil {
				return errors.Errorf("scanning: %w", err)
			}

			return run(ctx, ro, "renameall "+m.Project().ProjectRelDir(), m, manager.RunOptions{Lower: lower, DryRun: dryRun}, m.Failed)
		},
	}

	cmd.Flags().StringArrayVar(&exts, "ext", nil, "file extension filter, may be repeated")
	cmd.Flags().StringArrayVar(&remove, "remove", nil, "characters matching this pattern are removed from file names, may be repeated")
	cmd.Flags().StringArrayVar(&replace, "replace", nil, "/pattern/replacement/ rule for rewriting file names, may be repeated")
	cmd.Flags().BoolVar(&lower, "lower", false, "convert file names to lower case")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without changing anything")

	return cmd
}
