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

// NewDedupCmd creates the dedup command
func NewDedupCmd(ro *opts.RootOpts) *cobra.Command {
	var (
		exts       []string
		preferred  []string
		byName     bool
		byContent  bool
		excludeDir []string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "dedup DIR",
		Short: "Remove duplicate files and update the databases",
		Long: `Dedup scans a world or module for duplicate files. It will:
1. Group files by name (ignoring the extension) or by content
2. Pick one preferred file in each group
3. Trash the others
4. Point every database reference at the preferred file

DIR should be a directory inside a world or module.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if p := ro.Preset; p != nil {
				preferred = append(preferred, p.Preferred...)
				if p.ByName != nil {
					byName = *p.ByName
				}
				if p.ByContent != nil {
					byContent = *p.ByContent
				}
				exts = append(exts, p.Ext...)
				excludeDir = append(excludeDir, p.ExcludeDir...)
			}
			if byName == byContent {
				return errors.Errorf("one of --bycontent or --byname must be set to perform dedup, got byname=%t and bycontent=%t", byName, byContent)
			}
			method := manager.ByName
			if byContent {
				method = manager.ByContent
			}

			dir, err := resolveProject(ctx, ro, args[0])
			if err != nil {
				return err
			}
			m, err := manager.NewSetManager(ctx, dir, method, ro.ManagerOptions()...)
			if err != nil {
				return err
			}
			for _, d := range excludeDir {
				m.AddExcludeDir(opts.ExcludePattern(d))
			}
			for _, p := range preferred {
				m.AddPreferredPattern(p)
			}
			m.AddFileExtensions(exts...)

			if err := m.Scan(ctx); err != nil {
				return errors.Errorf("scanning: %w", err)
			}
			if err := m.SetPreferredOnAll(ctx); err != nil {
				return errors.Errorf("choosing preferred files: %w", err)
			}
			ro.UserLogger.LogProject("Duplicate sets", len(m.Sets()))

			return run(ctx, ro, "dedup "+m.Project().ProjectRelDir(), m, manager.RunOptions{DryRun: dryRun}, m.Failed)
		},
	}

	cmd.Flags().StringArrayVar(&exts, "ext", nil, "file extension filter, may be repeated")
	cmd.Flags().StringArrayVar(&preferred, "preferred", nil, "pattern selecting the preferred file of a set, <project_dir> is replaced with the project path; may be repeated")
	cmd.Flags().BoolVar(&byName, "byname", false, "find duplicates by file name")
	cmd.Flags().BoolVar(&byContent, "bycontent", false, "find duplicates by file content")
	cmd.Flags().StringArrayVar(&excludeDir, "exclude-dir", nil, "directory name or path to exclude, may be repeated")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without changing anything")

	return cmd
}
