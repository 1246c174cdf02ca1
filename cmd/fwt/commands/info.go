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
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// NewInfoCmd creates the info command
func NewInfoCmd(ro *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "info DIR",
		Short: "Show basic information about a Foundry project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := ro.Resolve(ctx, args[0])
			if err != nil {
				return errors.Errorf("resolving %s: %w", args[0], err)
			}
			if !p.IsProject() {
				ro.UserLogger.LogProject("Project", "no")
				return nil
			}
			ro.UserLogger.LogProject("Project", "yes")
			ro.UserLogger.LogProject("Project Name", p.ProjectName())
			ro.UserLogger.LogProject("Project Type", p.ProjectKind())
			ro.UserLogger.LogProject("Project Dir", p.ProjectRelDir())

			dir, err := p.ProjectDirPath(ctx)
			if err != nil {
				return err
			}
			dbs, err := nedb.Databases(dir.String())
			if err != nil {
				return err
			}
			ro.UserLogger.LogProject("Databases", len(dbs))
			return nil
		},
	}
}
