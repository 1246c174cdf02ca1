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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/walteh/fwt/cmd/fwt/opts"
	"github.com/walteh/fwt/pkg/download"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/manager"
	"github.com/walteh/fwt/pkg/nedb"
	"github.com/walteh/fwt/pkg/writer"
	"gitlab.com/tozd/go/errors"
)

// NewDownloadCmd creates the download command
func NewDownloadCmd(ro *opts.RootOpts) *cobra.Command {
	var (
		kind     string
		assetDir string
	)

	cmd := &cobra.Command{
		Use:   "download DIR",
		Short: "Download linked images into the project",
		Long: `Download fetches the remote images linked from the actors or items database
of a world or module, saves them under --asset-dir in the project and
points the documents at the local copies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			k, err := download.ParseKind(strings.ToLower(kind))
			if err != nil {
				return err
			}
			project, err := resolveProject(ctx, ro, args[0])
			if err != nil {
				return err
			}
			m, err := manager.New(ctx, project, ro.ManagerOptions()...)
			if err != nil {
				return err
			}
			project = m.Project()
			log.FromContext(ctx).Header("download " + string(k) + " images of " + project.ProjectRelDir())

			db, err := nedb.Load(filepath.Join(project.String(), "data", string(k)+".db"))
			if err != nil {
				return err
			}
			d, err := download.New(project)
			if err != nil {
				return err
			}
			changed, err := d.Database(ctx, db, k, assetDir)
			if err != nil {
				return errors.Errorf("downloading %s images: %w", k, err)
			}
			ro.UserLogger.LogProject("Documents updated", changed)
			if changed == 0 {
				return nil
			}

			var wopts []writer.Option
			if m.TrashDir() != "" {
				rel, err := filepath.Rel(project.String(), db.Path())
				if err != nil {
					return errors.Errorf("locating %s: %w", db.Path(), err)
				}
				wopts = append(wopts, writer.WithTrash(m.TrashDir(), rel))
			}
			if err := db.Save(ctx, wopts...); err != nil {
				return err
			}
			log.FromContext(ctx).Summary()
			ro.UserLogger.LogDone("done")
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "type", "", "database type, actors or items")
	cmd.Flags().StringVar(&assetDir, "asset-dir", "", "directory in the project to store images (default characters or items)")
	cmd.MarkFlagRequired("type")

	return cmd
}
