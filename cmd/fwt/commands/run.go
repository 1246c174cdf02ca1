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
	"context"
	"fmt"

	"github.com/walteh/fwt/cmd/fwt/opts"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/manager"
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// 🏃 run drives a pipeline and reports the outcome to the user
func run(ctx context.Context, ro *opts.RootOpts, title string, p manager.Pipeline, ropts manager.RunOptions, failed func() []string) error {
	out := log.FromContext(ctx)
	out.Header(title)

	changes, err := manager.Run(ctx, p, ropts)
	if err != nil {
		return err
	}
	report(ro, changes)

	out.Summary()
	if n := len(failed()); n > 0 {
		out.Error(fmt.Sprintf("%d files could not be moved, their references were left unchanged", n))
	}
	if ropts.DryRun {
		ro.UserLogger.LogDone("dry run complete, nothing was changed")
		return nil
	}
	ro.UserLogger.LogDone("done")
	return nil
}

func report(ro *opts.RootOpts, changes []nedb.LineChange) {
	for _, c := range changes {
		ro.UserLogger.LogPreview(c.File, c.Line, c.Diff)
	}
}

// resolveProject resolves dir, which must lie inside a world or module.
func resolveProject(ctx context.Context, ro *opts.RootOpts, dir string) (fpath.Path, error) {
	p, err := ro.Resolve(ctx, dir, fpath.RequireProject())
	if err != nil {
		return fpath.Path{}, errors.Errorf("resolving %s: %w", dir, err)
	}
	return p, nil
}
