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

package opts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/walteh/fwt/pkg/config"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/manager"
)

// SkipConfig is the cobra annotation of commands that run without a config.
const SkipConfig = "fwt/skip-config"

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config     *config.Config
	Resolver   *fpath.Resolver
	UserLogger *log.UserLogger

	// Preset is set when --preset named one that applies to the command.
	Preset *config.Preset

	// NoTrash deletes instead of trashing.
	NoTrash bool
	// TrashDir overrides the per-project trash base.
	TrashDir string
}

// 🎯 Resolve turns a command line path into a path under the data root
func (o *RootOpts) Resolve(ctx context.Context, path string, opts ...fpath.ResolveOption) (fpath.Path, error) {
	return o.Resolver.Resolve(ctx, path, opts...)
}

// ManagerOptions returns the manager options the trash flags ask for.
func (o *RootOpts) ManagerOptions() []manager.Option {
	var out []manager.Option
	if o.NoTrash {
		out = append(out, manager.WithoutTrash())
	}
	if o.TrashDir != "" {
		out = append(out, manager.WithTrashDir(o.TrashDir))
	}
	return out
}

// ExcludePattern turns an --exclude-dir value into a scan pattern. Existing
// directories become absolute paths, anything else is matched by name.
func ExcludePattern(dir string) string {
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		if abs, err := filepath.Abs(dir); err == nil {
			return abs
		}
	}
	return dir
}
