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

package fpath

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// 📍 Path is a resolved, immutable location under a Foundry data root.
// The zero value is not usable; obtain one from Resolver.Resolve.
type Path struct {
	resolver      *Resolver
	root          string
	projectRelDir string
	targetRel     string
	manifest      string
	name          string
	kind          string
	version       int
}

// String returns the canonical absolute path: root joined with the target path.
func (p Path) String() string {
	return filepath.Join(p.root, filepath.FromSlash(p.targetRel))
}

// Root returns the data root.
func (p Path) Root() string { return p.root }

// TargetRelPath is the slash-separated path of the target relative to the root.
func (p Path) TargetRelPath() string { return p.targetRel }

// ProjectRelDir is the slash-separated project directory relative to the root.
func (p Path) ProjectRelDir() string { return p.projectRelDir }

// ProjectDir returns the absolute project directory.
func (p Path) ProjectDir() string {
	return filepath.Join(p.root, filepath.FromSlash(p.projectRelDir))
}

// ProjectRelPath is the target path relative to its project directory, "" for
// the project directory itself.
func (p Path) ProjectRelPath() string {
	if p.targetRel == p.projectRelDir {
		return ""
	}
	if p.projectRelDir == "" {
		return p.targetRel
	}
	return strings.TrimPrefix(p.targetRel, p.projectRelDir+"/")
}

// ManifestPath returns the canonical manifest location, "" outside projects.
func (p Path) ManifestPath() string { return p.manifest }

// ProjectName returns the manifest id.
func (p Path) ProjectName() string { return p.name }

// ProjectKind returns "world" or "module".
func (p Path) ProjectKind() string { return p.kind }

// IsProject reports whether a manifest was found for the path.
func (p Path) IsProject() bool { return p.manifest != "" }

// IsProjectDir reports whether the path is the project directory itself.
func (p Path) IsProjectDir() bool {
	return p.IsProject() && p.targetRel == p.projectRelDir
}

// Version returns the Foundry generation the path was resolved with.
func (p Path) Version() int { return p.version }

// Resolver returns the resolver that produced the path.
func (p Path) Resolver() *Resolver { return p.resolver }

// Base returns the last element of the path.
func (p Path) Base() string { return filepath.Base(p.String()) }

// Exists reports whether anything is at the path.
func (p Path) Exists() bool {
	_, err := os.Lstat(p.String())
	return err == nil
}

// IsDir reports whether the path is a directory, following symlinks.
func (p Path) IsDir() bool {
	info, err := os.Stat(p.String())
	return err == nil && info.IsDir()
}

// Equal compares canonical absolute paths.
func (p Path) Equal(o Path) bool { return p.String() == o.String() }

// 🔗 Join resolves elem below p under the same root; the result may not exist yet
func (p Path) Join(ctx context.Context, elem ...string) (Path, error) {
	parts := append([]string{p.String()}, elem...)
	return p.resolver.Resolve(ctx, filepath.Join(parts...), WithRoot(p.root), AllowMissing())
}

// ProjectDirPath resolves the project directory of p.
func (p Path) ProjectDirPath(ctx context.Context) (Path, error) {
	return p.resolver.Resolve(ctx, p.ProjectDir(), WithRoot(p.root), AllowMissing())
}
