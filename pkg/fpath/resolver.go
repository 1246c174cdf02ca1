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

// Package fpath resolves filesystem paths into Foundry-aware project paths.
//
// A resolved Path knows the data root it lives under, the project (world or
// module) that contains it and its location relative to both. Paths reached
// through symlinks from outside the root are mapped back to the canonical
// "<kind>s/<id>" layout so database references stay portable.
package fpath

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/walteh/fwt/pkg/foundry"
	"gitlab.com/tozd/go/errors"
)

// 🧭 Resolver turns raw paths into Paths against a configured data root
type Resolver struct {
	root    string
	version int
	workDir string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithVersion sets the Foundry generation used to read manifests.
func WithVersion(version int) Option {
	return func(r *Resolver) { r.version = version }
}

// WithWorkingDir sets the directory relative paths are joined to.
func WithWorkingDir(dir string) Option {
	return func(r *Resolver) { r.workDir = dir }
}

// 🏭 NewResolver creates a resolver. An empty root means the root is
// discovered from Config/options.json for every path.
func NewResolver(root string, opts ...Option) *Resolver {
	r := &Resolver{version: foundry.LatestVersion}
	if root != "" {
		r.root = filepath.Clean(root)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the configured data root, "" when discovery is used.
func (r *Resolver) Root() string { return r.root }

// Version returns the Foundry generation used for manifests.
func (r *Resolver) Version() int { return r.version }

type resolveOptions struct {
	root             string
	allowMissing     bool
	requireProject   bool
	skipProjectCheck bool
}

// ResolveOption adjusts a single Resolve call.
type ResolveOption func(*resolveOptions)

// WithRoot overrides the data root for one call.
func WithRoot(root string) ResolveOption {
	return func(o *resolveOptions) { o.root = root }
}

// AllowMissing skips the existence check.
func AllowMissing() ResolveOption {
	return func(o *resolveOptions) { o.allowMissing = true }
}

// RequireProject fails when no manifest is found.
func RequireProject() ResolveOption {
	return func(o *resolveOptions) { o.requireProject = true }
}

// SkipProjectCheck skips the manifest search for paths inside the root.
func SkipProjectCheck() ResolveOption {
	return func(o *resolveOptions) { o.skipProjectCheck = true }
}

// 🔍 FindRoot walks path and its ancestors for Config/options.json and
// returns <dataPath>/Data from the first one found.
func FindRoot(path string) (string, error) {
	dir := filepath.Clean(path)
	for {
		candidate := filepath.Join(dir, "Config", "options.json")
		if data, err := os.ReadFile(candidate); err == nil {
			dataPath := gjson.GetBytes(data, "dataPath").String()
			if dataPath == "" {
				return "", errors.Errorf("%w: %s has no dataPath", ErrRootDirectoryNotFound, candidate)
			}
			return filepath.Join(dataPath, "Data"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Errorf("%w: no Config/options.json above %s", ErrRootDirectoryNotFound, path)
		}
		dir = parent
	}
}

// 🎯 Resolve builds a Path from a raw path
func (r *Resolver) Resolve(ctx context.Context, path string, opts ...ResolveOption) (Path, error) {
	o := resolveOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := r.absolute(path)
	if err != nil {
		return Path{}, err
	}

	root := o.root
	if root == "" {
		root = r.root
	}
	if root == "" {
		root, err = FindRoot(abs)
		if err != nil {
			return Path{}, err
		}
	}
	root = filepath.Clean(root)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return Path{}, errors.Errorf("%w: %s is not a directory", ErrRootDirectoryNotFound, root)
	}

	p := Path{resolver: r, root: root, version: r.version}

	rel, inside := within(root, abs)
	symlinked := !inside
	if inside {
		p.targetRel = rel
	}

	if !o.skipProjectCheck || symlinked {
		manifest, found := findManifest(abs)
		switch {
		case found:
			if err := p.adoptManifest(ctx, manifest, abs, symlinked); err != nil {
				return Path{}, err
			}
		case o.requireProject || symlinked:
			return Path{}, errors.Errorf("%w: %s is not inside a world or module", ErrPath, abs)
		default:
			p.projectRelDir = pseudoProject(p.targetRel)
		}
	} else {
		p.projectRelDir = pseudoProject(p.targetRel)
	}

	if !o.allowMissing {
		if _, err := os.Lstat(p.String()); err != nil {
			return Path{}, errors.Errorf("%w: %s does not exist", ErrPath, p.String())
		}
	}

	zerolog.Ctx(ctx).Trace().
		Str("path", path).
		Str("root", p.root).
		Str("project", p.projectRelDir).
		Str("target", p.targetRel).
		Msg("resolved path")

	return p, nil
}

func (p *Path) adoptManifest(ctx context.Context, manifest, abs string, symlinked bool) error {
	data, err := os.ReadFile(manifest)
	if err != nil {
		return errors.Errorf("reading manifest %s: %w", manifest, err)
	}

	dir := filepath.Dir(manifest)
	name := gjson.GetBytes(data, foundry.IDField(p.version)).String()
	if name == "" {
		zerolog.Ctx(ctx).Warn().Str("manifest", manifest).Msg("manifest has no id, using directory name")
		name = filepath.Base(dir)
	}
	if filepath.Base(dir) != name {
		zerolog.Ctx(ctx).Warn().
			Str("manifest", manifest).
			Str("id", name).
			Str("dir", filepath.Base(dir)).
			Msg("project id does not match its directory name")
	}

	p.kind = foundry.KindFromManifest(manifest)
	p.name = name

	if symlinked {
		p.projectRelDir = p.kind + "s/" + name
		sub, err := filepath.Rel(dir, abs)
		if err != nil {
			return errors.Errorf("relating %s to %s: %w", abs, dir, err)
		}
		p.targetRel = joinRel(p.projectRelDir, filepath.ToSlash(sub))
	} else {
		rel, _ := within(p.root, dir)
		p.projectRelDir = rel
	}
	p.manifest = filepath.Join(p.root, filepath.FromSlash(p.projectRelDir), filepath.Base(manifest))
	return nil
}

func (r *Resolver) absolute(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	wd := r.workDir
	if wd == "" {
		var err error
		wd, err = workingDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(wd, path), nil
}

// workingDir prefers $PWD so paths entered through a symlinked directory
// keep their symlinked spelling.
func workingDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Errorf("getting working directory: %w", err)
	}
	if pwd := os.Getenv("PWD"); pwd != "" && filepath.IsAbs(pwd) {
		a, errA := os.Stat(pwd)
		b, errB := os.Stat(wd)
		if errA == nil && errB == nil && os.SameFile(a, b) {
			return filepath.Clean(pwd), nil
		}
	}
	return wd, nil
}

// findManifest checks path and each ancestor for a manifest file.
func findManifest(path string) (string, bool) {
	dir := path
	for {
		for _, name := range foundry.ManifestNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// within reports whether path is root or below it, with the slash-separated
// remainder ("" for root itself).
func within(root, path string) (string, bool) {
	if path == root {
		return "", true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return filepath.ToSlash(strings.TrimPrefix(path, prefix)), true
}

// pseudoProject is the project dir used for paths with no manifest: the
// first two segments of deeper paths, otherwise the whole path.
func pseudoProject(rel string) string {
	if rel == "" {
		return ""
	}
	segs := strings.Split(rel, "/")
	if len(segs) >= 3 {
		return strings.Join(segs[:2], "/")
	}
	return rel
}

func joinRel(a, b string) string {
	switch {
	case b == "" || b == ".":
		return a
	case a == "":
		return b
	default:
		return a + "/" + b
	}
}
