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

// Package manager orchestrates project-wide file operations: scanning a
// project, planning renames or deduplication, carrying them out and
// rewriting every database reference to the moved files.
package manager

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/walteh/fwt/pkg/files"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/nedb"
	"github.com/walteh/fwt/pkg/scan"
	"gitlab.com/tozd/go/errors"
)

// DefaultTrashDir is the project-relative directory holding trash sessions.
const DefaultTrashDir = "trash"

// 🗂️ FileManager tracks the files of one project and the rewrite queue
// their planned moves produce
type FileManager struct {
	project     fpath.Path
	opts        []Option
	trashBase   string
	noTrash     bool
	trashDir    string
	excludeDirs []string
	exts        []string
	files       []*files.Entry
	remove      []*regexp.Regexp
	replace     []Replacement
	queue       *nedb.Batch
	failed      []string
}

// Option configures a FileManager.
type Option func(*FileManager)

// WithTrashDir sets the trash base directory, relative to the project or absolute.
func WithTrashDir(dir string) Option {
	return func(m *FileManager) { m.trashBase = dir }
}

// WithoutTrash deletes trashed files and keeps no previous database versions.
func WithoutTrash() Option {
	return func(m *FileManager) { m.noTrash = true }
}

// 🏭 New creates a manager for the project containing dir
func New(ctx context.Context, dir fpath.Path, opts ...Option) (*FileManager, error) {
	if !dir.IsProject() {
		return nil, errors.Errorf("%w: %s is not inside a world or module", fpath.ErrPath, dir)
	}
	project, err := dir.ProjectDirPath(ctx)
	if err != nil {
		return nil, errors.Errorf("resolving project dir: %w", err)
	}

	m := &FileManager{
		project:   project,
		opts:      opts,
		trashBase: DefaultTrashDir,
		queue:     nedb.NewBatch(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if !m.noTrash {
		base := m.trashBase
		if !filepath.IsAbs(base) {
			base = filepath.Join(project.String(), base)
		}
		m.trashDir = NextAvailable(filepath.Join(base, "session.0"))
		m.excludeDirs = append(m.excludeDirs, filepath.Dir(m.trashDir)+"*")
	}
	m.excludeDirs = append(m.excludeDirs,
		filepath.Join(project.String(), "data"),
		filepath.Join(project.String(), "packs"),
	)

	zerolog.Ctx(ctx).Debug().
		Str("project", project.ProjectRelDir()).
		Str("trash", m.trashDir).
		Msg("created file manager")
	return m, nil
}

// Project returns the project directory.
func (m *FileManager) Project() fpath.Path { return m.project }

// TrashDir returns this session's trash directory, "" without trash.
func (m *FileManager) TrashDir() string { return m.trashDir }

// Files returns the tracked entries.
func (m *FileManager) Files() []*files.Entry { return m.files }

// Queue returns the rewrite queue.
func (m *FileManager) Queue() *nedb.Batch { return m.queue }

// Failed lists target paths of files whose move failed.
func (m *FileManager) Failed() []string { return m.failed }

// Manifest reads the project manifest.
func (m *FileManager) Manifest() (gjson.Result, error) {
	data, err := os.ReadFile(m.project.ManifestPath())
	if err != nil {
		return gjson.Result{}, errors.Errorf("reading manifest: %w", err)
	}
	return gjson.ParseBytes(data), nil
}

// AddFileExtensions limits scans to the given extensions.
func (m *FileManager) AddFileExtensions(exts ...string) {
	m.exts = append(m.exts, exts...)
}

// AddExcludeDir skips directories matching pattern during scans.
func (m *FileManager) AddExcludeDir(pattern string) {
	for _, p := range m.excludeDirs {
		if p == pattern {
			return
		}
	}
	m.excludeDirs = append(m.excludeDirs, pattern)
}

// ExcludeDirs returns the directory exclusion patterns.
func (m *FileManager) ExcludeDirs() []string { return m.excludeDirs }

// AddRemovePattern deletes matches of pattern from every path segment.
func (m *FileManager) AddRemovePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errors.Errorf("compiling remove pattern %q: %w", pattern, err)
	}
	m.remove = append(m.remove, re)
	return nil
}

// AddReplacePattern adds a sed-style "/pattern/replacement/" rule.
func (m *FileManager) AddReplacePattern(sed string) error {
	r, err := ParseReplacement(sed)
	if err != nil {
		return err
	}
	m.replace = append(m.replace, r)
	return nil
}

// AddFile tracks path.
func (m *FileManager) AddFile(path fpath.Path) *files.Entry {
	e := files.NewEntry(path, m.trashDir)
	m.files = append(m.files, e)
	return e
}

func (m *FileManager) resolve(ctx context.Context, path string, opts ...fpath.ResolveOption) (fpath.Path, error) {
	return m.project.Resolver().Resolve(ctx, path, append([]fpath.ResolveOption{fpath.WithRoot(m.project.Root())}, opts...)...)
}

func (m *FileManager) scanner() *scan.Scanner {
	s := scan.New(m.project.String(), scan.ExcludeDirs(m.excludeDirs...))
	if len(m.exts) > 0 {
		s.Add(scan.FileExtensions(m.exts...))
	}
	return s
}

// 🔍 Scan tracks every project file that passes the filters
func (m *FileManager) Scan(ctx context.Context) error {
	return m.scanEach(ctx, func(p fpath.Path) error {
		m.AddFile(p)
		return nil
	})
}

func (m *FileManager) scanEach(ctx context.Context, fn func(fpath.Path) error) error {
	for path, err := range m.scanner().Scan(ctx) {
		if err != nil {
			return errors.Errorf("scanning %s: %w", m.project, err)
		}
		p, err := m.resolve(ctx, path)
		if err != nil {
			return errors.Errorf("resolving %s: %w", path, err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// 📝 GenerateRewriteQueue plans new names for every tracked file and maps
// old target paths to new ones. Remove patterns, replace patterns and
// lowercasing apply to each path segment in that order.
func (m *FileManager) GenerateRewriteQueue(ctx context.Context, lower bool) error {
	transform := len(m.remove) > 0 || len(m.replace) > 0 || lower
	queue := nedb.NewBatch()

	for _, f := range m.files {
		if transform {
			rel := f.Path().ProjectRelPath()
			if planned, ok := f.Planned(); ok {
				rel = planned.ProjectRelPath()
			}

			next, ok := m.renameSegments(rel, lower)
			if !ok {
				zerolog.Ctx(ctx).Warn().Str("file", rel).Msg("rename would leave an empty path segment, skipping")
				continue
			}
			candidate, err := m.resolve(ctx, filepath.Join(m.project.String(), filepath.FromSlash(next)), fpath.AllowMissing())
			if err != nil {
				return errors.Errorf("planning %s: %w", rel, err)
			}
			if err := f.SetPlanned(ctx, candidate); err != nil {
				return err
			}
		}

		if planned, ok := f.Planned(); ok {
			zerolog.Ctx(ctx).Debug().
				Str("from", f.Path().TargetRelPath()).
				Str("to", planned.TargetRelPath()).
				Msg("queued rewrite")
			queue.Literal(f.Path().TargetRelPath(), planned.TargetRelPath())
		}
	}

	m.queue = queue
	return nil
}

func (m *FileManager) renameSegments(rel string, lower bool) (string, bool) {
	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		for _, re := range m.remove {
			seg = re.ReplaceAllString(seg, "")
		}
		for _, r := range m.replace {
			seg = r.Pattern.ReplaceAllString(seg, r.Replace)
		}
		if lower {
			seg = strings.ToLower(seg)
		}
		if seg == "" {
			return "", false
		}
		segs[i] = seg
	}
	return strings.Join(segs, "/"), true
}

// 🚚 ProcessFileQueue carries out every planned move or copy. A failed file
// is logged, left where it is and dropped from the rewrite queue.
func (m *FileManager) ProcessFileQueue(ctx context.Context) error {
	for _, f := range m.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := f.Planned(); !ok {
			continue
		}
		m.execute(ctx, f)
	}
	return nil
}

// execute moves or copies f and reports whether it succeeded.
func (m *FileManager) execute(ctx context.Context, f *files.Entry) bool {
	source := f.Path()
	var ok bool
	var err error
	if f.KeepOriginal {
		ok, err = f.Copy(ctx, false)
	} else {
		ok, err = f.Rename(ctx)
	}
	if ok {
		return true
	}

	if err == nil {
		err = errors.Errorf("%w: target already exists", fpath.ErrPath)
	}
	m.failed = append(m.failed, source.TargetRelPath())
	log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{
		Path: source.ProjectRelPath(),
		Kind: log.OpFailed,
		Err:  err,
	})
	return false
}

// 🔄 ProcessRewriteQueue rewrites the manifest and project databases
func (m *FileManager) ProcessRewriteQueue(ctx context.Context, quote bool) error {
	batch := m.queue.Without(m.failed...)
	if batch.Len() == 0 {
		return nil
	}
	return m.DBReplace(ctx, batch, quote)
}

// DBReplace applies batch to the manifest and every project database.
func (m *FileManager) DBReplace(ctx context.Context, batch *nedb.Batch, quote bool) error {
	targets, err := m.rewriteTargets()
	if err != nil {
		return err
	}
	return m.FilesReplace(ctx, targets, batch, quote)
}

// FilesReplace applies batch to arbitrary text files of the project.
func (m *FileManager) FilesReplace(ctx context.Context, paths []string, batch *nedb.Batch, quote bool) error {
	r := &nedb.Rewriter{
		ProjectDir:     m.project.String(),
		TrashDir:       m.trashDir,
		TrashOverwrite: true,
	}
	if err := r.RewriteFiles(ctx, paths, batch, quote); err != nil {
		return errors.Errorf("rewriting references: %w", err)
	}
	return nil
}

// Preview reports what ProcessRewriteQueue would change.
func (m *FileManager) Preview(ctx context.Context, quote bool) ([]nedb.LineChange, error) {
	targets, err := m.rewriteTargets()
	if err != nil {
		return nil, err
	}
	var out []nedb.LineChange
	for _, t := range targets {
		changes, err := nedb.Preview(ctx, t, m.queue, quote)
		if err != nil {
			return nil, err
		}
		out = append(out, changes...)
	}
	return out, nil
}

// Plan lists the moves ProcessFileQueue would make.
func (m *FileManager) Plan() []log.FileOperation {
	var ops []log.FileOperation
	for _, f := range m.files {
		planned, ok := f.Planned()
		if !ok {
			continue
		}
		ops = append(ops, log.FileOperation{
			Path:   f.Path().TargetRelPath(),
			Target: planned.TargetRelPath(),
			Kind:   log.OpPlanned,
		})
	}
	return ops
}

func (m *FileManager) rewriteTargets() ([]string, error) {
	var targets []string
	if manifest := m.project.ManifestPath(); manifest != "" {
		if _, err := os.Stat(manifest); err == nil {
			targets = append(targets, manifest)
		}
	}
	dbs, err := nedb.Databases(m.project.String())
	if err != nil {
		return nil, err
	}
	return append(targets, dbs...), nil
}
