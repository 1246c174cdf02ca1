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

package manager

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/fwt/pkg/files"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ RenameProject moves (or with keep, copies) the whole project to dst and
// rewrites references to the old project directory and id. The returned
// manager works on the project at its new location.
func (m *FileManager) RenameProject(ctx context.Context, dst fpath.Path, keep bool) (*FileManager, error) {
	if dst.Exists() {
		return nil, errors.Errorf("%w: cannot rename project onto existing %s", fpath.ErrPath, dst)
	}

	oldDir := m.project.ProjectKind() + "s/" + m.project.ProjectName()
	newDir := escapeTemplate(dst.TargetRelPath())
	dirRules := nedb.NewBatch().Pattern(
		regexp.MustCompile(`"`+regexp.QuoteMeta(oldDir)+`/([^"]+)"`),
		`"`+newDir+`/${1}"`,
	)
	nameRules := nedb.NewBatch().Merge(dirRules).Pattern(
		regexp.MustCompile(regexp.QuoteMeta(`"`+m.project.ProjectName()+`"`)),
		`"`+escapeTemplate(dst.Base())+`"`,
	)

	kind := log.OpMoved
	if keep {
		kind = log.OpCopied
		if err := files.CopyTree(ctx, m.project.String(), dst.String()); err != nil {
			return nil, errors.Errorf("copying project: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dst.String()), 0o755); err != nil {
			return nil, errors.Errorf("creating parent of %s: %w", dst, err)
		}
		if err := os.Rename(m.project.String(), dst.String()); err != nil {
			return nil, errors.Errorf("moving project: %w", err)
		}
	}
	log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{
		Path:   m.project.TargetRelPath(),
		Target: dst.TargetRelPath(),
		Kind:   kind,
	})

	moved, err := m.project.Resolver().Resolve(ctx, dst.String(), fpath.WithRoot(m.project.Root()), fpath.RequireProject())
	if err != nil {
		return nil, errors.Errorf("resolving renamed project: %w", err)
	}
	next, err := New(ctx, moved, m.opts...)
	if err != nil {
		return nil, err
	}

	if err := next.FilesReplace(ctx, []string{next.project.ManifestPath()}, nameRules, false); err != nil {
		return nil, err
	}
	dbs, err := nedb.Databases(next.project.String())
	if err != nil {
		return nil, err
	}
	if err := next.FilesReplace(ctx, dbs, dirRules, false); err != nil {
		return nil, err
	}
	return next, nil
}

// 📥 FindRemoteAssets tracks every file of the src project referenced by
// this project's databases, planning a copy of each into this project
func (m *FileManager) FindRemoteAssets(ctx context.Context, src fpath.Path) error {
	if !src.IsProject() {
		return errors.Errorf("%w: %s is not inside a world or module", fpath.ErrPath, src)
	}
	srcDir := src.ProjectRelDir()
	re := regexp.MustCompile(regexp.QuoteMeta(srcDir+"/") + `[^"\\]+`)

	dbs, err := nedb.Databases(m.project.String())
	if err != nil {
		return err
	}
	found := map[string]struct{}{}
	for _, db := range dbs {
		err := nedb.EachLine(db, func(line string) error {
			for _, ref := range re.FindAllString(line, -1) {
				found[ref] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	refs := make([]string, 0, len(found))
	for ref := range found {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	for _, ref := range refs {
		p, err := m.resolve(ctx, filepath.Join(m.project.Root(), filepath.FromSlash(ref)))
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("asset", ref).Msg("referenced asset not found, skipping")
			continue
		}
		local := m.project.ProjectRelDir() + strings.TrimPrefix(ref, srcDir)
		target, err := m.resolve(ctx, filepath.Join(m.project.Root(), filepath.FromSlash(local)), fpath.AllowMissing())
		if err != nil {
			return errors.Errorf("planning %s: %w", ref, err)
		}

		e := m.AddFile(p)
		e.KeepOriginal = true
		if err := e.SetPlanned(ctx, target); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Debug().Str("asset", ref).Str("to", local).Msg("found remote asset")
	}
	return nil
}

func escapeTemplate(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
