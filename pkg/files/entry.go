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

// Package files plans and executes moves, copies and trashing of single
// files, and groups duplicates into sets.
package files

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// 📄 Entry is a file with an optional planned destination
type Entry struct {
	path     fpath.Path
	planned  fpath.Path
	hasPlan  bool
	trashDir string

	// KeepOriginal turns a rename into a copy.
	KeepOriginal bool
}

// 🏭 NewEntry wraps path. A relative trashDir is taken from the project dir.
func NewEntry(path fpath.Path, trashDir string) *Entry {
	if trashDir != "" && !filepath.IsAbs(trashDir) {
		trashDir = filepath.Join(path.ProjectDir(), trashDir)
	}
	return &Entry{path: path, trashDir: trashDir}
}

// Path returns the current location.
func (e *Entry) Path() fpath.Path { return e.path }

// TrashDir returns the trash directory, "" when trashing deletes.
func (e *Entry) TrashDir() string { return e.trashDir }

// Planned returns the planned destination.
func (e *Entry) Planned() (fpath.Path, bool) { return e.planned, e.hasPlan }

// ClearPlanned drops the planned destination.
func (e *Entry) ClearPlanned() {
	e.planned = fpath.Path{}
	e.hasPlan = false
}

// 🎯 SetPlanned plans a move to candidate. A candidate that is the same file
// is ignored; an existing directory receives the file under its own name.
func (e *Entry) SetPlanned(ctx context.Context, candidate fpath.Path) error {
	if candidate.String() == e.path.String() {
		e.ClearPlanned()
		return nil
	}

	if target, err := os.Stat(candidate.String()); err == nil {
		if current, err := os.Stat(e.path.String()); err == nil && os.SameFile(current, target) {
			zerolog.Ctx(ctx).Warn().
				Str("from", e.path.String()).
				Str("to", candidate.String()).
				Msg("source and target are the same file, ignoring")
			return nil
		}
		if target.IsDir() && !e.path.IsDir() {
			inside, err := candidate.Join(ctx, e.path.Base())
			if err != nil {
				return errors.Errorf("planning %s into %s: %w", e.path, candidate, err)
			}
			candidate = inside
		}
	}

	e.planned = candidate
	e.hasPlan = true
	return nil
}

// 🚚 Rename carries out the planned move. It reports false without error
// when there is nothing to do or the target is already taken.
func (e *Entry) Rename(ctx context.Context) (bool, error) {
	if e.KeepOriginal {
		return e.Copy(ctx, false)
	}
	return e.move(ctx, log.OpMoved)
}

func (e *Entry) move(ctx context.Context, kind log.OpKind) (bool, error) {
	if !e.hasPlan {
		return false, nil
	}

	target := e.planned.String()
	if _, err := os.Lstat(target); err == nil {
		zerolog.Ctx(ctx).Error().Str("from", e.path.String()).Str("to", target).Msg("target already exists, not moving")
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, errors.Errorf("creating parent of %s: %w", target, err)
	}
	if err := os.Rename(e.path.String(), target); err != nil {
		return false, errors.Errorf("moving %s to %s: %w", e.path, target, err)
	}
	pruneEmptyParents(filepath.Dir(e.path.String()), e.path.ProjectDir())

	log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{
		Path:   e.path.ProjectRelPath(),
		Target: e.planned.ProjectRelPath(),
		Kind:   kind,
	})

	e.path = e.planned
	e.ClearPlanned()
	return true, nil
}

// 📋 Copy copies the file to its planned destination, keeping mode, times and
// ownership where permitted. An occupied target is an error unless overwrite.
func (e *Entry) Copy(ctx context.Context, overwrite bool) (bool, error) {
	if !e.hasPlan {
		return false, nil
	}

	target := e.planned.String()
	if _, err := os.Lstat(target); err == nil && !overwrite {
		return false, errors.Errorf("%w: %s already exists", fpath.ErrPath, target)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, errors.Errorf("creating parent of %s: %w", target, err)
	}
	if err := copyFile(ctx, e.path.String(), target); err != nil {
		return false, err
	}

	log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{
		Path:   e.path.TargetRelPath(),
		Target: e.planned.TargetRelPath(),
		Kind:   log.OpCopied,
	})

	e.path = e.planned
	e.ClearPlanned()
	return true, nil
}

// 🗑️ Trash moves the file under the trash dir, mirroring its place in the
// project. Without a trash dir the file is deleted. KeepOriginal does not
// apply: the file always leaves its place.
func (e *Entry) Trash(ctx context.Context) (bool, error) {
	if e.trashDir == "" {
		if err := os.Remove(e.path.String()); err != nil {
			return false, errors.Errorf("deleting %s: %w", e.path, err)
		}
		log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{
			Path: e.path.ProjectRelPath(),
			Kind: log.OpDeleted,
		})
		return true, nil
	}

	dest, err := e.path.Resolver().Resolve(ctx,
		filepath.Join(e.trashDir, filepath.FromSlash(e.path.ProjectRelPath())),
		fpath.WithRoot(e.path.Root()), fpath.AllowMissing())
	if err != nil {
		return false, errors.Errorf("planning trash for %s: %w", e.path, err)
	}

	e.planned = dest
	e.hasPlan = true
	ok, err := e.move(ctx, log.OpTrashed)
	if !ok {
		e.ClearPlanned()
	}
	return ok, err
}

// Equal compares current locations.
func (e *Entry) Equal(o *Entry) bool {
	return o != nil && e.path.String() == o.path.String()
}

func (e *Entry) String() string { return e.path.String() }

// pruneEmptyParents removes emptied directories from dir up to, but not
// including, stop.
func pruneEmptyParents(dir, stop string) {
	for dir != stop && len(dir) > len(stop) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
