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

// Package scan walks a directory tree lazily through a chain of directory
// and file filters.
package scan

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🚶 Scanner walks root depth-first, yielding the files that pass every filter
type Scanner struct {
	root  string
	dirs  []Filter
	files []Filter
}

// New creates a scanner rooted at root.
func New(root string, filters ...Filter) *Scanner {
	s := &Scanner{root: root}
	for _, f := range filters {
		s.Add(f)
	}
	return s
}

// Add appends a filter to the chain of its kind.
func (s *Scanner) Add(f Filter) *Scanner {
	if f.Kind == KindDir {
		s.dirs = append(s.dirs, f)
	} else {
		s.files = append(s.files, f)
	}
	return s
}

// Root returns the scan root.
func (s *Scanner) Root() string { return s.root }

// 🔄 Scan yields matching file paths. The sequence is single-pass; it stops
// at the first read error or when ctx is done.
func (s *Scanner) Scan(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		seen := map[string]struct{}{}
		s.walk(ctx, s.root, seen, yield)
	}
}

// Files collects the whole scan.
func (s *Scanner) Files(ctx context.Context) ([]string, error) {
	var out []string
	for path, err := range s.Scan(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, path)
	}
	return out, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, seen map[string]struct{}, yield func(string, error) bool) bool {
	if err := ctx.Err(); err != nil {
		yield("", err)
		return false
	}

	// symlinked directories are followed, but only once
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if _, ok := seen[real]; ok {
			return true
		}
		seen[real] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		yield("", errors.Errorf("reading %s: %w", dir, err))
		return false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				zerolog.Ctx(ctx).Debug().Str("path", path).Err(err).Msg("skipping broken symlink")
				continue
			}
			isDir = info.IsDir()
		}

		if isDir {
			if f, vetoed := firstVeto(s.dirs, path); vetoed {
				zerolog.Ctx(ctx).Trace().Str("dir", path).Str("filter", f).Msg("directory excluded")
				continue
			}
			if !s.walk(ctx, path, seen, yield) {
				return false
			}
			continue
		}

		if _, vetoed := firstVeto(s.files, path); vetoed {
			continue
		}
		if !yield(path, nil) {
			return false
		}
	}
	return true
}

func firstVeto(chain []Filter, path string) (string, bool) {
	for _, f := range chain {
		if !f.Allow(path) {
			return f.Name, true
		}
	}
	return "", false
}
