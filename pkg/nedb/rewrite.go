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

package nedb

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/writer"
	"gitlab.com/tozd/go/errors"
)

// DatabaseGlob matches the database files of a project.
const DatabaseGlob = "{data,packs}/*db"

var errUnchanged = errors.Base("no line changed")

// 🗄️ Databases lists the database files of a project directory
func Databases(projectDir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(projectDir), DatabaseGlob)
	if err != nil {
		return nil, errors.Errorf("globbing databases in %s: %w", projectDir, err)
	}
	sort.Strings(matches)

	var out []string
	for _, m := range matches {
		path := filepath.Join(projectDir, filepath.FromSlash(m))
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			out = append(out, path)
		}
	}
	return out, nil
}

// ✏️ Rewriter applies batches to text files through the scoped writer
type Rewriter struct {
	// ProjectDir anchors trash paths; files outside it are trashed by name.
	ProjectDir string
	// TrashDir receives previous versions; "" disables trashing.
	TrashDir string
	// TrashOverwrite lets a newer previous version replace one already trashed.
	TrashOverwrite bool
}

// RewriteFiles rewrites each file. A failed file keeps its original content
// and the remaining files are still processed.
func (r *Rewriter) RewriteFiles(ctx context.Context, files []string, batch *Batch, quote bool) error {
	if batch.Len() == 0 {
		return nil
	}

	var errs []error
	for _, f := range files {
		changed, err := r.RewriteFile(ctx, f, batch, quote)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("file", f).Msg("rewrite failed, original kept")
			errs = append(errs, err)
			continue
		}
		if changed > 0 {
			log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{
				Path:         r.display(f),
				Kind:         log.OpRewritten,
				Replacements: changed,
			})
		}
	}
	return errors.Join(errs...)
}

// 🔄 RewriteFile streams path line by line through batch and returns the
// number of changed lines. Files with no changes are left as they are.
func (r *Rewriter) RewriteFile(ctx context.Context, path string, batch *Batch, quote bool) (int, error) {
	changed := 0
	err := writer.Update(ctx, path, func(in *bufio.Reader, out io.Writer) error {
		return eachLine(in, func(line string) error {
			next := batch.ApplyLine(line, quote)
			if next != line {
				changed++
			}
			_, err := io.WriteString(out, next)
			return err
		}, func() error {
			if changed == 0 {
				return errUnchanged
			}
			return nil
		})
	}, r.writerOptions(path)...)

	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Errorf("rewriting %s: %w", path, err)
	}

	zerolog.Ctx(ctx).Debug().Str("file", path).Int("lines", changed).Msg("rewrote file")
	return changed, nil
}

func (r *Rewriter) writerOptions(path string) []writer.Option {
	if r.TrashDir == "" {
		return nil
	}
	return []writer.Option{
		writer.WithTrash(r.TrashDir, r.display(path)),
		writer.WithTrashOverwrite(r.TrashOverwrite),
	}
}

// display is path relative to the project dir when it is inside it.
func (r *Rewriter) display(path string) string {
	if r.ProjectDir != "" {
		if rel, err := filepath.Rel(r.ProjectDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

// eachLine calls fn for each line including its terminator, then done.
func eachLine(in *bufio.Reader, fn func(line string) error, done func() error) error {
	for {
		line, err := in.ReadString('\n')
		if line != "" {
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return done()
		}
		if err != nil {
			return errors.Errorf("reading line: %w", err)
		}
	}
}

// EachLine calls fn for every line of the text file at path, terminator included.
func EachLine(path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	if err := eachLine(bufio.NewReader(f), fn, func() error { return nil }); err != nil {
		return errors.Errorf("reading %s: %w", path, err)
	}
	return nil
}
