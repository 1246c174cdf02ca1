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

// Package writer replaces files atomically through a sibling temp file,
// optionally moving the previous version into a trash directory first.
package writer

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// TempSuffix is appended to the destination to name the temp file.
const TempSuffix = ".part"

// ErrTrashExists is returned when the trash slot for the previous version is
// already taken and trash overwrite is disabled.
var ErrTrashExists = errors.Base("trash target already exists")

// ✍️ Writer streams into dest+".part" and swaps it in on Commit
type Writer struct {
	dest           string
	temp           string
	file           *os.File
	written        int64
	trashDir       string
	trashRel       string
	trashOverwrite bool
	perm           os.FileMode
	done           bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithTrash moves the replaced file to dir/rel on commit.
func WithTrash(dir, rel string) Option {
	return func(w *Writer) {
		w.trashDir = dir
		w.trashRel = rel
	}
}

// WithTrashOverwrite controls whether an occupied trash slot may be replaced.
func WithTrashOverwrite(overwrite bool) Option {
	return func(w *Writer) { w.trashOverwrite = overwrite }
}

// WithPerm sets the mode of a newly created destination.
func WithPerm(perm os.FileMode) Option {
	return func(w *Writer) { w.perm = perm }
}

// 🏭 Open creates the temp file next to dest
func Open(dest string, opts ...Option) (*Writer, error) {
	w := &Writer{
		dest:           dest,
		temp:           dest + TempSuffix,
		trashOverwrite: true,
		perm:           0o644,
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(dest); err == nil {
		w.perm = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, errors.Errorf("creating parent directories: %w", err)
	}

	f, err := os.OpenFile(w.temp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, w.perm)
	if err != nil {
		return nil, errors.Errorf("creating temp file: %w", err)
	}
	w.file = f
	return w, nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 { return w.written }

// 💾 Commit swaps the temp file in. Writing nothing leaves dest untouched.
func (w *Writer) Commit(ctx context.Context) error {
	if w.done {
		return errors.New("writer already closed")
	}
	w.done = true

	if err := w.file.Close(); err != nil {
		os.Remove(w.temp)
		return errors.Errorf("closing temp file: %w", err)
	}

	if w.written == 0 {
		zerolog.Ctx(ctx).Debug().Str("dest", w.dest).Msg("nothing written, keeping original")
		if err := os.Remove(w.temp); err != nil {
			return errors.Errorf("removing empty temp file: %w", err)
		}
		return nil
	}

	trashed := ""
	if w.trashDir != "" {
		var err error
		if trashed, err = w.trashOriginal(ctx); err != nil {
			os.Remove(w.temp)
			return err
		}
	}

	if err := rename(w.temp, w.dest); err != nil {
		os.Remove(w.temp)
		if trashed != "" {
			if rerr := rename(trashed, w.dest); rerr != nil {
				zerolog.Ctx(ctx).Error().Err(rerr).Str("dest", w.dest).Str("trash", trashed).Msg("restoring previous version")
			}
		}
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// rename is swapped out in tests to fail the final swap.
var rename = os.Rename

// trashOriginal moves the current dest into the trash and returns where it
// went, "" when there was nothing to move.
func (w *Writer) trashOriginal(ctx context.Context) (string, error) {
	if _, err := os.Lstat(w.dest); os.IsNotExist(err) {
		return "", nil
	}

	target := filepath.Join(w.trashDir, filepath.FromSlash(w.trashRel))
	if _, err := os.Lstat(target); err == nil && !w.trashOverwrite {
		return "", errors.Errorf("%w: %s", ErrTrashExists, target)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.Errorf("creating trash directory: %w", err)
	}
	if err := rename(w.dest, target); err != nil {
		return "", errors.Errorf("moving %s to trash: %w", w.dest, err)
	}

	zerolog.Ctx(ctx).Debug().Str("dest", w.dest).Str("trash", target).Msg("trashed previous version")
	return target, nil
}

// Abort discards the temp file. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.file.Close()
	if err := os.Remove(w.temp); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing temp file: %w", err)
	}
	return nil
}

// 🔄 Update streams dest through fn into a replacement. The replacement is
// committed only when fn returns nil; every other exit removes the temp file.
func Update(ctx context.Context, dest string, fn func(r *bufio.Reader, w io.Writer) error, opts ...Option) error {
	src, err := os.Open(dest)
	if err != nil {
		return errors.Errorf("opening %s: %w", dest, err)
	}
	defer src.Close()

	w, err := Open(dest, opts...)
	if err != nil {
		return err
	}
	defer w.Abort()

	if err := fn(bufio.NewReader(src), w); err != nil {
		return err
	}

	// the original must be closed before it is renamed away on some systems
	src.Close()
	return w.Commit(ctx)
}

// WriteFile replaces dest with data.
func WriteFile(ctx context.Context, dest string, data []byte, opts ...Option) error {
	w, err := Open(dest, opts...)
	if err != nil {
		return err
	}
	defer w.Abort()

	if _, err := w.Write(data); err != nil {
		return errors.Errorf("writing %s: %w", dest, err)
	}
	return w.Commit(ctx)
}
