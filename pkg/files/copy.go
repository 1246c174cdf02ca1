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

package files

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// copyFile copies contents, mode and modification time. Ownership is copied
// when the process is allowed to.
func copyFile(ctx context.Context, src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("reading source %s: %w", src, err)
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing %s: %w", dst, err)
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return errors.Errorf("setting mode of %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errors.Errorf("setting times of %s: %w", dst, err)
	}
	if err := copyOwner(info, dst); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("path", dst).Msg("could not copy ownership")
	}
	return nil
}

// 🌳 CopyTree copies the directory src to dst, which must not exist.
// Symlinks are followed and their targets copied.
func CopyTree(ctx context.Context, src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return errors.Errorf("%s already exists", dst)
	}

	info, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("reading %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return errors.Errorf("creating %s: %w", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Errorf("reading %s: %w", src, err)
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		st, err := os.Stat(from)
		if err != nil {
			return errors.Errorf("reading %s: %w", from, err)
		}
		if st.IsDir() {
			if err := CopyTree(ctx, from, to); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(ctx, from, to); err != nil {
			return err
		}
	}
	return nil
}
