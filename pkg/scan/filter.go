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

package scan

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind tells the scanner which chain a Filter belongs to.
type Kind int

const (
	KindDir  Kind = iota // consulted before descending into a directory
	KindFile             // consulted before yielding a file
)

// 🧹 Filter is a named predicate over an absolute path. It returns false to
// veto the path.
type Filter struct {
	Kind  Kind
	Name  string
	Allow func(path string) bool
}

// DirFilter wraps a directory predicate.
func DirFilter(name string, allow func(path string) bool) Filter {
	return Filter{Kind: KindDir, Name: name, Allow: allow}
}

// FileFilter wraps a file predicate.
func FileFilter(name string, allow func(path string) bool) Filter {
	return Filter{Kind: KindFile, Name: name, Allow: allow}
}

// 🚫 ExcludeDirs vetoes directories matching any of the patterns
func ExcludeDirs(patterns ...string) Filter {
	return DirFilter("exclude-dirs", func(path string) bool {
		return !MatchAny(patterns, path)
	})
}

// IncludeDirs only descends into directories matching one of the patterns.
func IncludeDirs(patterns ...string) Filter {
	return DirFilter("include-dirs", func(path string) bool {
		return MatchAny(patterns, path)
	})
}

// 📎 FileExtensions accepts files whose extension is one of exts, ignoring
// case. A leading dot is optional.
func FileExtensions(exts ...string) Filter {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[NormalizeExt(e)] = struct{}{}
	}
	return FileFilter("extensions", func(path string) bool {
		_, ok := set[strings.ToLower(filepath.Ext(path))]
		return ok
	})
}

// FileNames accepts files matching one of the patterns.
func FileNames(patterns ...string) Filter {
	return FileFilter("include-names", func(path string) bool {
		return MatchAny(patterns, path)
	})
}

// ExcludeFileNames rejects files matching any of the patterns.
func ExcludeFileNames(patterns ...string) Filter {
	return FileFilter("exclude-names", func(path string) bool {
		return !MatchAny(patterns, path)
	})
}

// NormalizeExt lowercases an extension and prefixes the dot when missing.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// 🔍 Match applies a glob to a path. Absolute patterns must match the whole
// path; relative ones match the trailing segments, so "trash*" matches any
// directory named trash-something at any depth.
func Match(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	path = filepath.ToSlash(path)

	if strings.HasPrefix(pattern, "/") {
		ok, err := doublestar.Match(pattern, path)
		return err == nil && ok
	}

	n := strings.Count(strings.Trim(pattern, "/"), "/") + 1
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < n {
		return false
	}
	ok, err := doublestar.Match(strings.Trim(pattern, "/"), strings.Join(segs[len(segs)-n:], "/"))
	return err == nil && ok
}

// MatchAny reports whether any pattern matches path.
func MatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if Match(p, path) {
			return true
		}
	}
	return false
}
