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
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🔧 Replacement is a compiled sed-style "/pattern/replacement/" rule
type Replacement struct {
	Pattern *regexp.Regexp
	Replace string
}

var groupRef = regexp.MustCompile(`\\(\d+)`)

// ParseReplacement splits "/pattern/replacement/" on unescaped slashes.
// "\/" stands for a literal slash and "\1" style group references become
// "${1}".
func ParseReplacement(sed string) (Replacement, error) {
	parts := splitUnescaped(sed, '/')
	if len(parts) != 4 || parts[0] != "" || parts[3] != "" {
		return Replacement{}, errors.Errorf("replace pattern %q must look like /pattern/replacement/", sed)
	}

	re, err := regexp.Compile(parts[1])
	if err != nil {
		return Replacement{}, errors.Errorf("compiling replace pattern %q: %w", parts[1], err)
	}

	repl := strings.ReplaceAll(parts[2], "$", "$$")
	repl = groupRef.ReplaceAllString(repl, "$${$1}")
	return Replacement{Pattern: re, Replace: repl}, nil
}

// splitUnescaped splits s on sep, treating "\sep" as a literal sep.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == sep {
			cur.WriteByte(sep)
			i++
			continue
		}
		if c == sep {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return append(parts, cur.String())
}

// 🔢 NextAvailable returns path, or the first sibling with a higher numeric
// suffix that does not exist ("session.0", "session.1", ...).
func NextAvailable(path string) string {
	dir, base := filepath.Split(path)
	prefix, n := base+".", 0
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		if v, err := strconv.Atoi(base[i+1:]); err == nil {
			prefix, n = base[:i+1], v
		}
	}
	for {
		candidate := filepath.Join(dir, prefix+strconv.Itoa(n))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
		n++
	}
}
