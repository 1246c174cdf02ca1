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
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gitlab.com/tozd/go/errors"
)

// contextWidth is how much unchanged text is kept around each edit in a preview.
const contextWidth = 24

// 👀 LineChange describes one line a rewrite would change
type LineChange struct {
	File   string
	Line   int
	Before string
	After  string
	Diff   string
}

// Preview reports the lines of path that batch would change without writing.
func Preview(ctx context.Context, path string, batch *Batch, quote bool) ([]LineChange, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var changes []LineChange
	n := 0
	err = eachLine(bufio.NewReader(f), func(line string) error {
		n++
		next := batch.ApplyLine(line, quote)
		if next != line {
			before := strings.TrimRight(line, "\r\n")
			after := strings.TrimRight(next, "\r\n")
			changes = append(changes, LineChange{
				File:   path,
				Line:   n,
				Before: before,
				After:  after,
				Diff:   InlineDiff(before, after),
			})
		}
		return nil
	}, func() error { return nil })
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// 🧮 InlineDiff renders before→after as text with [-removed-] and {+added+}
// markers, eliding long unchanged stretches.
func InlineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var sb strings.Builder
	for i, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+" + d.Text + "+}")
		default:
			sb.WriteString(elide(d.Text, i == 0, i == len(diffs)-1))
		}
	}
	return sb.String()
}

func elide(s string, first, last bool) string {
	r := []rune(s)
	switch {
	case first && len(r) > contextWidth:
		return "…" + string(r[len(r)-contextWidth:])
	case last && len(r) > contextWidth:
		return string(r[:contextWidth]) + "…"
	case !first && !last && len(r) > 2*contextWidth:
		return string(r[:contextWidth]) + "…" + string(r[len(r)-contextWidth:])
	default:
		return s
	}
}
