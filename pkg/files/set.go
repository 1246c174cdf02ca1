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
	"fmt"
	"regexp"
	"strings"

	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// ErrNotInSet is returned when a preferred entry is not one of the set's files.
var ErrNotInSet = errors.Base("file is not a member of the set")

// 👯 Set is a group of files considered duplicates. The preferred file is
// kept; every other member is trashed and rewritten to point at it.
type Set struct {
	key       string
	trashDir  string
	members   []*Entry
	preferred *Entry
}

// NewSet creates an empty set.
func NewSet(key, trashDir string) *Set {
	return &Set{key: key, trashDir: trashDir}
}

// Key returns the detection key.
func (s *Set) Key() string { return s.key }

// ➕ Add wraps path in an Entry and adds it
func (s *Set) Add(path fpath.Path) *Entry {
	e := NewEntry(path, s.trashDir)
	s.AddEntry(e)
	return e
}

// AddEntry adds e unless an entry for the same path is present.
func (s *Set) AddEntry(e *Entry) bool {
	if s.preferred != nil && s.preferred.Equal(e) {
		return false
	}
	for _, m := range s.members {
		if m.Equal(e) {
			return false
		}
	}
	s.members = append(s.members, e)
	return true
}

// Members returns the non-preferred files.
func (s *Set) Members() []*Entry {
	out := make([]*Entry, len(s.members))
	copy(out, s.members)
	return out
}

// Preferred returns the kept file, nil when none is chosen.
func (s *Set) Preferred() *Entry { return s.preferred }

// Len counts members plus the preferred file.
func (s *Set) Len() int {
	n := len(s.members)
	if s.preferred != nil {
		n++
	}
	return n
}

// 🎯 SetPreferred makes e the kept file. The previous preferred file returns
// to the members; nil clears the choice.
func (s *Set) SetPreferred(e *Entry) error {
	if e == nil {
		if s.preferred != nil {
			s.members = append(s.members, s.preferred)
			s.preferred = nil
		}
		return nil
	}
	if s.preferred != nil && s.preferred.Equal(e) {
		return nil
	}

	idx := -1
	for i, m := range s.members {
		if m.Equal(e) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.Errorf("%w: %s not in %s", ErrNotInSet, e, s)
	}

	chosen := s.members[idx]
	s.members = append(s.members[:idx], s.members[idx+1:]...)
	if s.preferred != nil {
		s.members = append(s.members, s.preferred)
	}
	s.preferred = chosen
	return nil
}

// ChoosePreferredMatch prefers the first member whose absolute path matches re.
func (s *Set) ChoosePreferredMatch(re *regexp.Regexp) bool {
	for _, m := range s.members {
		if re.MatchString(m.Path().String()) {
			return s.SetPreferred(m) == nil
		}
	}
	return false
}

// ChoosePreferredIndex prefers the member at position i.
func (s *Set) ChoosePreferredIndex(i int) bool {
	if i < 0 || i >= len(s.members) {
		return false
	}
	return s.SetPreferred(s.members[i]) == nil
}

// 🔁 RewriteData maps every member's target path to the preferred file's
// planned (or current) target path
func (s *Set) RewriteData() *nedb.Batch {
	b := nedb.NewBatch()
	if s.preferred == nil {
		return b
	}
	dest := s.preferred.Path()
	if planned, ok := s.preferred.Planned(); ok {
		dest = planned
	}
	b.Literal(s.preferred.Path().TargetRelPath(), dest.TargetRelPath())
	for _, m := range s.members {
		b.Literal(m.Path().TargetRelPath(), dest.TargetRelPath())
	}
	return b
}

func (s *Set) String() string {
	names := make([]string, 0, s.Len())
	if s.preferred != nil {
		names = append(names, "*"+s.preferred.Path().ProjectRelPath())
	}
	for _, m := range s.members {
		names = append(names, m.Path().ProjectRelPath())
	}
	return fmt.Sprintf("set %s [%s]", s.key, strings.Join(names, ", "))
}
