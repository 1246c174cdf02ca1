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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/fwt/pkg/files"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/log"
	"github.com/walteh/fwt/pkg/nedb"
	"gitlab.com/tozd/go/errors"
)

// DetectMethod selects how duplicate files are grouped.
type DetectMethod string

const (
	// ByContent groups files with identical bytes.
	ByContent DetectMethod = "bycontent"
	// ByName groups files sharing a directory and a name without extension.
	ByName DetectMethod = "byname"
)

const (
	// MaxProbe caps the fingerprint keys tried for one file before giving up.
	MaxProbe = 64

	// ProjectDirPlaceholder is replaced with the project directory in preferred patterns.
	ProjectDirPlaceholder = "<project_dir>"

	fingerprintSize = 4096
)

// ErrDetectMethod is returned for an unknown detection method.
var ErrDetectMethod = errors.Base("detect method must be bycontent or byname")

// 👯 SetManager groups duplicate files into sets, keeps one preferred file
// per set and trashes the rest
type SetManager struct {
	*FileManager
	method    DetectMethod
	preferred []string
	sets      map[string]*files.Set
	order     []string
}

// NewSetManager creates a duplicate manager for the project containing dir.
func NewSetManager(ctx context.Context, dir fpath.Path, method DetectMethod, opts ...Option) (*SetManager, error) {
	fm, err := New(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	m := &SetManager{FileManager: fm, sets: map[string]*files.Set{}}
	if err := m.SetDetectMethod(method); err != nil {
		return nil, err
	}
	return m, nil
}

// SetDetectMethod changes the detection method.
func (m *SetManager) SetDetectMethod(method DetectMethod) error {
	switch method {
	case ByContent, ByName:
		m.method = method
		return nil
	}
	return errors.Errorf("%w: got %q", ErrDetectMethod, method)
}

// DetectMethod returns the detection method.
func (m *SetManager) DetectMethod() DetectMethod { return m.method }

// AddPreferredPattern adds a regular expression choosing the kept file.
// "<project_dir>" stands for the absolute project directory.
func (m *SetManager) AddPreferredPattern(pattern string) {
	m.preferred = append(m.preferred, pattern)
}

// Sets returns the duplicate sets in discovery order.
func (m *SetManager) Sets() []*files.Set {
	out := make([]*files.Set, 0, len(m.order))
	for _, k := range m.order {
		if s, ok := m.sets[k]; ok {
			out = append(out, s)
		}
	}
	return out
}

// 🔍 Scan groups every project file passing the filters. Files without a
// duplicate are dropped.
func (m *SetManager) Scan(ctx context.Context) error {
	err := m.scanEach(ctx, func(p fpath.Path) error {
		if m.method == ByName {
			m.addByName(p)
			return nil
		}
		return m.addByContent(ctx, p)
	})
	if err != nil {
		return err
	}

	order := m.order[:0]
	for _, k := range m.order {
		if m.sets[k].Len() < 2 {
			delete(m.sets, k)
			continue
		}
		order = append(order, k)
	}
	m.order = order

	zerolog.Ctx(ctx).Debug().Int("sets", len(m.order)).Str("method", string(m.method)).Msg("scanned for duplicates")
	return nil
}

func (m *SetManager) addByName(p fpath.Path) {
	rel := p.TargetRelPath()
	key := strings.TrimSuffix(rel, path.Ext(rel))
	m.set(key).Add(p)
}

func (m *SetManager) addByContent(ctx context.Context, p fpath.Path) error {
	sum, ok, err := fingerprint(p.String())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for i := uint64(0); i < MaxProbe; i++ {
		key := fmt.Sprintf("%016x", sum+i)
		s, exists := m.sets[key]
		if !exists {
			m.set(key).Add(p)
			return nil
		}
		same, err := sameContent(p.String(), s.Members()[0].Path().String())
		if err != nil {
			return err
		}
		if same {
			s.Add(p)
			return nil
		}
	}

	zerolog.Ctx(ctx).Error().
		Str("file", p.TargetRelPath()).
		Int("probes", MaxProbe).
		Msg("too many fingerprint collisions, skipping file")
	return nil
}

func (m *SetManager) set(key string) *files.Set {
	s, ok := m.sets[key]
	if !ok {
		s = files.NewSet(key, m.trashDir)
		m.sets[key] = s
		m.order = append(m.order, key)
	}
	return s
}

// 🎯 SetPreferredOnAll picks the kept file of every set: the first member
// matching a preferred pattern, tried in order, else the first member
func (m *SetManager) SetPreferredOnAll(ctx context.Context) error {
	res := make([]*regexp.Regexp, 0, len(m.preferred))
	for _, p := range m.preferred {
		p = strings.ReplaceAll(p, ProjectDirPlaceholder, regexp.QuoteMeta(m.project.String()))
		re, err := regexp.Compile(p)
		if err != nil {
			return errors.Errorf("compiling preferred pattern %q: %w", p, err)
		}
		res = append(res, re)
	}

	for _, s := range m.Sets() {
		chosen := false
		for _, re := range res {
			if s.ChoosePreferredMatch(re) {
				zerolog.Ctx(ctx).Debug().Str("set", s.Key()).Str("pattern", re.String()).Msg("preferred by pattern")
				chosen = true
				break
			}
		}
		if !chosen && s.Preferred() == nil {
			s.ChoosePreferredIndex(0)
		}
	}
	return nil
}

// GenerateRewriteQueue maps every member of every set to its preferred file.
// Sets without a preferred file contribute nothing.
func (m *SetManager) GenerateRewriteQueue(ctx context.Context, _ bool) error {
	queue := nedb.NewBatch()
	for _, s := range m.Sets() {
		queue.Merge(s.RewriteData())
	}
	zerolog.Ctx(ctx).Debug().Int("rewrites", queue.Len()).Msg("generated duplicate rewrite queue")
	m.queue = queue
	return nil
}

// 🚚 ProcessFileQueue moves each preferred file if planned, then trashes
// the other members. When the preferred file cannot move, its set is left
// untouched and dropped from the rewrite queue.
func (m *SetManager) ProcessFileQueue(ctx context.Context) error {
	for _, s := range m.Sets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		pref := s.Preferred()
		if pref == nil {
			continue
		}

		if _, planned := pref.Planned(); planned && !m.execute(ctx, pref) {
			for _, r := range s.RewriteData().Rules() {
				m.failed = append(m.failed, r.Find)
			}
			continue
		}

		for _, e := range s.Members() {
			source := e.Path()
			ok, err := e.Trash(ctx)
			if ok {
				continue
			}
			if err == nil {
				err = errors.Errorf("%w: trash target already exists", fpath.ErrPath)
			}
			log.FromContext(ctx).LogFileOperation(ctx, log.FileOperation{
				Path: source.ProjectRelPath(),
				Kind: log.OpFailed,
				Err:  err,
			})
		}
	}
	return nil
}

// Plan lists the files that would be trashed in favour of their preferred copy.
func (m *SetManager) Plan() []log.FileOperation {
	var ops []log.FileOperation
	for _, s := range m.Sets() {
		pref := s.Preferred()
		if pref == nil {
			continue
		}
		keep := pref.Path()
		if planned, ok := pref.Planned(); ok {
			ops = append(ops, log.FileOperation{Path: keep.TargetRelPath(), Target: planned.TargetRelPath(), Kind: log.OpPlanned})
			keep = planned
		}
		for _, e := range s.Members() {
			ops = append(ops, log.FileOperation{Path: e.Path().TargetRelPath(), Target: keep.TargetRelPath(), Kind: log.OpTrashed})
		}
	}
	return ops
}

// fingerprint hashes the head of a file; ok is false for empty files.
func fingerprint(name string) (uint64, bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, false, errors.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	buf := make([]byte, fingerprintSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, false, errors.Errorf("reading %s: %w", name, err)
	}
	if n == 0 {
		return 0, false, nil
	}
	sum := sha256.Sum256(buf[:n])
	return binary.BigEndian.Uint64(sum[:8]), true, nil
}

// sameContent compares two files byte for byte.
func sameContent(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, errors.Errorf("stat %s: %w", a, err)
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, errors.Errorf("stat %s: %w", b, err)
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, errors.Errorf("opening %s: %w", a, err)
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, errors.Errorf("opening %s: %w", b, err)
	}
	defer fb.Close()

	bufA := make([]byte, 32*1024)
	bufB := make([]byte, 32*1024)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA != nil || errB != nil {
			if (errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)) &&
				(errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)) {
				return true, nil
			}
			return false, errors.Errorf("comparing %s and %s: %w", a, b, errors.Join(errA, errB))
		}
	}
}
