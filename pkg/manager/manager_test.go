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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/testutils"
)

type fixture struct {
	ctx   context.Context
	f     *testutils.Foundry
	world *testutils.Project
	r     *fpath.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := testutils.NewFoundry(t)
	return &fixture{
		ctx:   testutils.Context(t),
		f:     f,
		world: f.Project("world", "foo", 11),
		r:     fpath.NewResolver(f.Root),
	}
}

func (fx *fixture) resolve(t *testing.T, abs string, opts ...fpath.ResolveOption) fpath.Path {
	t.Helper()
	p, err := fx.r.Resolve(fx.ctx, abs, opts...)
	require.NoError(t, err, "resolving %s", abs)
	return p
}

func TestRenameSegments(t *testing.T) {
	fx := newFixture(t)
	m, err := New(fx.ctx, fx.resolve(t, fx.world.Dir))
	require.NoError(t, err)
	require.NoError(t, m.AddRemovePattern("@"))
	require.NoError(t, m.AddReplacePattern("/ /_/"))

	tests := []struct {
		name  string
		in    string
		lower bool
		want  string
		ok    bool
	}{
		{name: "remove", in: "tok@en.png", want: "token.png", ok: true},
		{name: "remove_then_lower", in: "Tok@en.PNG", lower: true, want: "token.png", ok: true},
		{name: "per_segment", in: "My Maps/Big Map.jpg", want: "My_Maps/Big_Map.jpg", ok: true},
		{name: "empty_segment", in: "@@/x.png", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.renameSegments(tt.in, tt.lower)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNewRequiresProject(t *testing.T) {
	fx := newFixture(t)
	testutils.WriteFile(t, filepath.Join(fx.f.Root, "loose", "art", "x.png"), "x")

	_, err := New(fx.ctx, fx.resolve(t, filepath.Join(fx.f.Root, "loose", "art")))
	require.Error(t, err)
	assert.ErrorIs(t, err, fpath.ErrPath)
}

func TestNewTrashSession(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteFile("trash/session.0/old.png", "o")

	m, err := New(fx.ctx, fx.resolve(t, filepath.Join(fx.world.Dir, "world.json")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fx.world.Dir, "trash", "session.1"), m.TrashDir())
	assert.Equal(t, "worlds/foo", m.Project().TargetRelPath(), "any path inside the project selects its directory")

	none, err := New(fx.ctx, fx.resolve(t, fx.world.Dir), WithoutTrash())
	require.NoError(t, err)
	assert.Empty(t, none.TrashDir())
}

func TestRenameAll(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteFile("Maps/tok@en.png", "m")
	fx.world.WriteFile("Tokens/Hero.PNG", "h")
	fx.world.WriteFile("Notes.txt", "n")
	fx.world.WriteFile("trash/session.0/Old.png", "o")
	fx.world.WriteDB("actors.db",
		`{"_id":"a","img":"worlds/foo/Tokens/Hero.PNG"}`,
		`{"_id":"b","img":"worlds/foo/Maps/tok@en.png"}`,
	)

	m, err := New(fx.ctx, fx.resolve(t, fx.world.Dir))
	require.NoError(t, err)
	m.AddFileExtensions("png")
	require.NoError(t, m.AddRemovePattern("@"))
	require.NoError(t, m.Scan(fx.ctx))
	require.Len(t, m.Files(), 2, "trash and non-matching files are not tracked")

	_, err = Run(fx.ctx, m, RunOptions{Lower: true})
	require.NoError(t, err)

	assert.Equal(t, "m", fx.world.ReadFile("maps/token.png"))
	assert.Equal(t, "h", fx.world.ReadFile("tokens/hero.png"))
	assert.True(t, fx.world.Exists("Notes.txt"))
	assert.True(t, fx.world.Exists("trash/session.0/Old.png"))
	assert.Equal(t,
		`{"_id":"a","img":"worlds/foo/tokens/hero.png"}`+"\n"+
			`{"_id":"b","img":"worlds/foo/maps/token.png"}`+"\n",
		fx.world.ReadFile("data/actors.db"))
	assert.Contains(t, fx.world.ReadFile("trash/session.1/data/actors.db"), "Tokens/Hero.PNG",
		"previous database version is kept in this session's trash")
}

func TestRenameAllFailedMoveKeepsReferences(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteFile("A.png", "upper")
	fx.world.WriteFile("a.png", "lower")
	fx.world.WriteFile("B.png", "b")
	fx.world.WriteDB("scenes.db", `{"img":"worlds/foo/A.png","bg":"worlds/foo/B.png"}`)

	m, err := New(fx.ctx, fx.resolve(t, fx.world.Dir))
	require.NoError(t, err)
	m.AddFileExtensions("png")
	require.NoError(t, m.Scan(fx.ctx))

	_, err = Run(fx.ctx, m, RunOptions{Lower: true})
	require.NoError(t, err)

	assert.Equal(t, "upper", fx.world.ReadFile("A.png"), "occupied target leaves the file alone")
	assert.Equal(t, "lower", fx.world.ReadFile("a.png"))
	assert.Equal(t, "b", fx.world.ReadFile("b.png"))
	assert.Equal(t, []string{"worlds/foo/A.png"}, m.Failed())
	assert.Equal(t, `{"img":"worlds/foo/A.png","bg":"worlds/foo/b.png"}`+"\n", fx.world.ReadFile("data/scenes.db"))
}

func TestRunDryRun(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteFile("Art/Hero.png", "h")
	fx.world.WriteDB("actors.db", `{"img":"worlds/foo/Art/Hero.png"}`)

	m, err := New(fx.ctx, fx.resolve(t, fx.world.Dir))
	require.NoError(t, err)
	require.NoError(t, m.Scan(fx.ctx))

	changes, err := Run(fx.ctx, m, RunOptions{Lower: true, DryRun: true})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, `{"img":"worlds/foo/art/hero.png"}`, changes[0].After)
	assert.True(t, fx.world.Exists("Art/Hero.png"), "dry run moves nothing")
	assert.Equal(t, `{"img":"worlds/foo/Art/Hero.png"}`+"\n", fx.world.ReadFile("data/actors.db"))

	plan := m.Plan()
	require.Len(t, plan, 1)
	assert.Equal(t, "worlds/foo/Art/Hero.png", plan[0].Path)
	assert.Equal(t, "worlds/foo/art/hero.png", plan[0].Target)
}

func TestDedupByContent(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteFile("a/char.png", "same bytes")
	fx.world.WriteFile("b/char.png", "same bytes")
	fx.world.WriteFile("c/other.png", "other bytes")
	fx.world.WriteFile("d/empty.png", "")
	fx.world.WriteFile("e/empty.png", "")
	fx.world.WriteDB("actors.db", `{"img":"worlds/foo/b/char.png"}`, `{"img":"worlds/foo/c/other.png"}`)

	m, err := NewSetManager(fx.ctx, fx.resolve(t, fx.world.Dir), ByContent)
	require.NoError(t, err)
	m.AddFileExtensions("png")
	m.AddPreferredPattern("<project_dir>/a/")
	require.NoError(t, m.Scan(fx.ctx))

	sets := m.Sets()
	require.Len(t, sets, 1, "unique and empty files form no set")
	require.NoError(t, m.SetPreferredOnAll(fx.ctx))
	require.NotNil(t, sets[0].Preferred())
	assert.Equal(t, "worlds/foo/a/char.png", sets[0].Preferred().Path().TargetRelPath())

	rd := sets[0].RewriteData()
	for _, from := range []string{"worlds/foo/a/char.png", "worlds/foo/b/char.png"} {
		to, ok := rd.Lookup(from)
		assert.True(t, ok, from)
		assert.Equal(t, "worlds/foo/a/char.png", to)
	}

	_, err = Run(fx.ctx, m, RunOptions{})
	require.NoError(t, err)

	assert.True(t, fx.world.Exists("a/char.png"))
	assert.False(t, fx.world.Exists("b/char.png"))
	assert.Equal(t, "same bytes", fx.world.ReadFile("trash/session.0/b/char.png"))
	assert.Equal(t,
		`{"img":"worlds/foo/a/char.png"}`+"\n"+`{"img":"worlds/foo/c/other.png"}`+"\n",
		fx.world.ReadFile("data/actors.db"))
}

func TestDedupByName(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteFile("tokens/hero.png", "png")
	fx.world.WriteFile("tokens/hero.webp", "webp")
	fx.world.WriteFile("tokens/villain.png", "png")

	m, err := NewSetManager(fx.ctx, fx.resolve(t, fx.world.Dir), ByName, WithoutTrash())
	require.NoError(t, err)
	m.AddPreferredPattern(`\.webp$`)
	require.NoError(t, m.Scan(fx.ctx))
	require.Len(t, m.Sets(), 1)
	assert.Equal(t, "worlds/foo/tokens/hero", m.Sets()[0].Key())

	require.NoError(t, m.SetPreferredOnAll(fx.ctx))
	_, err = Run(fx.ctx, m, RunOptions{})
	require.NoError(t, err)

	assert.True(t, fx.world.Exists("tokens/hero.webp"))
	assert.False(t, fx.world.Exists("tokens/hero.png"), "without trash the duplicate is deleted")
	assert.True(t, fx.world.Exists("tokens/villain.png"))
}

func TestSetDetectMethod(t *testing.T) {
	fx := newFixture(t)
	_, err := NewSetManager(fx.ctx, fx.resolve(t, fx.world.Dir), DetectMethod("bysize"))
	assert.ErrorIs(t, err, ErrDetectMethod)
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	a := write("a", "abcd")
	b := write("b", "abcd")
	c := write("c", "abce")
	d := write("d", "abcde")

	same, err := sameContent(a, b)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = sameContent(a, c)
	require.NoError(t, err)
	assert.False(t, same)

	same, err = sameContent(a, d)
	require.NoError(t, err)
	assert.False(t, same)

	_, ok, err := fingerprint(write("empty", ""))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRenameProject(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteFile("tokens/a.png", "a")
	fx.world.WriteDB("actors.db", `{"img":"worlds/foo/tokens/a.png","name":"foo"}`)

	m, err := New(fx.ctx, fx.resolve(t, fx.world.Dir))
	require.NoError(t, err)

	dst := fx.resolve(t, filepath.Join(fx.f.Root, "worlds", "bar"), fpath.AllowMissing())
	next, err := m.RenameProject(fx.ctx, dst, false)
	require.NoError(t, err)
	assert.Equal(t, "worlds/bar", next.Project().TargetRelPath())

	_, err = os.Stat(fx.world.Dir)
	assert.True(t, os.IsNotExist(err), "project moved")

	bar := filepath.Join(fx.f.Root, "worlds", "bar")
	manifest, err := os.ReadFile(filepath.Join(bar, "world.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"bar","title":"FOO"}`, string(manifest))

	db, err := os.ReadFile(filepath.Join(bar, "data", "actors.db"))
	require.NoError(t, err)
	assert.Equal(t, `{"img":"worlds/bar/tokens/a.png","name":"foo"}`+"\n", string(db),
		"databases only get the directory rewrite")
}

func TestRenameProjectKeepOriginal(t *testing.T) {
	fx := newFixture(t)
	fx.world.WriteDB("actors.db", `{"img":"worlds/foo/a.png"}`)

	m, err := New(fx.ctx, fx.resolve(t, fx.world.Dir))
	require.NoError(t, err)

	existing := fx.f.Project("world", "taken", 11)
	_, err = m.RenameProject(fx.ctx, fx.resolve(t, existing.Dir), true)
	assert.ErrorIs(t, err, fpath.ErrPath)

	dst := fx.resolve(t, filepath.Join(fx.f.Root, "worlds", "copy"), fpath.AllowMissing())
	_, err = m.RenameProject(fx.ctx, dst, true)
	require.NoError(t, err)

	assert.Equal(t, `{"img":"worlds/foo/a.png"}`+"\n", fx.world.ReadFile("data/actors.db"), "source untouched")
	db, err := os.ReadFile(filepath.Join(fx.f.Root, "worlds", "copy", "data", "actors.db"))
	require.NoError(t, err)
	assert.Equal(t, `{"img":"worlds/copy/a.png"}`+"\n", string(db))
}

func TestFindRemoteAssets(t *testing.T) {
	fx := newFixture(t)
	lib := fx.f.Project("module", "lib", 11)
	lib.WriteFile("art/x.png", "x")
	fx.world.WriteDB("actors.db",
		`{"img":"modules/lib/art/x.png"}`,
		`{"img":"modules/lib/art/missing.png"}`,
		`{"img":"modules/library/art/x.png"}`,
	)

	m, err := New(fx.ctx, fx.resolve(t, fx.world.Dir))
	require.NoError(t, err)
	require.NoError(t, m.FindRemoteAssets(fx.ctx, fx.resolve(t, lib.Dir)))
	require.Len(t, m.Files(), 1, "missing assets are skipped")

	_, err = Run(fx.ctx, m, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "x", fx.world.ReadFile("art/x.png"))
	assert.True(t, lib.Exists("art/x.png"), "pull copies")
	assert.Equal(t,
		`{"img":"worlds/foo/art/x.png"}`+"\n"+
			`{"img":"modules/lib/art/missing.png"}`+"\n"+
			`{"img":"modules/library/art/x.png"}`+"\n",
		fx.world.ReadFile("data/actors.db"))
}
