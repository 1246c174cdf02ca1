package files

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fwt/pkg/fpath"
	"gitlab.com/tozd/go/errors"
)

func TestSet(t *testing.T) {
	fx := newFixture(t)
	for _, f := range []string{"a/x.png", "b/x.png", "c/x.png", "other.png"} {
		fx.world.WriteFile(f, "x")
	}

	s := NewSet("k", "trash/session.0")
	a := s.Add(fx.resolve("a/x.png"))
	b := s.Add(fx.resolve("b/x.png"))
	s.Add(fx.resolve("c/x.png"))
	assert.False(t, s.AddEntry(NewEntry(fx.resolve("a/x.png"), "")), "duplicate path")
	assert.Equal(t, 3, s.Len())

	assert.True(t, s.ChoosePreferredMatch(regexp.MustCompile(`/b/`)))
	assert.Same(t, b, s.Preferred())
	assert.Len(t, s.Members(), 2)
	assert.Equal(t, 3, s.Len(), "preferred still counts")

	require.NoError(t, s.SetPreferred(a))
	assert.Same(t, a, s.Preferred())
	assert.Contains(t, s.Members(), b, "previous preferred returns to members")

	err := s.SetPreferred(NewEntry(fx.resolve("other.png"), ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInSet))
	assert.Contains(t, err.Error(), "b/x.png", "message lists the set contents")

	require.NoError(t, s.SetPreferred(nil))
	assert.Nil(t, s.Preferred())
	assert.Equal(t, 3, s.Len())

	assert.False(t, s.ChoosePreferredIndex(7))
	assert.True(t, s.ChoosePreferredIndex(0))
	assert.NotNil(t, s.Preferred())
}

func TestSetRewriteData(t *testing.T) {
	fx := newFixture(t)
	for _, f := range []string{"a/x.png", "b/x.png"} {
		fx.world.WriteFile(f, "x")
	}

	s := NewSet("k", "")
	assert.Zero(t, s.RewriteData().Len(), "no preferred, no data")

	a := s.Add(fx.resolve("a/x.png"))
	s.Add(fx.resolve("b/x.png"))
	require.NoError(t, s.SetPreferred(a))

	data := s.RewriteData()
	got, ok := data.Lookup("worlds/foo/b/x.png")
	require.True(t, ok)
	assert.Equal(t, "worlds/foo/a/x.png", got)
	got, ok = data.Lookup("worlds/foo/a/x.png")
	require.True(t, ok, "preferred maps to itself")
	assert.Equal(t, "worlds/foo/a/x.png", got)

	require.NoError(t, a.SetPlanned(fx.ctx, fx.resolve("x.png", fpath.AllowMissing())))
	data = s.RewriteData()
	got, _ = data.Lookup("worlds/foo/b/x.png")
	assert.Equal(t, "worlds/foo/x.png", got)
	got, _ = data.Lookup("worlds/foo/a/x.png")
	assert.Equal(t, "worlds/foo/x.png", got)
}
