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

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/nedb"
	"github.com/walteh/fwt/pkg/testutils"
)

type assetServer struct {
	*httptest.Server
	mu     sync.Mutex
	flaky  int
	agents []string
}

func newAssetServer(t *testing.T) *assetServer {
	t.Helper()
	s := &assetServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.agents = append(s.agents, r.UserAgent())
		s.mu.Unlock()

		switch r.URL.Path {
		case "/img/hero.png":
			w.Write([]byte("hero"))
		case "/img/token.webp":
			w.Write([]byte("token"))
		case "/img/my file.png":
			w.Write([]byte("spaced"))
		case "/flaky.png":
			s.mu.Lock()
			s.flaky++
			n := s.flaky
			s.mu.Unlock()
			if n == 1 {
				http.Error(w, "try again", http.StatusBadGateway)
				return
			}
			w.Write([]byte("flaky"))
		case "/r20/images/123/abc/med.png":
			w.Write([]byte("med"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *assetServer) host() string {
	return strings.TrimPrefix(s.URL, "http://")
}

type fixture struct {
	ctx   context.Context
	world *testutils.Project
	d     *Downloader
	srv   *assetServer
}

func newFixture(t *testing.T, version int, opts ...Option) *fixture {
	t.Helper()
	ctx := testutils.Context(t)
	f := testutils.NewFoundry(t)
	w := f.Project("world", "foo", version)
	p, err := fpath.NewResolver(f.Root, fpath.WithVersion(version)).Resolve(ctx, w.Dir)
	require.NoError(t, err)

	srv := newAssetServer(t)
	opts = append([]Option{
		WithHTTPClient(srv.Client()),
		WithRetryInterval(time.Millisecond),
		WithRoll20Host(srv.host() + "/r20/images"),
	}, opts...)
	d, err := New(p, opts...)
	require.NoError(t, err)
	return &fixture{ctx: ctx, world: w, d: d, srv: srv}
}

func TestFormatFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Sir Bob", want: "sir-bob"},
		{in: ".hidden File!.PNG", want: "hidden-file.png"},
		{in: "Magic Sword (+1)", want: "magic-sword-1"},
		{in: "token.webp", want: "token.webp"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFilename(tt.in))
		})
	}
}

func TestDownloadActorImages(t *testing.T) {
	fx := newFixture(t, 11)
	u := fx.srv.URL
	doc := `{"_id":"a1","name":"Sir Bob","img":"` + u + `/img/hero.png",` +
		`"prototypeToken":{"texture":{"src":"` + u + `/img/token.webp"}},` +
		`"system":{"details":{"biography":{"value":"<img src=\"` + u + `/r20/images/123/abc/thumb.png?1234\">"}}}}`

	out, err := fx.d.DownloadActorImages(fx.ctx, doc, "")
	require.NoError(t, err)

	assert.Equal(t, "worlds/foo/characters/sir-bob/avatar.png", gjson.Get(out, "img").String())
	assert.Equal(t, "worlds/foo/characters/sir-bob/token.webp", gjson.Get(out, "prototypeToken.texture.src").String())
	assert.Equal(t, `<img src="worlds/foo/characters/sir-bob/sir-bob-bio-1.png">`,
		gjson.Get(out, "system.details.biography.value").String())

	assert.Equal(t, "hero", fx.world.ReadFile("characters/sir-bob/avatar.png"))
	assert.Equal(t, "token", fx.world.ReadFile("characters/sir-bob/token.webp"))
	assert.Equal(t, "med", fx.world.ReadFile("characters/sir-bob/sir-bob-bio-1.png"), "largest available roll20 size")

	for _, agent := range fx.srv.agents {
		assert.Equal(t, UserAgent, agent)
	}
}

func TestDownloadActorImagesLocalDir(t *testing.T) {
	fx := newFixture(t, 11)
	doc := `{"name":"Npc","img":"worlds/foo/art/npc/npc.png","prototypeToken":{"texture":{"src":"` + fx.srv.URL + `/img/my%20file.png"}}}`

	out, err := fx.d.DownloadActorImages(fx.ctx, doc, "characters")
	require.NoError(t, err)
	assert.Equal(t, "worlds/foo/art/npc/npc.png", gjson.Get(out, "img").String())
	assert.Equal(t, "worlds/foo/art/npc/token.png", gjson.Get(out, "prototypeToken.texture.src").String())
	assert.Equal(t, "spaced", fx.world.ReadFile("art/npc/token.png"))
}

func TestDownloadActorImagesSkips(t *testing.T) {
	fx := newFixture(t, 11)

	noToken := `{"name":"Ghost","img":"` + fx.srv.URL + `/img/hero.png"}`
	out, err := fx.d.DownloadActorImages(fx.ctx, noToken, "")
	require.NoError(t, err)
	assert.Equal(t, noToken, out)
	assert.False(t, fx.world.Exists("characters/ghost"))

	missing := `{"name":"Lost","img":"` + fx.srv.URL + `/gone.png","prototypeToken":{"texture":{"src":"icons/svg/mystery-man.svg"}}}`
	out, err = fx.d.DownloadActorImages(fx.ctx, missing, "")
	require.NoError(t, err)
	assert.Equal(t, missing, out, "failed downloads leave the document alone")
	assert.False(t, fx.world.Exists("characters/lost/avatar.png"))
}

func TestDownloadItemImagesLegacy(t *testing.T) {
	fx := newFixture(t, 9, WithAttempts(3))
	u := fx.srv.URL
	doc := `{"name":"Magic Sword!","img":"` + u + `/flaky.png","data":{"description":{"value":` +
		`"<img src=\"` + u + `/img/hero.png\"><img src=\"` + u + `/missing.png\"><img src=\"` + u + `/img/hero.png\">"}}}`

	out, err := fx.d.DownloadItemImages(fx.ctx, doc, "")
	require.NoError(t, err)

	assert.Equal(t, "worlds/foo/items/magic-sword/image.png", gjson.Get(out, "img").String())
	assert.Equal(t, "flaky", fx.world.ReadFile("items/magic-sword/image.png"), "server errors are retried")
	assert.Equal(t,
		`<img src="worlds/foo/items/magic-sword/magic-sword-desc-1.png">`+
			`<img src="`+u+`/missing.png">`+
			`<img src="worlds/foo/items/magic-sword/magic-sword-desc-1.png">`,
		gjson.Get(out, "data.description.value").String())
	assert.False(t, fx.world.Exists("items/magic-sword/magic-sword-desc-2.png"))
	assert.False(t, fx.world.Exists("items/magic-sword/magic-sword-desc-2.png"+".part"), "no partial file left")
}

func TestDownloadNoRetry(t *testing.T) {
	fx := newFixture(t, 11, WithAttempts(1))
	doc := `{"name":"Once","img":"` + fx.srv.URL + `/flaky.png"}`

	out, err := fx.d.DownloadItemImages(fx.ctx, doc, "loot")
	require.NoError(t, err)
	assert.Equal(t, doc, out)
	assert.False(t, fx.world.Exists("loot/once/image.png"))
}

func TestDatabase(t *testing.T) {
	fx := newFixture(t, 11)
	path := fx.world.WriteDB("actors.db",
		`{"_id":"a","name":"Hero","img":"`+fx.srv.URL+`/img/hero.png","prototypeToken":{"texture":{"src":"worlds/foo/t.png"}}}`,
		`{"_id":"b","name":"Plain","img":"worlds/foo/p.png","prototypeToken":{"texture":{"src":"worlds/foo/p.png"}}}`,
	)
	db, err := nedb.Load(path)
	require.NoError(t, err)

	n, err := fx.d.Database(fx.ctx, db, Actors, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, db.Save(fx.ctx))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"img":"worlds/foo/avatar.png"`, "kept next to the existing token image")
	assert.FileExists(t, filepath.Join(fx.world.Dir, "avatar.png"))

	_, err = fx.d.Database(fx.ctx, db, Kind("scenes"), "")
	assert.ErrorIs(t, err, ErrKind)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("items")
	require.NoError(t, err)
	assert.Equal(t, Items, k)

	_, err = ParseKind("journal")
	assert.ErrorIs(t, err, ErrKind)
}
