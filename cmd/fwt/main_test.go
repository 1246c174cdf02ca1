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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fwt/cmd/fwt/opts"
	"github.com/walteh/fwt/pkg/testutils"
)

type cli struct {
	t      *testing.T
	f      *testutils.Foundry
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	return &cli{
		t:      t,
		f:      testutils.NewFoundry(t),
		config: filepath.Join(t.TempDir(), "fwt", "config.json"),
	}
}

// execute runs the command line with a fresh config and the fixture data root.
func (c *cli) execute(args ...string) (*opts.RootOpts, string, error) {
	c.t.Helper()
	ro := &opts.RootOpts{}
	var out bytes.Buffer
	cmd := newRootCmd(ro, &out)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", c.config, "--mkconfig", "--dataDir", c.f.Root))
	err := cmd.ExecuteContext(testutils.Context(c.t))
	return ro, out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "reading %s", path)
	return string(data)
}

func TestRootLoadsConfig(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)

	ro, _, err := c.execute("info", world.Dir)
	require.NoError(t, err)
	require.NotNil(t, ro.Config)
	assert.Equal(t, c.config, ro.Config.Path())
	assert.Equal(t, c.f.Root, ro.Resolver.Root())
	assert.FileExists(t, c.config, "mkconfig writes the default config")
	assert.Nil(t, ro.Preset)
}

func TestValidation(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)
	other := c.f.Project("world", "bar", 11)
	world.WriteFile("a.png", "a")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "dedup_without_method", args: []string{"dedup", world.Dir}, want: "one of --bycontent or --byname"},
		{name: "dedup_with_both_methods", args: []string{"dedup", world.Dir, "--byname", "--bycontent"}, want: "one of --bycontent or --byname"},
		{name: "renameall_without_action", args: []string{"renameall", world.Dir}, want: "no action requested"},
		{name: "rename_across_projects", args: []string{"rename", filepath.Join(world.Dir, "a.png"), filepath.Join(other.Dir, "a.png")}, want: "only supported with --keep-src"},
		{name: "preset_for_other_command", args: []string{"renameall", world.Dir, "--preset", "imgdedup"}, want: "not a valid preset for the renameall command"},
		{name: "unknown_preset", args: []string{"dedup", world.Dir, "--preset", "nope"}, want: "presets available are"},
		{name: "download_unknown_type", args: []string{"download", world.Dir, "--type", "scenes"}, want: "actors or items"},
		{name: "unknown_log_level", args: []string{"info", world.Dir, "--loglevel", "loud"}, want: "unknown log level"},
		{name: "not_a_project", args: []string{"renameall", c.f.Root, "--lower"}, want: "not inside a world or module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.execute(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.True(t, world.Exists("a.png"), "failed validation must not touch files")
}

func TestRenameAll(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)
	world.WriteFile("maps/Big Map.png", "map")
	world.WriteDB("scenes.db", `{"_id":"s1","img":"worlds/foo/maps/Big Map.png"}`)

	t.Run("dry_run", func(t *testing.T) {
		_, _, err := c.execute("renameall", world.Dir, "--replace", "/ /_/", "--lower", "--dry-run")
		require.NoError(t, err)
		assert.True(t, world.Exists("maps/Big Map.png"))
		assert.Contains(t, world.ReadFile("data/scenes.db"), "Big Map.png")
	})

	t.Run("run", func(t *testing.T) {
		_, _, err := c.execute("renameall", world.Dir, "--replace", "/ /_/", "--lower")
		require.NoError(t, err)
		assert.False(t, world.Exists("maps/Big Map.png"))
		assert.True(t, world.Exists("maps/big_map.png"))
		assert.Contains(t, world.ReadFile("data/scenes.db"), `"worlds/foo/maps/big_map.png"`)
	})
}

func TestRenameAllPreset(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)
	world.WriteFile("Goblin (Boss).png", "g")
	world.WriteDB("actors.db", `{"_id":"a1","img":"worlds/foo/Goblin (Boss).png"}`)

	ro, _, err := c.execute("renameall", world.Dir, "--preset", "webnames")
	require.NoError(t, err)
	require.NotNil(t, ro.Preset)
	assert.True(t, ro.Preset.Lower)

	assert.True(t, world.Exists("goblin_boss.png"))
	assert.Contains(t, world.ReadFile("data/actors.db"), `"worlds/foo/goblin_boss.png"`)
}

func TestDedup(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)
	world.WriteFile("tokens/orc.png", "orc")
	world.WriteFile("characters/orc.png", "orc")
	world.WriteDB("actors.db",
		`{"_id":"a1","img":"worlds/foo/tokens/orc.png"}`,
		`{"_id":"a2","img":"worlds/foo/characters/orc.png"}`,
	)

	_, _, err := c.execute("dedup", world.Dir, "--bycontent", "--preferred", "<project_dir>/characters/")
	require.NoError(t, err)

	assert.True(t, world.Exists("characters/orc.png"))
	assert.False(t, world.Exists("tokens/orc.png"))
	db := world.ReadFile("data/actors.db")
	assert.NotContains(t, db, "tokens/orc.png")
	assert.Contains(t, db, `{"_id":"a1","img":"worlds/foo/characters/orc.png"}`)
}

func TestRename(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)
	world.WriteFile("a.png", "a")
	world.WriteDB("scenes.db", `{"_id":"s1","img":"worlds/foo/a.png"}`)

	_, _, err := c.execute("rename", filepath.Join(world.Dir, "a.png"), filepath.Join(world.Dir, "img", "b.png"))
	require.NoError(t, err)

	assert.False(t, world.Exists("a.png"))
	assert.True(t, world.Exists("img/b.png"))
	assert.Contains(t, world.ReadFile("data/scenes.db"), `"worlds/foo/img/b.png"`)
}

func TestRenameProject(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)
	world.WriteFile("a.png", "a")
	world.WriteDB("scenes.db", `{"_id":"s1","img":"worlds/foo/a.png"}`)

	dst := filepath.Join(c.f.Root, "worlds", "bar")
	_, _, err := c.execute("rename", world.Dir, dst)
	require.NoError(t, err)

	assert.NoDirExists(t, world.Dir)
	assert.FileExists(t, filepath.Join(dst, "a.png"))
	assert.Contains(t, readFile(t, filepath.Join(dst, "world.json")), `"bar"`)
	assert.Contains(t, readFile(t, filepath.Join(dst, "data", "scenes.db")), `"worlds/bar/a.png"`)
}

func TestPull(t *testing.T) {
	c := newCLI(t)
	src := c.f.Project("world", "src", 11)
	dst := c.f.Project("world", "dst", 11)
	src.WriteFile("maps/cave.jpg", "cave")
	dst.WriteDB("scenes.db", `{"_id":"s1","img":"worlds/src/maps/cave.jpg"}`)

	_, _, err := c.execute("pull", "--from", src.Dir, "--to", dst.Dir)
	require.NoError(t, err)

	assert.True(t, src.Exists("maps/cave.jpg"), "pull copies")
	assert.Equal(t, "cave", dst.ReadFile("maps/cave.jpg"))
	assert.Contains(t, dst.ReadFile("data/scenes.db"), `"worlds/dst/maps/cave.jpg"`)
}

func TestNedbYAMLRoundTrip(t *testing.T) {
	c := newCLI(t)
	world := c.f.Project("world", "foo", 11)
	db := world.WriteDB("items.db", `{"_id":"i1","name":"Sword"}`)

	_, out, err := c.execute("nedb2yaml", db)
	require.NoError(t, err)
	assert.Contains(t, out, "name: Sword")

	yml := filepath.Join(t.TempDir(), "items.yaml")
	testutils.WriteFile(t, yml, out)
	_, out, err = c.execute("yaml2nedb", yml)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"i1","name":"Sword"}`, out)
}
