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

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/fwt/pkg/testutils"
	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	t.Setenv("FWT_TEST_DATA", "/srv/foundry/Data")

	tests := []struct {
		name      string
		file      string
		content   string
		wantError string
		check     func(t *testing.T, cfg *Config)
	}{
		{
			name: "json",
			file: "config.json",
			content: `{
				"dataDir": "/srv/foundry/Data",
				"presets": {
					"imgs": {"command": "dedup", "bycontent": true, "ext": ["png"]},
					"names": {"command": ["renameall", "dedup"], "lower": true}
				}
			}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/srv/foundry/Data", cfg.DataDir)
				assert.Equal(t, []string{"imgs", "names"}, cfg.PresetNames())
				imgs := cfg.Presets["imgs"]
				assert.Equal(t, Commands{"dedup"}, imgs.Command)
				require.NotNil(t, imgs.ByContent)
				assert.True(t, *imgs.ByContent)
				assert.Nil(t, imgs.ByName)
				assert.True(t, cfg.Presets["names"].Allows("dedup"))
			},
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
presets:
  tidy:
    command: renameall
    remove: ["@"]
    replace: ["/ /_/"]
    exclude-dir: [trash*]
`,
			check: func(t *testing.T, cfg *Config) {
				tidy := cfg.Presets["tidy"]
				assert.Equal(t, Commands{"renameall"}, tidy.Command)
				assert.Equal(t, []string{"@"}, tidy.Remove)
				assert.Equal(t, []string{"/ /_/"}, tidy.Replace)
				assert.Equal(t, []string{"trash*"}, tidy.ExcludeDir)
			},
		},
		{
			name: "hcl",
			file: "config.hcl",
			content: `
data_dir = env["FWT_TEST_DATA"]

preset "imgs" {
  command     = ["dedup"]
  description = "images"
  ext         = ["png", "webp"]
  byname      = true
  exclude_dir = ["trash*"]
}

preset "tidy" {
  command = "renameall"
  lower   = true
}
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/srv/foundry/Data", cfg.DataDir)
				imgs := cfg.Presets["imgs"]
				assert.Equal(t, Commands{"dedup"}, imgs.Command)
				assert.Equal(t, "images", imgs.Description)
				require.NotNil(t, imgs.ByName)
				assert.True(t, *imgs.ByName)
				assert.Equal(t, []string{"trash*"}, imgs.ExcludeDir)
				assert.Equal(t, Commands{"renameall"}, cfg.Presets["tidy"].Command)
				assert.True(t, cfg.Presets["tidy"].Lower)
			},
		},
		{
			name:      "malformed_json",
			file:      "config.json",
			content:   `{"presets": `,
			wantError: "parsing JSON",
		},
		{
			name:      "unknown_field",
			file:      "config.json",
			content:   `{"dataDirectory": "/x"}`,
			wantError: "unknown field",
		},
		{
			name:      "preset_without_command",
			file:      "config.yaml",
			content:   "presets:\n  empty:\n    lower: true\n",
			wantError: "command is required",
		},
		{
			name:      "hcl_bad_command",
			file:      "config.hcl",
			content:   "preset \"x\" {\n  command = 3 == 3\n}\n",
			wantError: "string or a list of strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testutils.Context(t)
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			testutils.WriteFile(t, path, tt.content)

			cfg, err := Load(ctx, path, LoadOptions{DataDir: dir})
			require.NoError(t, err, "malformed content is reported on the config")
			if tt.wantError != "" {
				assert.Contains(t, cfg.Error, tt.wantError)
				return
			}
			assert.Empty(t, cfg.Error)
			assert.Equal(t, dir, cfg.Root(), "data dir option overrides the file")
			assert.Equal(t, path, cfg.Path())
			tt.check(t, cfg)
		})
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	ctx := testutils.Context(t)
	dir := t.TempDir()

	t.Run("missing_with_mkconfig", func(t *testing.T) {
		path := filepath.Join(dir, "new", "config.json")
		cfg, err := Load(ctx, path, LoadOptions{MkConfig: true, DataDir: dir})
		require.NoError(t, err)
		assert.Contains(t, cfg.Presets, "imgdedup")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var saved map[string]any
		require.NoError(t, json.Unmarshal(data, &saved))
		assert.Contains(t, saved, "presets")
	})

	t.Run("empty_file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		testutils.WriteFile(t, path, "\n")
		cfg, err := Load(ctx, path, LoadOptions{DataDir: dir})
		require.NoError(t, err)
		assert.Contains(t, cfg.Presets, "webnames")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(dir, "absent.json"), LoadOptions{DataDir: dir})
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})
}

func TestLoadFindsDataDir(t *testing.T) {
	ctx := testutils.Context(t)
	f := testutils.NewFoundry(t)
	w := f.Project("world", "foo", 11)
	path := filepath.Join(t.TempDir(), "config.json")
	testutils.WriteFile(t, path, `{"presets": {}}`)

	cfg, err := Load(ctx, path, LoadOptions{WorkDir: filepath.Join(f.Base, "Config")})
	require.NoError(t, err)
	assert.Equal(t, f.Root, cfg.Root())

	cfg, err = Load(ctx, path, LoadOptions{WorkDir: w.Dir})
	require.NoError(t, err)
	assert.Equal(t, f.Root, cfg.Root(), "found from inside a project")

	_, err = Load(ctx, path, LoadOptions{WorkDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoDataDir)
}

func TestPreset(t *testing.T) {
	cfg := &Config{Presets: map[string]Preset{
		"imgs": {Command: Commands{"dedup"}},
	}}

	p, err := cfg.Preset("imgs", "dedup")
	require.NoError(t, err)
	assert.True(t, p.Allows("dedup"))

	_, err = cfg.Preset("imgs", "renameall")
	assert.ErrorContains(t, err, "not a valid preset for the renameall command")

	_, err = cfg.Preset("other", "dedup")
	assert.ErrorIs(t, err, ErrNoPreset)
	assert.ErrorContains(t, err, "imgs")

	_, err = (&Config{}).Preset("imgs", "dedup")
	assert.ErrorIs(t, err, ErrNoPreset)
}

func TestCommandsEncoding(t *testing.T) {
	one, err := json.Marshal(Commands{"dedup"})
	require.NoError(t, err)
	assert.Equal(t, `"dedup"`, string(one))

	many, err := yaml.Marshal(Commands{"dedup", "renameall"})
	require.NoError(t, err)
	assert.Equal(t, "- dedup\n- renameall\n", string(many))

	var c Commands
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &c))
	assert.Error(t, yaml.Unmarshal([]byte("a: 1"), &c))
}

func TestSaveYAML(t *testing.T) {
	ctx := testutils.Context(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	testutils.WriteFile(t, path, "presets:\n  tidy:\n    command: renameall\n    lower: true\n")

	cfg, err := Load(ctx, path, LoadOptions{DataDir: dir})
	require.NoError(t, err)
	cfg.DataDir = "/data"
	require.NoError(t, cfg.Save(ctx))

	again, err := Load(ctx, path, LoadOptions{DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "/data", again.DataDir)
	assert.True(t, again.Presets["tidy"].Lower)

	hcl := &Config{path: filepath.Join(dir, "config.hcl")}
	assert.ErrorContains(t, hcl.Save(ctx), "cannot be written")
}
