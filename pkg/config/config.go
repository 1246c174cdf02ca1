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
	"context"
	_ "embed"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/fwt/pkg/fpath"
	"github.com/walteh/fwt/pkg/writer"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrConfigNotFound = errors.Base("config file not found")
	ErrNoDataDir      = errors.Base("unable to determine the Foundry data directory")
	ErrNoPreset       = errors.Base("preset not found")
)

//go:embed presets.json
var defaultPresets []byte

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

// Encoder is implemented by parsers whose format can also be written.
type Encoder interface {
	Encode(cfg *Config) ([]byte, error)
}

var parsers []Parser

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 Config is the tool configuration
type Config struct {
	DataDir string            `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`
	Presets map[string]Preset `json:"presets,omitempty" yaml:"presets,omitempty"`

	// Error holds the parse failure of a malformed config file.
	Error string `json:"-" yaml:"-"`

	path string
	root string
}

// LoadOptions tune Load.
type LoadOptions struct {
	// MkConfig creates a default config when the file is missing.
	MkConfig bool
	// DataDir overrides the data directory from the file.
	DataDir string
	// WorkDir is where the data root search starts, the working directory when empty.
	WorkDir string
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "fwt", "config.json")
}

// 🎯 Load reads the config at path. Content that cannot be parsed is
// reported through Config.Error instead of an error.
func Load(ctx context.Context, path string, opts LoadOptions) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	var cfg *Config
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 1:
		cfg, err = parseFile(ctx, path)
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("unable to parse config")
			return &Config{Error: err.Error(), path: path}, nil
		}
	case err == nil, errors.Is(err, fs.ErrNotExist) && opts.MkConfig:
		cfg, err = create(ctx, path)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
		return nil, errors.Errorf("%w: %s", ErrConfigNotFound, path)
	default:
		return nil, errors.Errorf("reading config file: %w", err)
	}

	if err := cfg.setup(opts); err != nil {
		return nil, err
	}
	logger.Debug().Str("root", cfg.root).Int("presets", len(cfg.Presets)).Msg("loaded configuration")
	return cfg, nil
}

// Empty returns a config without a file, for running without one.
func Empty(opts LoadOptions) (*Config, error) {
	cfg := &Config{}
	if err := cfg.setup(opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(ctx context.Context, path string) (*Config, error) {
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// create writes the default config to path.
func create(ctx context.Context, path string) (*Config, error) {
	zerolog.Ctx(ctx).Info().Str("path", path).Msg("creating default config")

	cfg, err := (&JSONParser{}).Parse(ctx, defaultPresets)
	if err != nil {
		return nil, errors.Errorf("parsing bundled presets: %w", err)
	}
	cfg.path = path
	if err := cfg.Save(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) setup(opts LoadOptions) error {
	root := opts.DataDir
	if root == "" {
		root = cfg.DataDir
	}
	if root == "" {
		start := opts.WorkDir
		if start == "" {
			start = os.Getenv("PWD")
		}
		if start == "" {
			wd, err := os.Getwd()
			if err != nil {
				return errors.Errorf("getting working directory: %w", err)
			}
			start = wd
		}
		found, err := fpath.FindRoot(start)
		if err != nil {
			return errors.Errorf("%w: %s", ErrNoDataDir, err.Error())
		}
		root = found
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.Errorf("resolving data dir %s: %w", root, err)
	}
	cfg.root = abs
	return nil
}

// Path returns the file the config was loaded from.
func (cfg *Config) Path() string { return cfg.path }

// Root returns the resolved Foundry data root.
func (cfg *Config) Root() string { return cfg.root }

// 💾 Save writes the config back to its file
func (cfg *Config) Save(ctx context.Context) error {
	if cfg.path == "" {
		return errors.Errorf("config has no file to save to")
	}
	p := GetParser(cfg.path)
	enc, ok := p.(Encoder)
	if !ok {
		return errors.Errorf("saving %s: format cannot be written", cfg.path)
	}
	data, err := enc.Encode(cfg)
	if err != nil {
		return errors.Errorf("encoding config: %w", err)
	}
	if err := writer.WriteFile(ctx, cfg.path, data); err != nil {
		return errors.Errorf("saving config: %w", err)
	}
	return nil
}

// 🔍 Validate checks every preset names at least one command
func (cfg *Config) Validate() error {
	for _, name := range cfg.PresetNames() {
		if len(cfg.Presets[name].Command) == 0 {
			return errors.Errorf("preset %q: command is required", name)
		}
	}
	return nil
}

// PresetNames returns the preset names in order.
func (cfg *Config) PresetNames() []string {
	names := make([]string, 0, len(cfg.Presets))
	for k := range cfg.Presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// 🎛️ Preset returns the named preset, checking it applies to command
func (cfg *Config) Preset(name, command string) (Preset, error) {
	if len(cfg.Presets) == 0 {
		return Preset{}, errors.Errorf("%w: there are no presets defined", ErrNoPreset)
	}
	p, ok := cfg.Presets[name]
	if !ok {
		return Preset{}, errors.Errorf("%w: presets available are: %s", ErrNoPreset, strings.Join(cfg.PresetNames(), ", "))
	}
	if !p.Allows(command) {
		return Preset{}, errors.Errorf("preset %s is not a valid preset for the %s command", name, command)
	}
	return p, nil
}
