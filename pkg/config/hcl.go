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
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

type hclPreset struct {
	Name        string         `hcl:"name,label"`
	Command     hcl.Expression `hcl:"command"`
	Description string         `hcl:"description,optional"`
	Ext         []string       `hcl:"ext,optional"`
	Preferred   []string       `hcl:"preferred,optional"`
	ByName      *bool          `hcl:"byname,optional"`
	ByContent   *bool          `hcl:"bycontent,optional"`
	ExcludeDir  []string       `hcl:"exclude_dir,optional"`
	Remove      []string       `hcl:"remove,optional"`
	Replace     []string       `hcl:"replace,optional"`
	Lower       bool           `hcl:"lower,optional"`
}

type hclConfig struct {
	DataDir string      `hcl:"data_dir,optional"`
	Presets []hclPreset `hcl:"preset,block"`
}

// 📝 Parse parses the config from HCL. Expressions may use the "home"
// variable and the "env" map.
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := evalContext()

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{DataDir: hclCfg.DataDir}
	for _, hp := range hclCfg.Presets {
		if cfg.Presets == nil {
			cfg.Presets = map[string]Preset{}
		}
		if _, dup := cfg.Presets[hp.Name]; dup {
			return nil, errors.Errorf("decoding HCL: preset %q defined twice", hp.Name)
		}
		cmds, err := decodeCommands(hp.Command, evalCtx)
		if err != nil {
			return nil, errors.Errorf("preset %q: %w", hp.Name, err)
		}
		cfg.Presets[hp.Name] = Preset{
			Command:     cmds,
			Description: hp.Description,
			Ext:         hp.Ext,
			Preferred:   hp.Preferred,
			ByName:      hp.ByName,
			ByContent:   hp.ByContent,
			ExcludeDir:  hp.ExcludeDir,
			Remove:      hp.Remove,
			Replace:     hp.Replace,
			Lower:       hp.Lower,
		}
	}
	return cfg, nil
}

func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(env) > 0 {
		envVal = cty.MapVal(env)
	}

	home, _ := os.UserHomeDir()
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"home": cty.StringVal(home),
			"env":  envVal,
		},
	}
}

// decodeCommands accepts a string or a list of strings.
func decodeCommands(expr hcl.Expression, evalCtx *hcl.EvalContext) (Commands, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, errors.Errorf("evaluating command: %s", diags.Error())
	}
	if val.IsNull() {
		return nil, errors.Errorf("command must not be null")
	}
	if val.Type() == cty.String {
		return Commands{val.AsString()}, nil
	}

	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, errors.Errorf("command must be a string or a list of strings: %w", err)
	}
	var out []string
	if err := gocty.FromCtyValue(list, &out); err != nil {
		return nil, errors.Errorf("decoding command list: %w", err)
	}
	return out, nil
}
