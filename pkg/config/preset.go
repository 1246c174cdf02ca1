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
	"slices"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🎛️ Preset is a named bundle of command options
type Preset struct {
	Command     Commands `json:"command" yaml:"command"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Ext         []string `json:"ext,omitempty" yaml:"ext,omitempty"`
	Preferred   []string `json:"preferred,omitempty" yaml:"preferred,omitempty"`
	ByName      *bool    `json:"byname,omitempty" yaml:"byname,omitempty"`
	ByContent   *bool    `json:"bycontent,omitempty" yaml:"bycontent,omitempty"`
	ExcludeDir  []string `json:"exclude-dir,omitempty" yaml:"exclude-dir,omitempty"`
	Remove      []string `json:"remove,omitempty" yaml:"remove,omitempty"`
	Replace     []string `json:"replace,omitempty" yaml:"replace,omitempty"`
	Lower       bool     `json:"lower,omitempty" yaml:"lower,omitempty"`
}

// Allows reports whether the preset applies to command.
func (p Preset) Allows(command string) bool {
	return slices.Contains(p.Command, command)
}

// Commands lists the subcommands a preset applies to. A single string is
// accepted in place of a list.
type Commands []string

func (c *Commands) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*c = Commands{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Errorf("command must be a string or a list of strings: %w", err)
	}
	*c = many
	return nil
}

func (c Commands) MarshalJSON() ([]byte, error) {
	if len(c) == 1 {
		return json.Marshal(c[0])
	}
	return json.Marshal([]string(c))
}

func (c *Commands) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*c = Commands{node.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return errors.Errorf("decoding command list: %w", err)
		}
		*c = many
		return nil
	}
	return errors.Errorf("line %d: command must be a string or a list of strings", node.Line)
}

func (c Commands) MarshalYAML() (any, error) {
	if len(c) == 1 {
		return c[0], nil
	}
	return []string(c), nil
}
