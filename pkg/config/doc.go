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

/*
Package config loads the fwt tool configuration: the Foundry data directory
and named presets bundling command options.

🎯 Purpose:
  - Finds and parses the config file in JSON, YAML or HCL
  - Creates a default config with bundled presets on request
  - Works out the Foundry data root for path resolution

🔄 Flow:
 1. Load picks a parser by file extension
 2. Malformed content yields a Config with Error set, not a failure
 3. The data root comes from the caller, the file, or a search upward from
    the working directory

🔍 Example:

	cfg, err := config.Load(ctx, config.DefaultPath(), config.LoadOptions{})
	if err != nil {
		return err
	}
	if cfg.Error != "" {
		return errors.Errorf("bad config: %s", cfg.Error)
	}
	preset, err := cfg.Preset("imgdedup", "dedup")
*/
package config
