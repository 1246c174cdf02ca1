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

// Package foundry holds the version-dependent facts about Foundry VTT data:
// which manifest field carries a project id and where documents keep their
// image and text fields.
package foundry

import (
	"path/filepath"
	"strings"
)

// LatestVersion is the Foundry generation assumed when none is configured.
const LatestVersion = 11

// 📄 ManifestNames are the manifest files that mark a project directory
var ManifestNames = []string{"world.json", "module.json"}

// 🔑 IDField returns the manifest field holding the project id
func IDField(version int) string {
	if version <= 9 {
		return "name"
	}
	return "id"
}

// KindFromManifest returns the project kind ("world", "module") named by a
// manifest file, or "" when the file is not a manifest.
func KindFromManifest(path string) string {
	base := filepath.Base(path)
	for _, name := range ManifestNames {
		if base == name {
			return strings.TrimSuffix(name, filepath.Ext(name))
		}
	}
	return ""
}

// 🗺️ Schema lists the gjson paths of the document fields the tool touches
type Schema struct {
	ActorImage     string
	TokenImage     string
	ActorBiography string
	ItemImage      string
	ItemDesc       string
}

// Schemas maps the first version a layout applies to onto that layout.
// Callers may add entries for newer generations.
var Schemas = map[int]Schema{
	0: {
		ActorImage:     "img",
		TokenImage:     "token.img",
		ActorBiography: "data.details.biography.value",
		ItemImage:      "img",
		ItemDesc:       "data.description.value",
	},
	10: {
		ActorImage:     "img",
		TokenImage:     "prototypeToken.texture.src",
		ActorBiography: "system.details.biography.value",
		ItemImage:      "img",
		ItemDesc:       "system.description.value",
	},
}

// 🔍 SchemaFor returns the layout with the highest starting version not above version
func SchemaFor(version int) Schema {
	best := -1
	for since := range Schemas {
		if since <= version && since > best {
			best = since
		}
	}
	if best < 0 {
		return Schemas[0]
	}
	return Schemas[best]
}
