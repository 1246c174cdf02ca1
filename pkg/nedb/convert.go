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

package nedb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 📜 ToYAML converts NeDB lines into one YAML document per record
func ToYAML(r io.Reader) ([]string, error) {
	var out []string
	n := 0
	err := eachLine(bufio.NewReader(r), func(line string) error {
		n++
		if strings.TrimSpace(line) == "" {
			return nil
		}
		var doc any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return errors.Errorf("line %d: %w", n, err)
		}

		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Errorf("line %d: encoding YAML: %w", n, err)
		}
		if err := enc.Close(); err != nil {
			return errors.Errorf("line %d: encoding YAML: %w", n, err)
		}
		out = append(out, buf.String())
		return nil
	}, func() error { return nil })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteYAML writes ToYAML output joined by document separators.
func WriteYAML(r io.Reader, w io.Writer) error {
	docs, err := ToYAML(r)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, strings.Join(docs, "---\n"))
	return err
}

// 📥 FromYAML converts a multi-document YAML stream into NeDB lines
func FromYAML(r io.Reader, w io.Writer) error {
	dec := yaml.NewDecoder(r)
	for i := 1; ; i++ {
		var doc any
		err := dec.Decode(&doc)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Errorf("document %d: %w", i, err)
		}
		if doc == nil {
			continue
		}
		line, err := json.Marshal(doc)
		if err != nil {
			return errors.Errorf("document %d: encoding JSON: %w", i, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return errors.Errorf("writing document %d: %w", i, err)
		}
	}
}
