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

// Package nedb rewrites Foundry databases and the files that reference
// project assets. Databases are newline-delimited JSON: one document per
// line, edited as text so unrelated bytes survive untouched.
package nedb

import (
	"regexp"
	"strings"
)

// 🔁 Rule is one substitution: a literal find string or a regular expression
type Rule struct {
	Find    string
	Pattern *regexp.Regexp
	Replace string
}

func (r Rule) key() string {
	if r.Pattern != nil {
		return "re:" + r.Pattern.String()
	}
	return "lit:" + r.Find
}

// apply returns line with the rule applied. Quote wrapping only affects
// literal rules.
func (r Rule) apply(line string, quote bool) string {
	if r.Pattern != nil {
		return r.Pattern.ReplaceAllString(line, r.Replace)
	}
	find, repl := r.Find, r.Replace
	if quote {
		find = `"` + find + `"`
		repl = `"` + repl + `"`
	}
	return strings.ReplaceAll(line, find, repl)
}

// 📦 Batch is an ordered set of rules. Adding a rule with the same find
// string or pattern replaces the earlier one in place.
type Batch struct {
	rules []Rule
	index map[string]int
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{index: map[string]int{}}
}

// Literal maps find to replace.
func (b *Batch) Literal(find, replace string) *Batch {
	b.add(Rule{Find: find, Replace: replace})
	return b
}

// Pattern maps matches of re to replace, which may use $1 style groups.
func (b *Batch) Pattern(re *regexp.Regexp, replace string) *Batch {
	b.add(Rule{Pattern: re, Replace: replace})
	return b
}

func (b *Batch) add(r Rule) {
	if b.index == nil {
		b.index = map[string]int{}
	}
	k := r.key()
	if i, ok := b.index[k]; ok {
		b.rules[i] = r
		return
	}
	b.index[k] = len(b.rules)
	b.rules = append(b.rules, r)
}

// Merge appends every rule of o.
func (b *Batch) Merge(o *Batch) *Batch {
	if o == nil {
		return b
	}
	for _, r := range o.rules {
		b.add(r)
	}
	return b
}

// Len returns the number of rules.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.rules)
}

// Rules returns the rules in application order.
func (b *Batch) Rules() []Rule {
	if b == nil {
		return nil
	}
	out := make([]Rule, len(b.rules))
	copy(out, b.rules)
	return out
}

// Lookup returns the replacement for a literal find string.
func (b *Batch) Lookup(find string) (string, bool) {
	if b == nil {
		return "", false
	}
	i, ok := b.index["lit:"+find]
	if !ok {
		return "", false
	}
	return b.rules[i].Replace, true
}

// Without returns a copy lacking the literal rules for finds.
func (b *Batch) Without(finds ...string) *Batch {
	drop := make(map[string]struct{}, len(finds))
	for _, f := range finds {
		drop["lit:"+f] = struct{}{}
	}
	out := NewBatch()
	for _, r := range b.Rules() {
		if _, ok := drop[r.key()]; ok {
			continue
		}
		out.add(r)
	}
	return out
}

// ApplyLine runs every rule over line in order.
func (b *Batch) ApplyLine(line string, quote bool) string {
	if b == nil {
		return line
	}
	for _, r := range b.rules {
		line = r.apply(line, quote)
	}
	return line
}
