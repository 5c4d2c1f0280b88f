// Copyright (c) 2026 John Earle
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

// Package extract evaluates ordered fallback pattern tables against receipt
// markup. Vendors describe each field as a list of matchers, most specific
// first; one driver runs every table.
package extract

import (
	"regexp"
	"strings"
)

// Field names a value a vendor table can extract.
type Field string

// Fields holds the values found by Table.Extract. Absent fields have no key.
type Fields map[Field]string

// Cleaner normalises a captured value before it is returned.
type Cleaner func(string) string

var whitespaceRun = regexp.MustCompile(`\s+`)

// Trim strips surrounding whitespace and newlines.
func Trim(s string) string { return strings.TrimSpace(s) }

// Collapse turns every whitespace run into one space and trims the result.
func Collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// Matcher is one entry in a field's fallback list. Pick selects the value
// from the submatches; nil means capture group 1.
type Matcher struct {
	Pattern *regexp.Regexp
	Pick    func(m []string) string
}

// Rule compiles expr into a matcher that returns capture group 1.
func Rule(expr string) Matcher {
	return Matcher{Pattern: regexp.MustCompile(expr)}
}

// RuleWith compiles expr into a matcher with a custom picker.
func RuleWith(expr string, pick func(m []string) string) Matcher {
	return Matcher{Pattern: regexp.MustCompile(expr), Pick: pick}
}

func (m Matcher) pick(sub []string) string {
	if m.Pick != nil {
		return m.Pick(sub)
	}
	if len(sub) > 1 {
		return sub[1]
	}
	return ""
}

// Rules is an ordered fallback list.
type Rules []Matcher

// First returns the first non-empty value, trying each matcher's leftmost
// match in order.
func (r Rules) First(text string, clean Cleaner) (string, bool) {
	if clean == nil {
		clean = Trim
	}
	for _, m := range r {
		sub := m.Pattern.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		if v := clean(m.pick(sub)); v != "" {
			return v, true
		}
	}
	return "", false
}

// All returns every non-empty value of every matcher: matcher order first,
// then document order.
func (r Rules) All(text string, clean Cleaner) []string {
	if clean == nil {
		clean = Trim
	}
	var out []string
	for _, m := range r {
		for _, sub := range m.Pattern.FindAllStringSubmatch(text, -1) {
			if v := clean(m.pick(sub)); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// Table maps fields to their fallback lists. Tables are built once at
// package init and only read afterwards.
type Table struct {
	Clean  Cleaner
	Fields map[Field]Rules
}

// Get runs the fallback list for one field.
func (t Table) Get(text string, f Field) (string, bool) {
	return t.Fields[f].First(text, t.Clean)
}

// All collects every candidate for one field.
func (t Table) All(text string, f Field) []string {
	return t.Fields[f].All(text, t.Clean)
}

// Extract runs the listed fields, or every field when none are listed.
func (t Table) Extract(text string, fields ...Field) Fields {
	if len(fields) == 0 {
		for f := range t.Fields {
			fields = append(fields, f)
		}
	}
	out := make(Fields, len(fields))
	for _, f := range fields {
		if v, ok := t.Get(text, f); ok {
			out[f] = v
		}
	}
	return out
}

// FirstDistinct returns the first candidate that differs from exclude.
func FirstDistinct(candidates []string, exclude string) (string, bool) {
	for _, c := range candidates {
		if c != exclude {
			return c, true
		}
	}
	return "", false
}
