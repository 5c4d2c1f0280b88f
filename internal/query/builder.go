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

// Package query builds Gmail search queries from vendor sender addresses and
// subject phrases.
package query

import (
	"fmt"
	"strings"
	"time"
)

// Operator joins the sender clause and the subject clause.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// ParseOperator accepts "and"/"or" in any case. Anything else is an error.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND":
		return And, nil
	case "OR":
		return Or, nil
	default:
		return "", fmt.Errorf("unknown query operator %q", s)
	}
}

// Builder holds the static search configuration for one vendor.
//
// Strict vendors combine the two clauses with AND (the sender must match
// AND the subject must match); permissive vendors use OR.
type Builder struct {
	Senders  []string
	Subjects []string
	Combine  Operator
}

// Build returns a query such as
//
//	(from:a OR from:b) AND (subject:"x" OR subject:"y")
func (b Builder) Build() string {
	from := joinClause("from:%s", b.Senders)
	subject := joinClause(`subject:"%s"`, b.Subjects)

	switch {
	case from == "" && subject == "":
		return ""
	case from == "":
		return "(" + subject + ")"
	case subject == "":
		return "(" + from + ")"
	}

	op := b.Combine
	if op == "" {
		op = And
	}
	return fmt.Sprintf("(%s) %s (%s)", from, op, subject)
}

func joinClause(format string, values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf(format, v))
	}
	return strings.Join(parts, " OR ")
}

// WithDateRange restricts a query to messages received in [start, end) using
// the provider's after:/before: operators. Zero times are left out.
func WithDateRange(q string, start, end time.Time) string {
	var dates []string
	if !start.IsZero() {
		dates = append(dates, "after:"+start.UTC().Format("2006-01-02"))
	}
	if !end.IsZero() {
		dates = append(dates, "before:"+end.UTC().Format("2006-01-02"))
	}
	dateQuery := strings.Join(dates, " ")

	q = strings.TrimSpace(q)
	if q != "" && dateQuery != "" {
		return fmt.Sprintf("(%s) AND (%s)", q, dateQuery)
	}
	if q != "" {
		return q
	}
	return dateQuery
}
