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

package extract

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	currencyCode   = regexp.MustCompile(`\b(USD|EUR|GBP|INR|JPY|CAD|AUD)\b`)
	currencySymbol = regexp.MustCompile(`[$₹£€¥]`)

	symbolCodes = map[string]string{
		"$": "USD",
		"₹": "INR",
		"£": "GBP",
		"€": "EUR",
		"¥": "JPY",
	}
)

// Currency infers an ISO currency code, preferring an explicit code over a
// symbol glyph.
func Currency(text string) (string, bool) {
	if m := currencyCode.FindString(text); m != "" {
		return m, true
	}
	if m := currencySymbol.FindString(text); m != "" {
		return symbolCodes[m], true
	}
	return "", false
}

var decimalShape = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseDecimal parses a plain non-negative decimal such as "42.50" or
// "1,234". Signs, exponents and stray dots are rejected.
func ParseDecimal(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !decimalShape.MatchString(s) {
		return 0, fmt.Errorf("not a decimal amount: %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("amount out of range: %q", s)
	}
	return v, nil
}

// DecimalGroup is a picker that only accepts capture group 1 when it parses
// with ParseDecimal.
func DecimalGroup(m []string) string {
	if len(m) < 2 {
		return ""
	}
	if _, err := ParseDecimal(m[1]); err != nil {
		return ""
	}
	return m[1]
}

var clockTime = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)`)

// IsClockTime reports whether s contains a 12-hour clock time.
func IsClockTime(s string) bool {
	return clockTime.MatchString(s)
}

// ClockTime returns the first 12-hour clock time in s, e.g. "11:50 PM".
func ClockTime(s string) (string, bool) {
	m := clockTime.FindString(s)
	return strings.TrimSpace(m), m != ""
}

// ClockMinutes converts "11:50 PM" to minutes after midnight. Hours 13-23
// are read as 24-hour values whatever the suffix.
func ClockMinutes(s string) (int, bool) {
	m := clockTime.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if hours > 23 || minutes > 59 {
		return 0, false
	}

	pm := strings.EqualFold(m[3], "PM")
	switch {
	case pm && hours < 12:
		hours += 12
	case !pm && hours == 12:
		hours = 0
	}
	return hours*60 + minutes, true
}

const minutesPerDay = 24 * 60

// DeriveDuration computes the trip length from pickup and dropoff clock
// times. A negative difference is a trip across midnight. Results outside
// [0, 1440) minutes are rejected.
func DeriveDuration(pickup, dropoff string) (string, bool) {
	from, ok := ClockMinutes(pickup)
	if !ok {
		return "", false
	}
	to, ok := ClockMinutes(dropoff)
	if !ok {
		return "", false
	}

	diff := to - from
	if diff < 0 {
		diff += minutesPerDay
	}
	if diff < 0 || diff >= minutesPerDay {
		return "", false
	}
	return fmt.Sprintf("%d min", diff), true
}

var leadingInt = regexp.MustCompile(`^\d+`)

// Minutes formats duration text: a leading integer becomes "N min", anything
// else is kept verbatim.
func Minutes(s string) string {
	s = strings.TrimSpace(s)
	if n := leadingInt.FindString(s); n != "" {
		v, _ := strconv.Atoi(n)
		return fmt.Sprintf("%d min", v)
	}
	return s
}

var hrefAttr = regexp.MustCompile(`(?i)href=["']([^"']*)["']`)

// Hrefs lists every non-empty href attribute value in document order.
func Hrefs(html string) []string {
	var links []string
	for _, m := range hrefAttr.FindAllStringSubmatch(html, -1) {
		if m[1] != "" {
			links = append(links, m[1])
		}
	}
	return links
}

// SecondHref returns the URL-decoded second link of the document. Receipt
// templates that carry a PDF link put it right after the logo link. Values
// that fail to decode are returned as-is.
func SecondHref(html string) (string, bool) {
	links := Hrefs(html)
	if len(links) < 2 {
		return "", false
	}
	decoded, err := url.PathUnescape(links[1])
	if err != nil {
		return links[1], true
	}
	return decoded, true
}
