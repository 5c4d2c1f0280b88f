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

// Package export renders receipts as tab-separated text that pastes
// straight into a spreadsheet expense sheet.
package export

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fareledger/receipts/internal/extract"
	"github.com/fareledger/receipts/internal/models"
)

// Format selects the export layout.
type Format string

const (
	// FormatSummary is Date and Amount, with late-night trips booked on the
	// previous day.
	FormatSummary Format = "summary"
	// FormatDetailed adds locations, times and the mail link.
	FormatDetailed Format = "detailed"

	dateLayout = "1/2/2006"
)

// ErrUnknownFormat is returned by Render for an unsupported Format.
var ErrUnknownFormat = errors.New("unknown export format")

var detailedHeader = []string{"Date", "Amount", "Pick Up Location", "Drop Location", "Pick Up Time", "Drop Time", "Email"}

// Render produces the export text for receipts in the given format. An
// empty format means FormatSummary.
func Render(format Format, receipts []models.Receipt) (string, error) {
	switch format {
	case "", FormatSummary:
		return Summary(receipts), nil
	case FormatDetailed:
		return Detailed(receipts), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Summary lists receipts oldest first as "Date<TAB>Amount" followed by a
// blank line and a TOTAL row. A pickup before noon is booked on the previous
// calendar day.
func Summary(receipts []models.Receipt) string {
	sorted := sortedByDate(receipts)

	lines := make([]string, 0, len(sorted)+3)
	lines = append(lines, join("Date", "Amount"))
	for _, r := range sorted {
		lines = append(lines, join(bookingDate(r), amount(r.Amount)))
	}
	lines = append(lines, "", join("TOTAL", amount(total(sorted))))
	return strings.Join(lines, "\n")
}

// Detailed lists receipts in the given order with their trip details.
func Detailed(receipts []models.Receipt) string {
	lines := make([]string, 0, len(receipts)+3)
	lines = append(lines, join(detailedHeader...))
	for _, r := range receipts {
		pickup := r.PickupLocation
		if pickup == "" {
			pickup = r.Location
		}
		lines = append(lines, join(
			displayDate(r.Date),
			amount(r.Amount),
			pickup,
			r.DropoffLocation,
			r.PickupTime,
			r.DropoffTime,
			r.MailURL,
		))
	}
	lines = append(lines, "", join("TOTAL", amount(total(receipts)), "", "", "", "", ""))
	return strings.Join(lines, "\n")
}

// bookingDate is the receipt date, moved back a day for morning pickups.
func bookingDate(r models.Receipt) string {
	d, err := time.Parse(models.DateLayout, r.Date)
	if err != nil {
		return r.Date
	}
	if h, ok := pickupHour(r.PickupTime); ok && h < 12 {
		d = d.AddDate(0, 0, -1)
	}
	return d.Format(dateLayout)
}

// pickupHour reads the hour of a 12-hour clock time, or the leading hour of
// a 24-hour "HH:MM" value.
func pickupHour(s string) (int, bool) {
	if mins, ok := extract.ClockMinutes(s); ok {
		return mins / 60, true
	}
	head, _, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(head)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

func displayDate(s string) string {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return s
	}
	return d.Format(dateLayout)
}

func sortedByDate(receipts []models.Receipt) []models.Receipt {
	out := append([]models.Receipt(nil), receipts...)
	sort.SliceStable(out, func(i, j int) bool {
		a, errA := time.Parse(models.DateLayout, out[i].Date)
		b, errB := time.Parse(models.DateLayout, out[j].Date)
		if errA != nil || errB != nil {
			return errA == nil && errB != nil
		}
		return a.Before(b)
	})
	return out
}

func total(receipts []models.Receipt) float64 {
	var sum float64
	for _, r := range receipts {
		sum += r.Amount
	}
	return math.Round(sum*100) / 100
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var cellCleaner = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func join(cells ...string) string {
	clean := make([]string, len(cells))
	for i, c := range cells {
		clean[i] = cellCleaner.Replace(c)
	}
	return strings.Join(clean, "\t")
}
