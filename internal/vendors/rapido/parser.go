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

// Package rapido parses Rapido ride invoice emails.
//
// Rapido invoices are parsed strictly by default: an invoice without an
// amount is reported as a failure with a placeholder receipt. Attachment
// facts never replace values read from the HTML body.
package rapido

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fareledger/receipts/internal/extract"
	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/pdflink"
	"github.com/fareledger/receipts/internal/vendor"
)

const (
	ServiceName     = "Rapido"
	DefaultCurrency = "INR"
	PDFFilename     = "rapido-receipt.pdf"

	defaultLocation   = "Rapido Trip"
	unknownPickupTime = "Unknown"
)

// Parser implements vendor.Parser for Rapido.
type Parser struct {
	policy   vendor.Policy
	resolver pdflink.Resolver
	clock    vendor.Clock
}

// NewParser creates a Rapido parser. A nil clock uses time.Now.
func NewParser(policy vendor.Policy, resolver pdflink.Resolver, clock vendor.Clock) *Parser {
	if policy.Currency == "" {
		policy.Currency = DefaultCurrency
	}
	return &Parser{policy: policy, resolver: resolver, clock: clock}
}

// ParseOne converts one invoice email.
func (p *Parser) ParseOne(msg models.RawMessage) (outcome models.ParseOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("failed to parse rapido receipt",
				"message_id", msg.ID,
				"error", r,
			)
			outcome = p.Fail(msg, fmt.Sprint(r))
		}
	}()

	html := msg.HTML()
	if html == "" {
		return p.Fail(msg, "No HTML content found in email")
	}

	f := table.Extract(html)

	var amount float64
	if v, ok := f[fieldAmount]; ok {
		if a, err := extract.ParseDecimal(v); err == nil {
			amount = a
		}
	}
	if amount == 0 && p.policy.Strict {
		return p.Fail(msg, "Missing required field: amount")
	}

	rideID := f[fieldRideID]
	r := models.ParsedReceipt{
		ID:              firstNonEmpty(rideID, msg.ID),
		EmailID:         msg.ID,
		Date:            p.date(msg, f[fieldTimeOfRide]),
		Amount:          amount,
		Currency:        p.policy.Currency,
		Location:        summary(f[fieldPickup], f[fieldDropoff]),
		Service:         ServiceName,
		PickupLocation:  f[fieldPickup],
		DropoffLocation: f[fieldDropoff],
		DriverName:      f[fieldDriverName],
		VehicleInfo:     vehicleInfo(f[fieldVehicleType], f[fieldVehicleNumber]),
		ServiceID:       rideID,
		PDFURL:          p.resolver.Resolve(msg, PDFFilename),
		MailURL:         p.resolver.ViewerLink(msg.ID),
		CustomerName:    f[fieldCustomerName],
		VehicleNumber:   f[fieldVehicleNumber],
		VehicleType:     f[fieldVehicleType],
		TimeOfRide:      f[fieldTimeOfRide],
		HasPDF:          pdflink.HasPDF(msg),
		Status:          vendor.TripStatus(msg),
	}
	if r.TimeOfRide != "" {
		r.PickupTime = pickupTime(r.TimeOfRide)
	}

	return models.ParseOutcome{Receipt: r, Success: true}
}

// Fail returns the placeholder outcome for msg. Its only usable link is the
// message in the mail viewer.
func (p *Parser) Fail(msg models.RawMessage, reason string) models.ParseOutcome {
	viewer := p.resolver.ViewerLink(msg.ID)
	return models.ParseOutcome{
		Receipt: models.ParsedReceipt{
			ID:       msg.ID,
			EmailID:  msg.ID,
			Date:     vendor.DefaultDate(msg, p.clock),
			Currency: p.policy.Currency,
			Location: defaultLocation,
			Service:  ServiceName,
			Status:   models.StatusError,
			PDFURL:   viewer,
			MailURL:  viewer,
		},
		Error: reason,
	}
}

func (p *Parser) date(msg models.RawMessage, timeOfRide string) string {
	if d, ok := rideDate(timeOfRide); ok {
		return d
	}
	return vendor.DefaultDate(msg, p.clock)
}

var ordinalSuffix = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)\b`)

var rideLayouts = []string{
	"Jan 2 2006, 3:04 PM",
	"Jan 2 2006, 3:04PM",
	"January 2 2006, 3:04 PM",
	"Jan 2 2006",
	"January 2 2006",
}

// rideDate reads the calendar day from a time of ride such as
// "Jun 14th 2025, 11:50 PM".
func rideDate(timeOfRide string) (string, bool) {
	s := strings.TrimSpace(timeOfRide)
	if s == "" {
		return "", false
	}
	if loc := ordinalSuffix.FindStringSubmatchIndex(s); loc != nil {
		s = s[:loc[0]] + s[loc[2]:loc[3]] + s[loc[1]:]
	}
	for _, layout := range rideLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.DateLayout), true
		}
	}
	return "", false
}

func pickupTime(timeOfRide string) string {
	if t, ok := extract.ClockTime(timeOfRide); ok {
		return t
	}
	return unknownPickupTime
}

// shorten keeps the part of an address before the first comma.
func shorten(location string) string {
	head, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(head)
}

func summary(pickup, dropoff string) string {
	switch {
	case pickup != "" && dropoff != "":
		return shorten(pickup) + " → " + shorten(dropoff)
	case pickup != "":
		return shorten(pickup)
	case dropoff != "":
		return shorten(dropoff)
	default:
		return defaultLocation
	}
}

func vehicleInfo(vehicleType, number string) string {
	switch {
	case vehicleType != "" && number != "":
		return vehicleType + " - " + number
	case number != "":
		return number
	default:
		return vehicleType
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
