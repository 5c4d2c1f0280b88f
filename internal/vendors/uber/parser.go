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

// Package uber parses Uber trip receipt emails.
//
// Uber receipts are parsed leniently: a receipt is reported even when the
// amount could not be found. Facts taken from an inline PDF attachment
// replace those taken from the HTML body.
package uber

import (
	"fmt"
	"log/slog"

	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/pdflink"
	"github.com/fareledger/receipts/internal/vendor"
)

const (
	ServiceName     = "Uber"
	DefaultCurrency = "USD"

	pdfTripType         = "Uber Receipt (PDF)"
	placeholderLocation = "Unknown"
)

// Parser implements vendor.Parser for Uber.
type Parser struct {
	policy   vendor.Policy
	resolver pdflink.Resolver
	clock    vendor.Clock
}

// NewParser creates an Uber parser. A nil clock uses time.Now.
func NewParser(policy vendor.Policy, resolver pdflink.Resolver, clock vendor.Clock) *Parser {
	if policy.Currency == "" {
		policy.Currency = DefaultCurrency
	}
	return &Parser{policy: policy, resolver: resolver, clock: clock}
}

// ParseOne converts one receipt email.
func (p *Parser) ParseOne(msg models.RawMessage) (outcome models.ParseOutcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("failed to parse uber receipt",
				"message_id", msg.ID,
				"error", r,
			)
			outcome = p.Fail(msg, fmt.Sprint(r))
		}
	}()

	r := models.ParsedReceipt{
		ID:       msg.ID,
		EmailID:  msg.ID,
		Date:     vendor.DefaultDate(msg, p.clock),
		Location: placeholderLocation,
		Service:  ServiceName,
		TripType: defaultTripType,
	}

	if html := msg.HTML(); html != "" {
		mergeHTML(&r, parseHTML(html))
	}

	// PDF facts win over HTML facts.
	if att, ok := inlinePDF(msg); ok {
		r.HasPDF = true
		r.TripType = pdfTripType
		pages, err := pdfPages(att.Data)
		if err != nil {
			slog.Debug("could not read pdf attachment",
				"message_id", msg.ID,
				"filename", att.Filename,
				"error", err,
			)
		}
		r.PDFPages = pages
	}

	if r.PDFURL == "" && pdflink.HasPDF(msg) {
		r.PDFURL = p.resolver.Resolve(msg, pdflink.DefaultFilename)
	}
	r.MailURL = p.resolver.ViewerLink(msg.ID)

	if r.Currency == "" {
		r.Currency = p.policy.Currency
	}
	r.Status = vendor.TripStatus(msg)

	if p.policy.Strict && r.Amount == 0 {
		return p.Fail(msg, "Missing required field: amount")
	}
	return models.ParseOutcome{Receipt: r, Success: true}
}

// Fail returns the placeholder outcome for msg.
func (p *Parser) Fail(msg models.RawMessage, reason string) models.ParseOutcome {
	return models.ParseOutcome{
		Receipt: models.ParsedReceipt{
			ID:       msg.ID,
			EmailID:  msg.ID,
			Date:     vendor.DefaultDate(msg, p.clock),
			Currency: p.policy.Currency,
			Location: placeholderLocation,
			Service:  ServiceName,
			TripType: defaultTripType,
			Status:   models.StatusError,
			MailURL:  p.resolver.ViewerLink(msg.ID),
		},
		Error: reason,
	}
}

// mergeHTML copies every field the HTML parse found into dst. Empty values
// never replace values already set.
func mergeHTML(dst *models.ParsedReceipt, src models.ParsedReceipt) {
	if src.Amount > 0 {
		dst.Amount = src.Amount
	}
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&dst.Location, src.Location},
		{&dst.PickupLocation, src.PickupLocation},
		{&dst.DropoffLocation, src.DropoffLocation},
		{&dst.ServiceID, src.ServiceID},
		{&dst.TripType, src.TripType},
		{&dst.PickupTime, src.PickupTime},
		{&dst.DropoffTime, src.DropoffTime},
		{&dst.Duration, src.Duration},
		{&dst.PaymentMethod, src.PaymentMethod},
		{&dst.Currency, src.Currency},
		{&dst.DriverName, src.DriverName},
		{&dst.Distance, src.Distance},
		{&dst.PDFURL, src.PDFURL},
	} {
		if f.v != "" {
			*f.dst = f.v
		}
	}
}
