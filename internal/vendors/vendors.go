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

// Package vendors wires the built-in receipt vendors into a service
// registry, applying configuration overrides.
package vendors

import (
	"fmt"

	"github.com/fareledger/receipts/internal/config"
	"github.com/fareledger/receipts/internal/pdflink"
	"github.com/fareledger/receipts/internal/query"
	"github.com/fareledger/receipts/internal/service"
	"github.com/fareledger/receipts/internal/vendor"
	"github.com/fareledger/receipts/internal/vendors/rapido"
	"github.com/fareledger/receipts/internal/vendors/uber"
)

// Vendor identifiers.
const (
	Uber   = "uber"
	Rapido = "rapido"
)

// Settings is the effective configuration of one vendor.
type Settings struct {
	ID          string
	Enabled     bool
	DisplayName string
	Query       query.Builder
	Policy      vendor.Policy
}

type parserFactory func(vendor.Policy, pdflink.Resolver, vendor.Clock) vendor.Parser

type builtin struct {
	settings Settings
	parser   parserFactory
}

// Registration order is the order results are merged in.
var builtins = []builtin{
	{
		settings: Settings{
			ID:          Uber,
			Enabled:     true,
			DisplayName: uber.ServiceName,
			Query: query.Builder{
				Senders: []string{
					"receipts@uber.com",
					"uber.receipts@uber.com",
					"noreply@uber.com",
				},
				Subjects: []string{
					"trip with Uber",
					"Your Uber Receipt",
					"Your receipt from",
					"Thanks for riding",
					"Your Uber Eats order",
					"Receipt for your Uber",
					"Your order with Uber",
				},
				Combine: query.And,
			},
			Policy: vendor.Policy{Strict: false, Currency: uber.DefaultCurrency},
		},
		parser: func(p vendor.Policy, r pdflink.Resolver, c vendor.Clock) vendor.Parser {
			return uber.NewParser(p, r, c)
		},
	},
	{
		settings: Settings{
			ID:          Rapido,
			Enabled:     true,
			DisplayName: rapido.ServiceName,
			Query: query.Builder{
				Senders:  []string{"shoutout@rapido.bike"},
				Subjects: []string{"trip with Rapido", "Rapido Invoice"},
				Combine:  query.Or,
			},
			Policy: vendor.Policy{Strict: true, Currency: rapido.DefaultCurrency},
		},
		parser: func(p vendor.Policy, r pdflink.Resolver, c vendor.Clock) vendor.Parser {
			return rapido.NewParser(p, r, c)
		},
	},
}

// Resolve applies the overrides for one vendor to its built-in settings.
func Resolve(base Settings, override config.VendorConfig) (Settings, error) {
	s := base
	s.Query.Senders = append([]string(nil), base.Query.Senders...)
	s.Query.Subjects = append([]string(nil), base.Query.Subjects...)

	if override.Enabled != nil {
		s.Enabled = *override.Enabled
	}
	if override.DisplayName != "" {
		s.DisplayName = override.DisplayName
	}
	if len(override.Senders) > 0 {
		s.Query.Senders = override.Senders
	}
	if len(override.Subjects) > 0 {
		s.Query.Subjects = override.Subjects
	}
	if override.Combine != "" {
		op, err := query.ParseOperator(override.Combine)
		if err != nil {
			return Settings{}, fmt.Errorf("vendor %s: %w", base.ID, err)
		}
		s.Query.Combine = op
	}
	if override.Strict != nil {
		s.Policy.Strict = *override.Strict
	}
	if override.Currency != "" {
		s.Policy.Currency = override.Currency
	}
	return s, nil
}

// NewRegistry builds a registry holding every enabled vendor. Unknown
// vendor ids in the configuration are rejected.
func NewRegistry(cfg *config.Config, searcher service.MailSearcher, resolver pdflink.Resolver, clock vendor.Clock) (*service.Registry, error) {
	known := make(map[string]bool, len(builtins))
	for _, b := range builtins {
		known[b.settings.ID] = true
	}
	for id := range cfg.Vendors {
		if !known[id] {
			return nil, fmt.Errorf("unknown vendor %q in configuration", id)
		}
	}

	reg := service.NewRegistry()
	for _, b := range builtins {
		s, err := Resolve(b.settings, cfg.Vendors[b.settings.ID])
		if err != nil {
			return nil, err
		}
		if !s.Enabled {
			continue
		}
		parser := b.parser(s.Policy, resolver, clock)
		reg.Register(s.ID, service.NewVendorService(s.DisplayName, s.Query, parser, searcher))
	}
	return reg, nil
}
