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

// Package service binds a vendor's search query and receipt parser behind one
// capability, and keeps the registry callers use to enumerate vendors.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/query"
	"github.com/fareledger/receipts/internal/vendor"
)

// DefaultMaxResults caps a search when the caller passes no limit.
const DefaultMaxResults = 100

// Service is one receipt vendor.
type Service interface {
	Name() string
	Search(ctx context.Context, cred models.Credential, start, end time.Time, maxResults int) (*models.SearchResult, error)
	Parse(msgs []models.RawMessage) []models.ParseOutcome
}

// MailSearcher is the mail provider collaborator.
type MailSearcher interface {
	Search(ctx context.Context, cred models.Credential, params models.SearchParams) (*models.SearchResult, error)
}

// VendorService is the Service every vendor is built from.
type VendorService struct {
	name     string
	query    query.Builder
	parser   vendor.Parser
	searcher MailSearcher
}

// NewVendorService creates a Service named name.
func NewVendorService(name string, q query.Builder, parser vendor.Parser, searcher MailSearcher) *VendorService {
	return &VendorService{
		name:     name,
		query:    q,
		parser:   parser,
		searcher: searcher,
	}
}

// Name returns the display name.
func (s *VendorService) Name() string { return s.name }

// BuildQuery returns the vendor's provider search query.
func (s *VendorService) BuildQuery() string { return s.query.Build() }

// Search asks the mail provider for the vendor's messages in [start, end].
func (s *VendorService) Search(ctx context.Context, cred models.Credential, start, end time.Time, maxResults int) (*models.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	res, err := s.searcher.Search(ctx, cred, models.SearchParams{
		Query:      s.BuildQuery(),
		Start:      start,
		End:        end,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s receipts: %w", s.name, err)
	}
	return res, nil
}

// Parse converts msgs one by one, in order.
func (s *VendorService) Parse(msgs []models.RawMessage) []models.ParseOutcome {
	return vendor.ParseMany(s.parser, msgs)
}
