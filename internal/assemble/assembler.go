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

// Package assemble runs every registered vendor's search and parse and
// merges the results into one date-ordered receipt list.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fareledger/receipts/internal/metrics"
	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/service"
)

// ErrNoCredential is returned when there is no usable mail credential. It is
// the only error SearchAndParse returns; vendor failures are absorbed.
var ErrNoCredential = errors.New("no valid mail credential")

// Result is the merged receipt list.
type Result struct {
	Receipts []models.Receipt `json:"receipts"`
	// Registered vendors, whether or not they succeeded.
	VendorCount int `json:"vendorCount"`
}

// Message summarises the result for API responses.
func (r *Result) Message() string {
	return fmt.Sprintf("Found %d receipts from %d services", len(r.Receipts), r.VendorCount)
}

// Assembler fans a search out over a registry.
type Assembler struct {
	// Vendors searched at once. Values below 2 search one vendor at a time
	// in registration order.
	Concurrency int
	Metrics     *metrics.Metrics
}

// SearchAndParse searches every vendor in reg for receipts in [start, end]
// and returns the successfully parsed ones, newest first. Receipts with the
// same date keep vendor registration order, then message order.
func (a *Assembler) SearchAndParse(ctx context.Context, reg *service.Registry, cred models.Credential, start, end time.Time, maxResults int) (*Result, error) {
	if strings.TrimSpace(cred.AccessToken) == "" {
		return nil, ErrNoCredential
	}

	services := reg.All()
	slots := make([][]models.Receipt, len(services))

	var g errgroup.Group
	g.SetLimit(max(1, a.Concurrency))
	for i, svc := range services {
		g.Go(func() error {
			slots[i] = a.collect(ctx, svc, cred, start, end, maxResults)
			return nil
		})
	}
	_ = g.Wait()

	var receipts []models.Receipt
	for _, slot := range slots {
		receipts = append(receipts, slot...)
	}
	if receipts == nil {
		receipts = []models.Receipt{}
	}
	SortByDateDesc(receipts)

	a.Metrics.ObserveAssembled(len(receipts))
	return &Result{Receipts: receipts, VendorCount: len(services)}, nil
}

// collect runs one vendor. Any failure is logged and yields no receipts.
func (a *Assembler) collect(ctx context.Context, svc service.Service, cred models.Credential, start, end time.Time, maxResults int) (receipts []models.Receipt) {
	name := svc.Name()
	began := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("vendor panicked during search",
				"vendor", name,
				"panic", r,
			)
			a.Metrics.SearchFailed(name)
			receipts = nil
		}
	}()

	res, err := svc.Search(ctx, cred, start, end, maxResults)
	if err != nil {
		slog.Error("vendor search failed",
			"vendor", name,
			"error", err,
		)
		a.Metrics.SearchFailed(name)
		return nil
	}
	if res == nil || len(res.Messages) == 0 {
		a.Metrics.ObserveSearch(name, time.Since(began))
		return nil
	}

	failed := 0
	for _, out := range svc.Parse(res.Messages) {
		a.Metrics.ObserveParse(name, out.Success)
		if !out.Success {
			failed++
			slog.Warn("receipt not parsed",
				"vendor", name,
				"message_id", out.Receipt.EmailID,
				"error", out.Error,
			)
			continue
		}
		receipts = append(receipts, out.Receipt.Project())
	}

	a.Metrics.ObserveSearch(name, time.Since(began))
	slog.Info("vendor search complete",
		"vendor", name,
		"messages", len(res.Messages),
		"receipts", len(receipts),
		"failed", failed,
		"elapsed", time.Since(began).String(),
	)
	return receipts
}

// SortByDateDesc orders receipts newest first. The sort is stable and
// receipts with unparseable dates go last.
func SortByDateDesc(receipts []models.Receipt) {
	keys := make([]time.Time, len(receipts))
	valid := make([]bool, len(receipts))
	for i, r := range receipts {
		keys[i], valid[i] = parseDate(r.Date)
	}

	idx := make([]int, len(receipts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if valid[i] != valid[j] {
			return valid[i]
		}
		return valid[i] && keys[i].After(keys[j])
	})

	sorted := make([]models.Receipt, len(receipts))
	for n, i := range idx {
		sorted[n] = receipts[i]
	}
	copy(receipts, sorted)
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Truncate(24 * time.Hour), true
	}
	return time.Time{}, false
}
