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

// Package backfill extracts historical ride receipts for connected users
// and publishes each one once to the receipts queue.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fareledger/receipts/internal/assemble"
	"github.com/fareledger/receipts/internal/dedup"
	"github.com/fareledger/receipts/internal/metrics"
	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/service"
)

// Request defines the scope of a backfill run.
type Request struct {
	Users      []string      // empty means every connected user
	Since      time.Duration // lookback window (e.g. 720h = 30 days)
	MaxResults int           // per vendor, per user
}

// Result summarises a completed backfill run.
type Result struct {
	UserResults    []UserResult
	TotalPublished int
	TotalSkipped   int
	TotalErrors    int
	Elapsed        time.Duration
}

// UserResult tracks per-user backfill progress.
type UserResult struct {
	UserID    string
	Found     int
	Published int
	Skipped   int
	Errors    int
}

// CredentialSource resolves a user to a mail credential.
type CredentialSource interface {
	Credential(ctx context.Context, userID string) (models.Credential, error)
}

// UserLister enumerates connected users.
type UserLister interface {
	ListUsers(ctx context.Context) ([]string, error)
}

// Publisher emits one receipt event.
type Publisher interface {
	PublishReceipt(ctx context.Context, userID string, r models.Receipt) error
}

// Deduper reports whether an id is being seen for the first time and can
// release an id whose publish failed.
type Deduper interface {
	IsNew(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Runner performs historical receipt backfill.
type Runner struct {
	credentials CredentialSource
	users       UserLister
	assembler   *assemble.Assembler
	registry    *service.Registry
	publisher   Publisher
	dedup       Deduper
	metrics     *metrics.Metrics
	userDelay   time.Duration // pause between users to spread Gmail quota
	now         func() time.Time
}

// RunnerConfig holds dependencies for the backfill runner.
type RunnerConfig struct {
	Credentials CredentialSource
	Users       UserLister
	Assembler   *assemble.Assembler
	Registry    *service.Registry
	Publisher   Publisher
	Dedup       Deduper
	Metrics     *metrics.Metrics
	UserDelay   time.Duration
}

// NewRunner creates a backfill runner.
func NewRunner(cfg RunnerConfig) *Runner {
	delay := cfg.UserDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	asm := cfg.Assembler
	if asm == nil {
		asm = &assemble.Assembler{Metrics: cfg.Metrics}
	}
	return &Runner{
		credentials: cfg.Credentials,
		users:       cfg.Users,
		assembler:   asm,
		registry:    cfg.Registry,
		publisher:   cfg.Publisher,
		dedup:       cfg.Dedup,
		metrics:     cfg.Metrics,
		userDelay:   delay,
		now:         time.Now,
	}
}

// Run backfills every requested user. Per-user failures are logged and
// counted; only failing to enumerate users aborts the run.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	began := time.Now()
	end := r.now().UTC()
	start := end.Add(-req.Since)

	users := req.Users
	if len(users) == 0 {
		if r.users == nil {
			return nil, fmt.Errorf("no users given and no user lister configured")
		}
		listed, err := r.users.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list connected users: %w", err)
		}
		users = listed
	}

	slog.Info("starting receipt backfill",
		"users", len(users),
		"vendors", r.registry.Count(),
		"since", start.Format(time.RFC3339),
	)

	result := &Result{}
	for i, userID := range users {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(r.userDelay):
			}
		}

		ur, err := r.backfillUser(ctx, userID, start, end, req.MaxResults)
		if err != nil {
			slog.Error("backfill failed for user",
				"user_id", userID,
				"error", err,
			)
			ur = UserResult{UserID: userID, Errors: 1}
		}

		result.UserResults = append(result.UserResults, ur)
		result.TotalPublished += ur.Published
		result.TotalSkipped += ur.Skipped
		result.TotalErrors += ur.Errors
	}

	result.Elapsed = time.Since(began)

	slog.Info("receipt backfill complete",
		"total_published", result.TotalPublished,
		"total_skipped", result.TotalSkipped,
		"total_errors", result.TotalErrors,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (r *Runner) backfillUser(ctx context.Context, userID string, start, end time.Time, maxResults int) (UserResult, error) {
	ur := UserResult{UserID: userID}

	cred, err := r.credentials.Credential(ctx, userID)
	if err != nil {
		return ur, fmt.Errorf("credential: %w", err)
	}

	found, err := r.assembler.SearchAndParse(ctx, r.registry, cred, start, end, maxResults)
	if err != nil {
		return ur, fmt.Errorf("search receipts: %w", err)
	}
	ur.Found = len(found.Receipts)

	for _, rec := range found.Receipts {
		key := dedup.Key(userID, rec.ID)
		marked := false
		if r.dedup != nil {
			isNew, err := r.dedup.IsNew(ctx, key)
			switch {
			case err != nil:
				slog.Warn("dedup check failed", "receipt_id", rec.ID, "error", err)
			case !isNew:
				ur.Skipped++
				r.metrics.ObservePublish("duplicate")
				continue
			default:
				marked = true
			}
		}

		if err := r.publisher.PublishReceipt(ctx, userID, rec); err != nil {
			slog.Warn("backfill: publish failed",
				"user_id", userID,
				"receipt_id", rec.ID,
				"error", err,
			)
			ur.Errors++
			r.metrics.ObservePublish("error")
			if marked {
				if err := r.dedup.Forget(ctx, key); err != nil {
					slog.Warn("dedup release failed", "receipt_id", rec.ID, "error", err)
				}
			}
			continue
		}
		ur.Published++
		r.metrics.ObservePublish("published")
	}

	slog.Info("user backfill complete",
		"user_id", userID,
		"found", ur.Found,
		"published", ur.Published,
		"skipped", ur.Skipped,
		"errors", ur.Errors,
	)
	return ur, nil
}
