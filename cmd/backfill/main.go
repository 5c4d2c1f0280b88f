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

// Receipts historical backfill
//
// Standalone CLI tool that extracts ride receipts from connected Gmail
// accounts over a lookback window and publishes each new receipt to the
// Redis receipts queue. Intended for seeding downstream expense tooling.
//
// Usage:
//
//	go run ./cmd/backfill/ [--users alice,bob] [--since 720h] [--max-results 100]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/fareledger/receipts/internal/assemble"
	"github.com/fareledger/receipts/internal/backfill"
	"github.com/fareledger/receipts/internal/config"
	"github.com/fareledger/receipts/internal/credentials"
	"github.com/fareledger/receipts/internal/dedup"
	"github.com/fareledger/receipts/internal/gmail"
	"github.com/fareledger/receipts/internal/logging"
	"github.com/fareledger/receipts/internal/metrics"
	"github.com/fareledger/receipts/internal/pdflink"
	"github.com/fareledger/receipts/internal/queue"
	"github.com/fareledger/receipts/internal/vendors"
)

func main() {
	// --- CLI Flags ---
	usersFlag := flag.String("users", "", "Comma-separated user ids (optional; empty = every connected user)")
	sinceFlag := flag.String("since", "720h", "Lookback duration (e.g. 168h for 1 week, 720h for 30 days)")
	maxFlag := flag.Int("max-results", 0, "Messages per vendor per user (0 = configured default)")
	flag.Parse()

	sinceDuration, err := time.ParseDuration(*sinceFlag)
	if err != nil || sinceDuration <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid --since duration %q\n", *sinceFlag)
		os.Exit(1)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg.Logging))

	maxResults := *maxFlag
	if maxResults <= 0 {
		maxResults = cfg.MaxResults
	}

	slog.Info("starting receipt backfill",
		"since", sinceDuration,
		"max_results", maxResults,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	store, err := credentials.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise credential store", "error", err)
		os.Exit(1)
	}
	refresher, err := credentials.NewOAuthRefresher(cfg.Google)
	if err != nil {
		slog.Error("invalid google oauth client", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := queue.NewPublisher(rdb, cfg.ReceiptsQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Vendors ---
	mail := gmail.NewClient(cfg.FetchRate, cfg.FetchBurst)
	resolver := pdflink.Resolver{DownloadPath: cfg.DownloadPath, ViewerURL: cfg.ViewerURL}
	registry, err := vendors.NewRegistry(cfg, mail, resolver, nil)
	if err != nil {
		slog.Error("failed to build vendor registry", "error", err)
		os.Exit(1)
	}

	// --- Resolve users ---
	var users []string
	for _, u := range strings.Split(*usersFlag, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}

	m := metrics.New(prometheus.NewRegistry())

	// --- Run Backfill ---
	runner := backfill.NewRunner(backfill.RunnerConfig{
		Credentials: credentials.NewProvider(store, refresher, nil),
		Users:       store,
		Assembler:   &assemble.Assembler{Concurrency: cfg.Concurrency, Metrics: m},
		Registry:    registry,
		Publisher:   publisher,
		Dedup:       dedup.NewFilter(rdb),
		Metrics:     m,
	})

	result, err := runner.Run(ctx, backfill.Request{
		Users:      users,
		Since:      sinceDuration,
		MaxResults: maxResults,
	})
	if err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	for _, ur := range result.UserResults {
		slog.Info("user result",
			"user_id", ur.UserID,
			"found", ur.Found,
			"published", ur.Published,
			"skipped", ur.Skipped,
			"errors", ur.Errors,
		)
	}
	slog.Info("backfill complete",
		"total_published", result.TotalPublished,
		"total_skipped", result.TotalSkipped,
		"total_errors", result.TotalErrors,
		"elapsed", result.Elapsed,
	)
}
