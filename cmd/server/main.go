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

// Receipts API server
//
// Entry point for the ride receipt service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL (Gmail credentials) and Redis (result cache)
//  3. Builds the vendor registry (Uber, Rapido) over the Gmail client
//  4. Serves the receipts HTTP API and Prometheus metrics
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/fareledger/receipts/internal/api"
	"github.com/fareledger/receipts/internal/assemble"
	"github.com/fareledger/receipts/internal/cache"
	"github.com/fareledger/receipts/internal/config"
	"github.com/fareledger/receipts/internal/credentials"
	"github.com/fareledger/receipts/internal/gmail"
	"github.com/fareledger/receipts/internal/logging"
	"github.com/fareledger/receipts/internal/metrics"
	"github.com/fareledger/receipts/internal/pdflink"
	"github.com/fareledger/receipts/internal/vendors"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(cfg.Logging))
	slog.Info("starting receipts service",
		"vendors", len(cfg.Vendors),
		"concurrency", cfg.Concurrency,
		"cache_ttl", cfg.CacheTTL,
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

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

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
	provider := credentials.NewProvider(store, refresher, nil)

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
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
	slog.Info("vendor registry ready", "vendors", registry.IDs())

	// --- Metrics ---
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	// --- HTTP API ---
	server := api.New(api.Config{
		Assembler:   &assemble.Assembler{Concurrency: cfg.Concurrency, Metrics: m},
		Registry:    registry,
		Credentials: provider,
		Connections: store,
		Attachments: mail,
		Cache:       cache.New(rdb, cfg.CacheTTL),
		HealthChecks: []api.HealthCheck{
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			{Name: "postgres", Ping: pgPool.Ping},
		},
		Gatherer:     promReg,
		DownloadPath: cfg.DownloadPath,
	})

	if err := server.Listen(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("receipts service stopped")
}
