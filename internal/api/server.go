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

// Package api exposes receipt search, attachment download, Gmail connection
// management and expense export over HTTP.
//
// Callers are identified by the X-User-ID header set by the upstream
// gateway. The API does not authenticate requests itself.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fareledger/receipts/internal/assemble"
	"github.com/fareledger/receipts/internal/cache"
	"github.com/fareledger/receipts/internal/credentials"
	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/pdflink"
	"github.com/fareledger/receipts/internal/service"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

// CredentialSource resolves a user to a usable Gmail credential.
type CredentialSource interface {
	Credential(ctx context.Context, userID string) (models.Credential, error)
}

// ConnectionStore reads and removes stored Gmail connections.
type ConnectionStore interface {
	Get(ctx context.Context, userID string) (*credentials.Record, error)
	Delete(ctx context.Context, userID string) error
}

// AttachmentFetcher downloads attachment bytes.
type AttachmentFetcher interface {
	Attachment(ctx context.Context, cred models.Credential, messageID, attachmentID string) ([]byte, error)
}

// HealthCheck is one dependency probed by /health.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Config holds the collaborators of the HTTP API.
type Config struct {
	Assembler    *assemble.Assembler
	Registry     *service.Registry
	Credentials  CredentialSource
	Connections  ConnectionStore
	Attachments  AttachmentFetcher
	Cache        *cache.ResultCache
	HealthChecks []HealthCheck
	Gatherer     prometheus.Gatherer

	DownloadPath string
}

// Server holds the handlers.
type Server struct {
	cfg Config
}

// New creates an API server. Nil collaborators get safe defaults where one
// exists.
func New(cfg Config) *Server {
	if cfg.Assembler == nil {
		cfg.Assembler = &assemble.Assembler{}
	}
	if cfg.Registry == nil {
		cfg.Registry = service.NewRegistry()
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = pdflink.DefaultDownloadPath
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{cfg: cfg}
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "receipts",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          2 * time.Minute,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestLogger)

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))

	app.Get("/api/receipts/search", s.handleSearch)
	app.Post("/api/receipts/export", s.handleExport)
	app.Get(s.cfg.DownloadPath, s.handleDownload)

	app.Get("/api/auth/gmail/status", s.handleStatus)
	app.Delete("/api/auth/gmail", s.handleUnlink)
	app.Post("/api/auth/gmail/unlink", s.handleUnlink)

	return app
}

// Listen serves the app on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	app := s.App()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("receipts api listening", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
		return err
	}
	return nil
}

func requestLogger(c *fiber.Ctx) error {
	began := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	slog.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"user_id", c.Get(UserHeader),
		"elapsed", time.Since(began).String(),
	)
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code, msg := fiber.StatusInternalServerError, "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, msg = fe.Code, fe.Message
	} else {
		slog.Error("unhandled api error", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(errorBody{Success: false, Error: msg})
}
