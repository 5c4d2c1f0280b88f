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

package api

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fareledger/receipts/internal/assemble"
	"github.com/fareledger/receipts/internal/cache"
	"github.com/fareledger/receipts/internal/credentials"
	"github.com/fareledger/receipts/internal/export"
	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/pdflink"
)

const (
	// defaultSearchMaxResults applies when a search omits maxResults.
	defaultSearchMaxResults = 50

	// gmailMaxResults is the largest page the Gmail list call accepts.
	gmailMaxResults = 500
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type searchResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    []models.Receipt `json:"data"`
}

type exportRequest struct {
	Format   export.Format    `json:"format"`
	Receipts []models.Receipt `json:"receipts"`
}

func fail(c *fiber.Ctx, status int, msg, details string) error {
	return c.Status(status).JSON(errorBody{Success: false, Error: msg, Details: details})
}

func userID(c *fiber.Ctx) (string, bool) {
	id := strings.TrimSpace(c.Get(UserHeader))
	return id, id != ""
}

func isNotConnected(err error) bool {
	return errors.Is(err, credentials.ErrNotConnected) ||
		errors.Is(err, credentials.ErrNoRefreshToken) ||
		errors.Is(err, assemble.ErrNoCredential)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	for _, hc := range s.cfg.HealthChecks {
		if err := hc.Ping(c.UserContext()); err != nil {
			slog.Warn("health check failed", "check", hc.Name, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": hc.Name + " unhealthy",
			})
		}
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"services": s.cfg.Registry.IDs(),
	})
}

// searchParams are the validated query parameters of a receipt search.
type searchParams struct {
	start, end       time.Time
	startRaw, endRaw string
	maxResults       int
}

func (s *Server) parseSearchParams(c *fiber.Ctx) (searchParams, error) {
	p := searchParams{
		startRaw:   c.Query("startDate"),
		endRaw:     c.Query("endDate"),
		maxResults: defaultSearchMaxResults,
	}

	var err error
	if !isoDate.MatchString(p.startRaw) {
		return p, fmt.Errorf("startDate must be YYYY-MM-DD")
	}
	if p.start, err = time.Parse(models.DateLayout, p.startRaw); err != nil {
		return p, fmt.Errorf("startDate: %w", err)
	}
	if !isoDate.MatchString(p.endRaw) {
		return p, fmt.Errorf("endDate must be YYYY-MM-DD")
	}
	if p.end, err = time.Parse(models.DateLayout, p.endRaw); err != nil {
		return p, fmt.Errorf("endDate: %w", err)
	}
	if p.end.Before(p.start) {
		return p, fmt.Errorf("endDate is before startDate")
	}

	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > gmailMaxResults {
			return p, fmt.Errorf("maxResults must be between 1 and %d", gmailMaxResults)
		}
		p.maxResults = n
	}
	return p, nil
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "Authentication required", "")
	}

	p, err := s.parseSearchParams(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid parameters", err.Error())
	}

	ctx := c.UserContext()
	cred, err := s.cfg.Credentials.Credential(ctx, uid)
	if err != nil {
		if isNotConnected(err) {
			return fail(c, fiber.StatusForbidden, "Gmail account not connected", err.Error())
		}
		return err
	}

	key := cache.Key(uid, p.startRaw, p.endRaw, p.maxResults)
	if hit, err := s.cfg.Cache.Get(ctx, key); err != nil {
		slog.Warn("search cache read failed", "user_id", uid, "error", err)
	} else if hit != nil {
		c.Set("X-Cache", "HIT")
		return c.JSON(searchResponse{Success: true, Message: hit.Message, Data: hit.Receipts})
	}

	res, err := s.cfg.Assembler.SearchAndParse(ctx, s.cfg.Registry, cred, p.start, p.end, p.maxResults)
	if err != nil {
		if isNotConnected(err) {
			return fail(c, fiber.StatusForbidden, "Gmail account not connected", err.Error())
		}
		return err
	}

	if err := s.cfg.Cache.Set(ctx, key, cache.Entry{Message: res.Message(), Receipts: res.Receipts}); err != nil {
		slog.Warn("search cache write failed", "user_id", uid, "error", err)
	}

	c.Set("X-Cache", "MISS")
	return c.JSON(searchResponse{Success: true, Message: res.Message(), Data: res.Receipts})
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "Authentication required", "")
	}

	ref, err := pdflink.ParseReference(c.OriginalURL())
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Missing messageId or attachmentId", "")
	}
	if ref.Filename == "" {
		ref.Filename = "attachment.pdf"
	}

	ctx := c.UserContext()
	cred, err := s.cfg.Credentials.Credential(ctx, uid)
	if err != nil {
		if isNotConnected(err) {
			return fail(c, fiber.StatusForbidden, "Gmail account not connected", err.Error())
		}
		return err
	}

	data, err := s.cfg.Attachments.Attachment(ctx, cred, ref.MessageID, ref.AttachmentID)
	if err != nil {
		slog.Error("attachment download failed",
			"user_id", uid,
			"message_id", ref.MessageID,
			"error", err,
		)
		return fail(c, fiber.StatusInternalServerError, "Failed to download attachment", "")
	}
	if len(data) == 0 {
		return fail(c, fiber.StatusNotFound, "No attachment data found", "")
	}

	c.Set(fiber.HeaderContentType, models.PDFMimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", ref.Filename))
	return c.Send(data)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "Authentication required", "")
	}

	rec, err := s.cfg.Connections.Get(c.UserContext(), uid)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to check Gmail connection status", err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"isConnected": rec != nil && rec.AccessToken != "",
		},
	})
}

func (s *Server) handleUnlink(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "Authentication required", "")
	}

	ctx := c.UserContext()
	if err := s.cfg.Connections.Delete(ctx, uid); err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to unlink Gmail account", err.Error())
	}
	if err := s.cfg.Cache.ForgetUser(ctx, uid); err != nil {
		slog.Warn("search cache invalidation failed", "user_id", uid, "error", err)
	}
	slog.Info("gmail account unlinked", "user_id", uid)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Gmail account unlinked successfully",
	})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	var req exportRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	if len(req.Receipts) == 0 {
		return fail(c, fiber.StatusBadRequest, "No receipts selected", "")
	}

	text, err := export.Render(req.Format, req.Receipts)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid export format", err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/tab-separated-values; charset=utf-8")
	return c.SendString(text)
}
