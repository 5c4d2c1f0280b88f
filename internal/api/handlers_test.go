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
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fareledger/receipts/internal/assemble"
	"github.com/fareledger/receipts/internal/cache"
	"github.com/fareledger/receipts/internal/credentials"
	"github.com/fareledger/receipts/internal/metrics"
	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/service"
)

type fakeCreds struct {
	err error
}

func (f fakeCreds) Credential(_ context.Context, userID string) (models.Credential, error) {
	if f.err != nil {
		return models.Credential{}, f.err
	}
	return models.Credential{UserID: userID, AccessToken: "tok"}, nil
}

// linkedCreds resolves credentials from the connection records, so unlinking
// a user disconnects them.
type linkedCreds struct {
	conns *fakeConnections
}

func (l *linkedCreds) Credential(_ context.Context, userID string) (models.Credential, error) {
	rec, ok := l.conns.records[userID]
	if !ok {
		return models.Credential{}, credentials.ErrNotConnected
	}
	return models.Credential{UserID: userID, AccessToken: rec.AccessToken}, nil
}

type fakeConnections struct {
	records map[string]*credentials.Record
	deleted []string
}

func (f *fakeConnections) Get(_ context.Context, userID string) (*credentials.Record, error) {
	return f.records[userID], nil
}

func (f *fakeConnections) Delete(_ context.Context, userID string) error {
	f.deleted = append(f.deleted, userID)
	delete(f.records, userID)
	return nil
}

type fakeAttachments struct {
	data []byte
	err  error
	got  [2]string
}

func (f *fakeAttachments) Attachment(_ context.Context, _ models.Credential, messageID, attachmentID string) ([]byte, error) {
	f.got = [2]string{messageID, attachmentID}
	return f.data, f.err
}

// stubVendor returns one receipt per search and counts searches.
type stubVendor struct {
	searches int
	maxSeen  int
}

func (s *stubVendor) Name() string { return "Uber" }

func (s *stubVendor) Search(_ context.Context, _ models.Credential, _, _ time.Time, maxResults int) (*models.SearchResult, error) {
	s.searches++
	s.maxSeen = maxResults
	return &models.SearchResult{Messages: []models.RawMessage{{ID: "m1"}}}, nil
}

func (s *stubVendor) Parse(msgs []models.RawMessage) []models.ParseOutcome {
	return []models.ParseOutcome{{
		Success: true,
		Receipt: models.ParsedReceipt{ID: "trip-1", EmailID: msgs[0].ID, Date: "2024-05-01", Amount: 12.5, Currency: "USD", Location: "A to B", Service: "Uber"},
	}}
}

type memKV struct{ data map[string]string }

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (m *memKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *memKV) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	var keys []string
	for k := range m.data {
		if ok, _ := path.Match(match, k); ok {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

type fixture struct {
	app         *fiber.App
	vendor      *stubVendor
	connections *fakeConnections
	attachments *fakeAttachments
}

func newFixture(t *testing.T, creds CredentialSource, c *cache.ResultCache) *fixture {
	t.Helper()

	v := &stubVendor{}
	reg := service.NewRegistry()
	reg.Register("uber", v)

	promReg := prometheus.NewRegistry()
	conns := &fakeConnections{records: map[string]*credentials.Record{
		"alice": {UserID: "alice", AccessToken: "tok"},
	}}
	atts := &fakeAttachments{data: []byte("%PDF-1.4")}

	srv := New(Config{
		Assembler:    &assemble.Assembler{Metrics: metrics.New(promReg)},
		Registry:     reg,
		Credentials:  creds,
		Connections:  conns,
		Attachments:  atts,
		Cache:        c,
		Gatherer:     promReg,
		HealthChecks: []HealthCheck{{Name: "redis", Ping: func(context.Context) error { return nil }}},
	})
	return &fixture{app: srv.App(), vendor: v, connections: conns, attachments: atts}
}

func do(t *testing.T, app *fiber.App, method, target, user, body string) (int, string, map[string]string) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, string(data), headers
}

func TestSearch_Success(t *testing.T) {
	f := newFixture(t, fakeCreds{}, nil)

	status, body, _ := do(t, f.app, "GET", "/api/receipts/search?startDate=2024-05-01&endDate=2024-05-31&maxResults=20", "alice", "")
	require.Equal(t, fiber.StatusOK, status, body)

	var resp searchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Found 1 receipts from 1 services", resp.Message)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "trip-1", resp.Data[0].ID)
	assert.Equal(t, 20, f.vendor.maxSeen)
}

func TestSearch_DefaultMaxResults(t *testing.T) {
	f := newFixture(t, fakeCreds{}, nil)

	status, _, _ := do(t, f.app, "GET", "/api/receipts/search?startDate=2024-05-01&endDate=2024-05-31", "alice", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 50, f.vendor.maxSeen)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		creds  CredentialSource
		user   string
		query  string
		status int
		errMsg string
	}{
		{"missing user", fakeCreds{}, "", "startDate=2024-05-01&endDate=2024-05-31", fiber.StatusUnauthorized, "Authentication required"},
		{"bad start", fakeCreds{}, "alice", "startDate=05/01/2024&endDate=2024-05-31", fiber.StatusBadRequest, "Invalid parameters"},
		{"missing end", fakeCreds{}, "alice", "startDate=2024-05-01", fiber.StatusBadRequest, "Invalid parameters"},
		{"impossible date", fakeCreds{}, "alice", "startDate=2024-02-31&endDate=2024-05-31", fiber.StatusBadRequest, "Invalid parameters"},
		{"reversed range", fakeCreds{}, "alice", "startDate=2024-06-01&endDate=2024-05-31", fiber.StatusBadRequest, "Invalid parameters"},
		{"bad max", fakeCreds{}, "alice", "startDate=2024-05-01&endDate=2024-05-31&maxResults=abc", fiber.StatusBadRequest, "Invalid parameters"},
		{"max too large", fakeCreds{}, "alice", "startDate=2024-05-01&endDate=2024-05-31&maxResults=501", fiber.StatusBadRequest, "Invalid parameters"},
		{"not connected", fakeCreds{err: credentials.ErrNotConnected}, "bob", "startDate=2024-05-01&endDate=2024-05-31", fiber.StatusForbidden, "Gmail account not connected"},
		{"no refresh token", fakeCreds{err: credentials.ErrNoRefreshToken}, "bob", "startDate=2024-05-01&endDate=2024-05-31", fiber.StatusForbidden, "Gmail account not connected"},
		{"store down", fakeCreds{err: errors.New("conn refused")}, "bob", "startDate=2024-05-01&endDate=2024-05-31", fiber.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.creds, nil)
			status, body, _ := do(t, f.app, "GET", "/api/receipts/search?"+tt.query, tt.user, "")
			assert.Equal(t, tt.status, status, body)

			var resp errorBody
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.errMsg, resp.Error)
			assert.Equal(t, 0, f.vendor.searches)
		})
	}
}

func TestSearch_Cached(t *testing.T) {
	kv := &memKV{data: map[string]string{}}
	f := newFixture(t, fakeCreds{}, cache.New(kv, time.Minute))
	target := "/api/receipts/search?startDate=2024-05-01&endDate=2024-05-31"

	status, first, h1 := do(t, f.app, "GET", target, "alice", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "MISS", h1["X-Cache"])

	status, second, h2 := do(t, f.app, "GET", target, "alice", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "HIT", h2["X-Cache"])
	assert.JSONEq(t, first, second)
	assert.Equal(t, 1, f.vendor.searches)

	// A different user does not share the entry.
	do(t, f.app, "GET", target, "carol", "")
	assert.Equal(t, 2, f.vendor.searches)
}

func TestSearch_UnlinkDropsCachedResults(t *testing.T) {
	kv := &memKV{data: map[string]string{}}
	creds := &linkedCreds{}
	f := newFixture(t, creds, cache.New(kv, time.Minute))
	creds.conns = f.connections
	f.connections.records["carol"] = &credentials.Record{UserID: "carol", AccessToken: "tok"}
	target := "/api/receipts/search?startDate=2024-05-01&endDate=2024-05-31"

	status, _, h := do(t, f.app, "GET", target, "alice", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "MISS", h["X-Cache"])
	status, _, _ = do(t, f.app, "GET", target, "carol", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, kv.data, 2)

	status, _, _ = do(t, f.app, "DELETE", "/api/auth/gmail", "alice", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, kv.data, cache.Key("alice", "2024-05-01", "2024-05-31", 50))
	assert.Contains(t, kv.data, cache.Key("carol", "2024-05-01", "2024-05-31", 50))

	status, body, _ := do(t, f.app, "GET", target, "alice", "")
	assert.Equal(t, fiber.StatusForbidden, status, body)
	var resp errorBody
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "Gmail account not connected", resp.Error)

	status, _, h = do(t, f.app, "GET", target, "carol", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "HIT", h["X-Cache"])
	assert.Equal(t, 2, f.vendor.searches)
}

func TestSearch_CachedEntryNeedsConnection(t *testing.T) {
	kv := &memKV{data: map[string]string{}}
	entry, err := json.Marshal(cache.Entry{Message: "Found 0 receipts from 0 services"})
	require.NoError(t, err)
	kv.data[cache.Key("bob", "2024-05-01", "2024-05-31", 50)] = string(entry)

	f := newFixture(t, fakeCreds{err: credentials.ErrNotConnected}, cache.New(kv, time.Minute))
	status, body, _ := do(t, f.app, "GET", "/api/receipts/search?startDate=2024-05-01&endDate=2024-05-31", "bob", "")
	assert.Equal(t, fiber.StatusForbidden, status, body)
}

func TestDownload(t *testing.T) {
	f := newFixture(t, fakeCreds{}, nil)

	status, body, headers := do(t, f.app, "GET", "/api/attachments/download?messageId=M1&attachmentId=A1&filename=trip.pdf", "alice", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "%PDF-1.4", body)
	assert.Equal(t, "application/pdf", headers["Content-Type"])
	assert.Equal(t, `attachment; filename="trip.pdf"`, headers["Content-Disposition"])
	assert.Equal(t, [2]string{"M1", "A1"}, f.attachments.got)
}

func TestDownload_Errors(t *testing.T) {
	f := newFixture(t, fakeCreds{}, nil)

	status, _, _ := do(t, f.app, "GET", "/api/attachments/download?messageId=M1", "alice", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = do(t, f.app, "GET", "/api/attachments/download?messageId=M1&attachmentId=A1", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	f.attachments.data = nil
	status, _, _ = do(t, f.app, "GET", "/api/attachments/download?messageId=M1&attachmentId=A1", "alice", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	f.attachments.err = errors.New("gmail 500")
	status, _, _ = do(t, f.app, "GET", "/api/attachments/download?messageId=M1&attachmentId=A1", "alice", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestGmailStatusAndUnlink(t *testing.T) {
	f := newFixture(t, fakeCreds{}, nil)

	_, body, _ := do(t, f.app, "GET", "/api/auth/gmail/status", "alice", "")
	assert.JSONEq(t, `{"success":true,"data":{"isConnected":true}}`, body)

	status, body, _ := do(t, f.app, "DELETE", "/api/auth/gmail", "alice", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"success":true,"message":"Gmail account unlinked successfully"}`, body)
	assert.Equal(t, []string{"alice"}, f.connections.deleted)

	_, body, _ = do(t, f.app, "GET", "/api/auth/gmail/status", "alice", "")
	assert.JSONEq(t, `{"success":true,"data":{"isConnected":false}}`, body)

	status, _, _ = do(t, f.app, "GET", "/api/auth/gmail/status", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestExport(t *testing.T) {
	f := newFixture(t, fakeCreds{}, nil)

	status, body, headers := do(t, f.app, "POST", "/api/receipts/export", "",
		`{"receipts":[{"id":"a","date":"2024-03-02","amount":10,"pickupTime":"8:00 AM","location":"x","service":"Uber"}]}`)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Date\tAmount\n3/1/2024\t10\n\nTOTAL\t10", body)
	assert.Contains(t, headers["Content-Type"], "text/tab-separated-values")

	status, _, _ = do(t, f.app, "POST", "/api/receipts/export", "", `{"receipts":[]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = do(t, f.app, "POST", "/api/receipts/export", "", `{"format":"xlsx","receipts":[{"id":"a","date":"2024-03-02","amount":1}]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, fakeCreds{}, nil)

	status, body, _ := do(t, f.app, "GET", "/health", "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy","services":["uber"]}`, body)

	// Populate a series, then scrape.
	do(t, f.app, "GET", "/api/receipts/search?startDate=2024-05-01&endDate=2024-05-31", "alice", "")
	status, body, _ = do(t, f.app, "GET", "/metrics", "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "receipts_parser_outcomes_total")
}

func TestHealth_Unhealthy(t *testing.T) {
	srv := New(Config{HealthChecks: []HealthCheck{
		{Name: "postgres", Ping: func(context.Context) error { return errors.New("down") }},
	}})

	status, body, _ := do(t, srv.App(), "GET", "/health", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, body, "postgres unhealthy")
}
