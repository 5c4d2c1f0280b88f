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

// Package gmail searches a user's mailbox and fetches full messages and
// attachments through the Gmail API.
package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/fareledger/receipts/internal/models"
	"github.com/fareledger/receipts/internal/query"
)

const (
	me                = "me"
	defaultMaxResults = 100
)

// Client talks to the Gmail API on behalf of the credential passed to each
// call. Message fetches are throttled by a shared limiter.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the Gmail API base URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient sets the transport the OAuth client wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Gmail client allowing fetchRate message fetches per
// second with the given burst. A non-positive rate disables throttling.
func NewClient(fetchRate float64, burst int, opts ...Option) *Client {
	limit := rate.Inf
	if fetchRate > 0 {
		limit = rate.Limit(fetchRate)
	}
	if burst < 1 {
		burst = 1
	}
	c := &Client{limiter: rate.NewLimiter(limit, burst)}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) service(ctx context.Context, cred models.Credential) (*gm.Service, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// Search lists messages matching params.Query within the date range and
// fetches each one in full. Messages that fail to fetch are skipped.
func (c *Client) Search(ctx context.Context, cred models.Credential, params models.SearchParams) (*models.SearchResult, error) {
	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	q := query.WithDateRange(params.Query, params.Start, params.End)

	list, err := svc.Users.Messages.List(me).Q(q).MaxResults(int64(maxResults)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	result := &models.SearchResult{
		Messages:           make([]models.RawMessage, 0, len(list.Messages)),
		NextPageToken:      list.NextPageToken,
		ResultSizeEstimate: list.ResultSizeEstimate,
	}

	for _, ref := range list.Messages {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting to fetch message: %w", err)
		}

		msg, err := svc.Users.Messages.Get(me, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			slog.Warn("failed to fetch message",
				"user_id", cred.UserID,
				"message_id", ref.Id,
				"error", err,
			)
			continue
		}
		result.Messages = append(result.Messages, toRawMessage(msg))
	}

	slog.Debug("gmail search complete",
		"user_id", cred.UserID,
		"listed", len(list.Messages),
		"fetched", len(result.Messages),
	)
	return result, nil
}

// Attachment downloads the bytes of one attachment.
func (c *Client) Attachment(ctx context.Context, cred models.Credential, messageID, attachmentID string) ([]byte, error) {
	svc, err := c.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	body, err := svc.Users.Messages.Attachments.Get(me, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get attachment %s of message %s: %w", attachmentID, messageID, err)
	}

	data, err := decodeData(body.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}
