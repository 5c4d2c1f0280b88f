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

// Package cache keeps recent receipt search responses in Redis so repeated
// searches over the same window do not hit Gmail again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fareledger/receipts/internal/models"
)

const keyPrefix = "receipts:search:"

// KV is the subset of *redis.Client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Entry is one cached search response.
type Entry struct {
	Message  string           `json:"message"`
	Receipts []models.Receipt `json:"receipts"`
}

// ResultCache stores Entries with a fixed TTL. A non-positive TTL disables it.
type ResultCache struct {
	rdb KV
	ttl time.Duration
}

// New creates a result cache.
func New(rdb KV, ttl time.Duration) *ResultCache {
	return &ResultCache{rdb: rdb, ttl: ttl}
}

// Key identifies a search by user, date window and result limit.
func Key(userID, start, end string, maxResults int) string {
	return fmt.Sprintf("%s%s:%s:%d", userPrefix(userID), start, end, maxResults)
}

func userPrefix(userID string) string {
	return keyPrefix + userID + ":"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// Enabled reports whether the cache stores anything.
func (c *ResultCache) Enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Get returns the cached entry, or nil on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*Entry, error) {
	if !c.Enabled() {
		return nil, nil
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache GET: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode cached entry: %w", err)
	}
	return &e, nil
}

// Set stores e under key.
func (c *ResultCache) Set(ctx context.Context, key string, e Entry) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache SET: %w", err)
	}
	return nil
}

// ForgetUser drops every cached search of userID.
func (c *ResultCache) ForgetUser(ctx context.Context, userID string) error {
	if !c.Enabled() {
		return nil
	}

	match := globEscaper.Replace(userPrefix(userID)) + "*"
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("cache SCAN: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache DEL: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
