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

// Package queue publishes extracted receipts to a Redis list for downstream
// expense tooling.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fareledger/receipts/internal/models"
)

// EventType names the receipt event payload.
const EventType = "receipt.extracted"

// Redis is the subset of *redis.Client the publisher uses.
type Redis interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// ReceiptEvent is one queued receipt.
type ReceiptEvent struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	UserID      string         `json:"user_id"`
	Receipt     models.Receipt `json:"receipt"`
	PublishedAt time.Time      `json:"published_at"`
}

// Publisher pushes receipt events to a Redis list.
type Publisher struct {
	rdb       Redis
	queueName string
	now       func() time.Time
}

// NewPublisher creates a publisher targeting queueName.
func NewPublisher(rdb Redis, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		now:       time.Now,
	}
}

// PublishReceipt wraps r in a ReceiptEvent and LPUSHes it. Consumers BRPOP
// the same list.
func (p *Publisher) PublishReceipt(ctx context.Context, userID string, r models.Receipt) error {
	event := ReceiptEvent{
		ID:          uuid.New().String(),
		Type:        EventType,
		UserID:      userID,
		Receipt:     r,
		PublishedAt: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal receipt event: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(data)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published receipt to queue",
		"event_id", event.ID,
		"user_id", userID,
		"receipt_id", r.ID,
		"service", r.Service,
		"queue", p.queueName,
	)
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
