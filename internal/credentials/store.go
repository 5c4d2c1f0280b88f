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

// Package credentials persists per-user Gmail OAuth tokens in Postgres and
// hands out access tokens that are fresh enough to search a mailbox.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Record is one user's stored Gmail connection.
type Record struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for gmail_credentials rows.
type Store struct {
	db DB
}

// NewStore creates a credential store and ensures its table exists.
func NewStore(ctx context.Context, db DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure credential schema: %w", err)
	}
	slog.Info("credential store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gmail_credentials (
			user_id       TEXT PRIMARY KEY,
			access_token  TEXT NOT NULL,
			refresh_token TEXT DEFAULT '',
			expires_at    TIMESTAMPTZ,
			created_at    TIMESTAMPTZ DEFAULT NOW(),
			updated_at    TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_gmail_credentials_expires ON gmail_credentials(expires_at);
	`)
	return err
}

// Get returns the record for userID, or nil when the user never connected.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM gmail_credentials
		WHERE user_id = $1
	`, userID)

	var r Record
	err := row.Scan(&r.UserID, &r.AccessToken, &r.RefreshToken, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential for %s: %w", userID, err)
	}
	return &r, nil
}

// Save inserts or replaces the tokens for r.UserID. An empty refresh token
// keeps the stored one; Google only returns it on first consent.
func (s *Store) Save(ctx context.Context, r Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO gmail_credentials (user_id, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), gmail_credentials.refresh_token),
			expires_at    = EXCLUDED.expires_at,
			updated_at    = NOW()
	`, r.UserID, r.AccessToken, r.RefreshToken, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save credential for %s: %w", r.UserID, err)
	}
	return nil
}

// Delete removes a user's connection. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM gmail_credentials WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete credential for %s: %w", userID, err)
	}
	return nil
}

// ListUsers returns every connected user id, sorted.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM gmail_credentials ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list credential users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
