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

package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fareledger/receipts/internal/config"
	"github.com/fareledger/receipts/internal/models"
)

// RefreshWindow is how close to expiry a token gets refreshed.
const RefreshWindow = 5 * time.Minute

var (
	// ErrNotConnected means the user has no stored Gmail tokens.
	ErrNotConnected = errors.New("gmail account not connected")
	// ErrNoRefreshToken means the access token is expiring and cannot be renewed.
	ErrNoRefreshToken = errors.New("gmail access token expired and no refresh token is stored")
)

// TokenStore is the persistence the Provider needs.
type TokenStore interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Save(ctx context.Context, r Record) error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuthRefresher refreshes against Google's token endpoint.
type OAuthRefresher struct {
	cfg *oauth2.Config
}

// NewOAuthRefresher builds a refresher for the configured Google client.
func NewOAuthRefresher(g config.GoogleConfig) (*OAuthRefresher, error) {
	if g.ClientID == "" || g.ClientSecret == "" {
		return nil, config.ErrNoGoogleClient
	}
	return &OAuthRefresher{cfg: &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.readonly"},
	}}, nil
}

// Refresh implements Refresher.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tok, err := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh gmail token: %w", err)
	}
	return tok, nil
}

// Provider resolves a user id to a usable Credential.
type Provider struct {
	store     TokenStore
	refresher Refresher
	now       func() time.Time
}

// NewProvider creates a provider. A nil now uses time.Now.
func NewProvider(store TokenStore, refresher Refresher, now func() time.Time) *Provider {
	if now == nil {
		now = time.Now
	}
	return &Provider{store: store, refresher: refresher, now: now}
}

// Credential loads the user's tokens, refreshing and persisting them when
// the access token expires within RefreshWindow.
func (p *Provider) Credential(ctx context.Context, userID string) (models.Credential, error) {
	rec, err := p.store.Get(ctx, userID)
	if err != nil {
		return models.Credential{}, err
	}
	if rec == nil || rec.AccessToken == "" {
		return models.Credential{}, ErrNotConnected
	}

	cred := models.Credential{
		UserID:       rec.UserID,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
	}
	if rec.ExpiresAt != nil {
		cred.Expiry = *rec.ExpiresAt
	}

	if rec.ExpiresAt == nil || rec.ExpiresAt.After(p.now().Add(RefreshWindow)) {
		return cred, nil
	}
	if rec.RefreshToken == "" {
		return models.Credential{}, ErrNoRefreshToken
	}

	tok, err := p.refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return models.Credential{}, err
	}

	updated := Record{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		updated.ExpiresAt = &exp
	}
	if err := p.store.Save(ctx, updated); err != nil {
		return models.Credential{}, err
	}

	slog.Info("refreshed gmail token", "user_id", userID, "expiry", tok.Expiry)

	cred.AccessToken = tok.AccessToken
	cred.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	return cred, nil
}
