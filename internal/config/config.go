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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fareledger/receipts/internal/query"
)

// ErrNoGoogleClient is returned when the Google OAuth client is not configured.
var ErrNoGoogleClient = errors.New("google oauth client id and secret are required")

// GoogleConfig holds the OAuth client used to refresh Gmail tokens.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// VendorConfig overrides the built-in settings of one receipt vendor.
// Nil and empty fields keep the built-in value.
type VendorConfig struct {
	Enabled     *bool    `yaml:"enabled"`
	DisplayName string   `yaml:"display_name"`
	Senders     []string `yaml:"senders"`
	Subjects    []string `yaml:"subjects"`
	Combine     string   `yaml:"combine"` // "AND" or "OR"
	Strict      *bool    `yaml:"strict"`
	Currency    string   `yaml:"currency"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Caller bool   `yaml:"caller"`
}

// Config holds all configuration for the receipts service.
type Config struct {
	Google GoogleConfig

	// Postgres (gmail credentials)
	DatabaseURL string

	// Redis
	RedisURL      string
	ReceiptsQueue string
	CacheTTL      time.Duration

	// HTTP server
	Port         int
	DownloadPath string

	// Gmail
	ViewerURL  string
	MaxResults int
	FetchRate  float64 // message fetches per second
	FetchBurst int

	// Number of vendors searched at once
	Concurrency int

	Logging LoggingConfig

	// Keyed by vendor id ("uber", "rapido")
	Vendors map[string]VendorConfig
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Google   GoogleConfig `yaml:"google"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Receipts string `yaml:"receipts"`
		} `yaml:"queues"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Server struct {
		Port         int    `yaml:"port"`
		DownloadPath string `yaml:"download_path"`
	} `yaml:"server"`
	Mail struct {
		ViewerURL  string  `yaml:"viewer_url"`
		MaxResults int     `yaml:"max_results"`
		FetchRate  float64 `yaml:"fetch_rate"`
		FetchBurst int     `yaml:"fetch_burst"`
	} `yaml:"mail"`
	Assembly struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"assembly"`
	Logging LoggingConfig           `yaml:"logging"`
	Vendors map[string]VendorConfig `yaml:"vendors"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes. ${VAR} references are expanded and
// unset values fall back to environment variables, then to defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cacheTTL := envOrDefaultDuration("CACHE_TTL", 10*time.Minute)
	if raw.Redis.CacheTTL != "" {
		d, err := time.ParseDuration(raw.Redis.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("parse redis.cache_ttl: %w", err)
		}
		cacheTTL = d
	}

	cfg := &Config{
		Google: GoogleConfig{
			ClientID:     firstNonEmpty(raw.Google.ClientID, os.Getenv("GOOGLE_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.Google.ClientSecret, os.Getenv("GOOGLE_CLIENT_SECRET")),
			RedirectURL:  firstNonEmpty(raw.Google.RedirectURL, os.Getenv("GOOGLE_REDIRECT_URL")),
		},
		DatabaseURL:   firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/receipts")),
		RedisURL:      firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		ReceiptsQueue: firstNonEmpty(raw.Redis.Queues.Receipts, envOrDefault("RECEIPTS_QUEUE", "receipts")),
		CacheTTL:      cacheTTL,
		Port:          firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		DownloadPath:  firstNonEmpty(raw.Server.DownloadPath, envOrDefault("DOWNLOAD_PATH", "/api/attachments/download")),
		ViewerURL:     firstNonEmpty(raw.Mail.ViewerURL, envOrDefault("MAIL_VIEWER_URL", "https://mail.google.com/mail/u/0/#inbox/")),
		MaxResults:    firstPositive(raw.Mail.MaxResults, envOrDefaultInt("MAIL_MAX_RESULTS", 100)),
		FetchRate:     raw.Mail.FetchRate,
		FetchBurst:    firstPositive(raw.Mail.FetchBurst, envOrDefaultInt("MAIL_FETCH_BURST", 5)),
		Concurrency:   firstPositive(raw.Assembly.Concurrency, envOrDefaultInt("ASSEMBLY_CONCURRENCY", 1)),
		Logging: LoggingConfig{
			Level:  firstNonEmpty(raw.Logging.Level, envOrDefault("LOG_LEVEL", "info")),
			Format: firstNonEmpty(raw.Logging.Format, envOrDefault("LOG_FORMAT", "json")),
			Caller: raw.Logging.Caller,
		},
		Vendors: raw.Vendors,
	}
	if cfg.FetchRate <= 0 {
		cfg.FetchRate = envOrDefaultFloat("MAIL_FETCH_RATE", 10)
	}
	if cfg.Vendors == nil {
		cfg.Vendors = map[string]VendorConfig{}
	}

	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		return nil, ErrNoGoogleClient
	}

	for id, v := range cfg.Vendors {
		if v.Combine == "" {
			continue
		}
		if _, err := query.ParseOperator(v.Combine); err != nil {
			return nil, fmt.Errorf("vendors.%s.combine: %w", id, err)
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
