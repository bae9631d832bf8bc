// Copyright 2025 b1link
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

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"b1link/archive"
	"b1link/connectors/config"
	"b1link/ledger"
	"b1link/sapb1"
	"b1link/shared/logger"
)

// Config holds the gateway settings. SAP B1 connection settings are read
// separately by config.Load.
type Config struct {
	Port               string
	JWTSecret          string
	RedisURL           string
	RateLimitPerMinute int
	CacheTTL           time.Duration
	LedgerURL          string
	LedgerDialect      string
	AllowedOrigins     []string
	AWSRegion          string
	Archive            archive.Config
}

// LoadConfigFromEnv reads the gateway environment
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisURL:      os.Getenv("REDIS_URL"),
		LedgerURL:     os.Getenv("LEDGER_URL"),
		LedgerDialect: getEnvOrDefault("LEDGER_DIALECT", string(ledger.Postgres)),
		AWSRegion:     os.Getenv("AWS_REGION"),
		CacheTTL:      sapb1.DefaultCacheTTL,
		Archive: archive.Config{
			Type:             getEnvOrDefault("ARCHIVE_TYPE", archive.TypeNone),
			Bucket:           os.Getenv("ARCHIVE_BUCKET"),
			Prefix:           os.Getenv("ARCHIVE_PREFIX"),
			Region:           getEnvOrDefault("ARCHIVE_REGION", os.Getenv("AWS_REGION")),
			Endpoint:         os.Getenv("ARCHIVE_ENDPOINT"),
			AccessKeyID:      os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey:  os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
			CredentialsFile:  os.Getenv("ARCHIVE_CREDENTIALS_FILE"),
			AccountName:      os.Getenv("ARCHIVE_ACCOUNT_NAME"),
			AccountKey:       os.Getenv("ARCHIVE_ACCOUNT_KEY"),
			ConnectionString: os.Getenv("ARCHIVE_CONNECTION_STRING"),
		},
	}

	limit, err := strconv.Atoi(getEnvOrDefault("RATE_LIMIT_PER_MINUTE", "600"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}
	cfg.RateLimitPerMinute = limit

	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}

	if v := os.Getenv("ARCHIVE_FORCE_PATH_STYLE"); v != "" {
		pathStyle, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ARCHIVE_FORCE_PATH_STYLE: %w", err)
		}
		cfg.Archive.ForcePathStyle = pathStyle
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	switch ledger.Dialect(cfg.LedgerDialect) {
	case ledger.Postgres, ledger.MySQL:
	default:
		return nil, fmt.Errorf("invalid LEDGER_DIALECT: %q", cfg.LedgerDialect)
	}

	return cfg, nil
}

// Run is the entry point of the b1gateway binary
func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("[GATEWAY] %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return err
	}

	var secrets config.SecretsManager
	if sm, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{Region: cfg.AWSRegion}); err != nil {
		log.Printf("[GATEWAY] AWS Secrets Manager unavailable: %v", err)
	} else {
		secrets = sm
	}

	settings, err := config.Load(ctx, secrets)
	if err != nil {
		return fmt.Errorf("failed to load SAP B1 settings: %w", err)
	}

	opts := []sapb1.Option{
		sapb1.WithLogger(logger.New("sapb1")),
		sapb1.WithCacheTTL(cfg.CacheTTL),
	}

	var limiter RateLimiter
	if cfg.RedisURL != "" {
		cache, err := sapb1.DialRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()

		opts = append(opts, sapb1.WithCache(cache))
		limiter = NewRedisRateLimiter(cache.Client(), cfg.RateLimitPerMinute)
		log.Printf("[GATEWAY] Redis connected: lookup cache and rate limit (%d/min) enabled", cfg.RateLimitPerMinute)
	} else {
		opts = append(opts, sapb1.WithCache(sapb1.NewMemoryCache()))
	}

	if cfg.LedgerURL != "" {
		store, err := ledger.Open(ctx, ledger.Dialect(cfg.LedgerDialect), cfg.LedgerURL)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, sapb1.WithLedger(store))
	}

	archiveStore, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("failed to create payload archive: %w", err)
	}
	defer func() {
		if err := archive.Close(archiveStore); err != nil {
			log.Printf("[GATEWAY] Failed to close payload archive: %v", err)
		}
	}()
	opts = append(opts, sapb1.WithArchive(archiveStore))

	adaptor := sapb1.New(settings, opts...)

	server := NewServer(adaptor, Options{
		Auth:           NewAuthenticator(cfg.JWTSecret),
		RateLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger.New("gateway"),
	})
	if cfg.JWTSecret == "" {
		log.Println("[GATEWAY] JWT_SECRET not set, API authentication disabled")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[GATEWAY] b1link gateway starting on port %s (company %s)", cfg.Port, settings.CompanyDB)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Println("[GATEWAY] Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[GATEWAY] Shutdown error: %v", err)
	}
	if err := adaptor.Close(shutdownCtx); err != nil {
		log.Printf("[GATEWAY] Failed to close SAP B1 session: %v", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
