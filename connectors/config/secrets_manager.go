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

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManager resolves a secret reference to a set of key/value pairs
type SecretsManager interface {
	GetSecret(ctx context.Context, secretARN string) (map[string]string, error)
}

// secretsAPI is the part of the Secrets Manager client we call
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager
type AWSSecretsManager struct {
	client secretsAPI
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

type secretCacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client using the
// default credential chain.
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSSecretsManager(secretsmanager.NewFromConfig(cfg), opts), nil
}

func newAWSSecretsManager(client secretsAPI, opts AWSSecretsManagerOptions) *AWSSecretsManager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[SECRETS_MANAGER] ", log.LstdFlags)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSSecretsManager{
		client: client,
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		logger: logger,
	}
}

// GetSecret retrieves a secret. The value is expected to be a JSON object
// with string values; anything else is returned under the key "value".
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	s.mu.RLock()
	entry, exists := s.cache[secretARN]
	s.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	s.logger.Printf("Fetching secret %s from AWS Secrets Manager", maskARN(secretARN))

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &values); err != nil {
		values = map[string]string{"value": *result.SecretString}
	}

	s.mu.Lock()
	s.cache[secretARN] = &secretCacheEntry{
		value:     values,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return values, nil
}

// InvalidateSecret removes a secret from the cache
func (s *AWSSecretsManager) InvalidateSecret(secretARN string) {
	s.mu.Lock()
	delete(s.cache, secretARN)
	s.mu.Unlock()
}

// maskARN shows only the last 8 characters of an ARN
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}

// LocalSecretsManager keeps secrets in memory, for development and tests
type LocalSecretsManager struct {
	secrets map[string]map[string]string
	mu      sync.RWMutex
}

// NewLocalSecretsManager creates an empty in-memory secrets manager
func NewLocalSecretsManager() *LocalSecretsManager {
	return &LocalSecretsManager{secrets: make(map[string]map[string]string)}
}

// GetSecret retrieves a secret from memory
func (s *LocalSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret, exists := s.secrets[secretARN]; exists {
		return secret, nil
	}
	return nil, fmt.Errorf("secret %s not found in local secrets manager", maskARN(secretARN))
}

// SetSecret stores a secret in memory
func (s *LocalSecretsManager) SetSecret(secretARN string, value map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secretARN] = value
}
