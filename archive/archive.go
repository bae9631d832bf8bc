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

// Package archive keeps a copy of every order payload sent to SAP B1 in
// object storage (S3, GCS or Azure Blob Storage).
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Store writes one object
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Backend types
const (
	TypeS3        = "s3"
	TypeGCS       = "gcs"
	TypeAzureBlob = "azureblob"
	TypeNone      = "none"
)

// Config selects and configures a backend. Bucket is the container name
// for Azure.
type Config struct {
	Type   string `yaml:"type"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// S3
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// GCS
	CredentialsFile string `yaml:"credentials_file"`

	// Azure
	AccountName      string `yaml:"account_name"`
	AccountKey       string `yaml:"account_key"`
	ConnectionString string `yaml:"connection_string"`
}

// New builds the configured backend. An empty type means "none".
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeNone:
		return Nop{}, nil
	case TypeS3:
		return NewS3Store(ctx, cfg)
	case TypeGCS:
		return NewGCSStore(ctx, cfg)
	case TypeAzureBlob:
		return NewAzureBlobStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported archive type: %q", cfg.Type)
	}
}

// Close releases the client held by a backend, if any
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OrderKey names the archived payload of one order action:
// orders/<fe_order_id>/<action>-<unix nanos>.json
func OrderKey(feOrderID, action string, at time.Time) string {
	id := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(feOrderID)
	if id == "" {
		id = "unknown"
	}
	return path.Join("orders", id, fmt.Sprintf("%s-%d.json", action, at.UnixNano()))
}

// Nop discards everything
type Nop struct{}

// Put does nothing
func (Nop) Put(ctx context.Context, key string, body []byte, contentType string) error {
	return nil
}

func withPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
