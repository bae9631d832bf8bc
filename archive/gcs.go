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

package archive

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type objectWriterFunc func(ctx context.Context, bucket, key, contentType string) io.WriteCloser

// GCSStore archives to a Google Cloud Storage bucket
type GCSStore struct {
	client    *storage.Client
	newWriter objectWriterFunc
	bucket    string
	prefix    string
}

// NewGCSStore creates a GCS client from a credentials file or the
// application default credentials. Endpoint points at an emulator.
func NewGCSStore(ctx context.Context, cfg Config) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs archive requires a bucket")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		newWriter: func(ctx context.Context, bucket, key, contentType string) io.WriteCloser {
			w := client.Bucket(bucket).Object(key).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Put uploads one object. The upload is committed by Close; cancelling
// the writer's context before Close discards it.
func (s *GCSStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.newWriter(ctx, s.bucket, withPrefix(s.prefix, key), contentType)
	if _, err := w.Write(body); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Close releases the client
func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
