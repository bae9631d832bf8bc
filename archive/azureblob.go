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

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureBlobStore archives to an Azure Blob Storage container
type AzureBlobStore struct {
	client    blobUploader
	container string
	prefix    string
}

// NewAzureBlobStore authenticates with, in order of preference, a
// connection string, a shared account key, or DefaultAzureCredential.
func NewAzureBlobStore(cfg Config) (*AzureBlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("azureblob archive requires a container")
	}

	var (
		client *azblob.Client
		err    error
	)

	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountName == "":
		return nil, fmt.Errorf("azureblob archive requires account_name or connection_string")
	case cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err == nil {
			client, err = azblob.NewClientWithSharedKeyCredential(serviceURL(cfg), cred, nil)
		}
	default:
		var cred *azidentity.DefaultAzureCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err == nil {
			client, err = azblob.NewClient(serviceURL(cfg), cred, nil)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureBlobStore{client: client, container: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func serviceURL(cfg Config) string {
	if cfg.Endpoint != "" {
		return cfg.Endpoint
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
}

// Put uploads one blob
func (s *AzureBlobStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.UploadBuffer(ctx, s.container, withPrefix(s.prefix, key), body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s/%s: %w", s.container, key, err)
	}
	return nil
}
