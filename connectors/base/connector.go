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

package base

import (
	"context"
	"time"
)

// Connector is implemented by every backend b1link talks to: the company
// reporting database and the SAP B1 business-object API.
type Connector interface {
	// Lifecycle
	Connect(ctx context.Context, config *ConnectorConfig) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Reads (SQL SELECT, Service Layer GET)
	Query(ctx context.Context, query *Query) (*QueryResult, error)

	// Writes (SQL DML, Service Layer POST/PATCH/DELETE)
	Execute(ctx context.Context, cmd *Command) (*CommandResult, error)

	// Metadata
	Name() string           // Unique connector instance name
	Type() string           // Connector type (mssql, servicelayer)
	Version() string        // Connector version
	Capabilities() []string // List of capabilities (query, execute, sessions)
}

// ConnectorConfig holds the configuration for a connector instance
type ConnectorConfig struct {
	Name          string                 `json:"name" yaml:"name"`                     // Unique name for this connector
	Type          string                 `json:"type" yaml:"type"`                     // Type: mssql, servicelayer
	ConnectionURL string                 `json:"connection_url" yaml:"connection_url"` // DSN or Service Layer base URL
	Credentials   map[string]string      `json:"credentials" yaml:"credentials"`       // Usernames, passwords
	Options       map[string]interface{} `json:"options" yaml:"options"`               // Connector-specific options
	Timeout       time.Duration          `json:"timeout" yaml:"timeout"`               // Operation timeout
	MaxRetries    int                    `json:"max_retries" yaml:"max_retries"`       // Retry count for transient failures
}

// Query represents a read operation
type Query struct {
	Statement  string                 `json:"statement"`  // SQL or Service Layer path
	Parameters map[string]interface{} `json:"parameters"` // Named parameters
	Timeout    time.Duration          `json:"timeout"`    // Override default timeout
	Limit      int                    `json:"limit"`      // Result limit (optional)
}

// QueryResult contains the results of a Query operation
type QueryResult struct {
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	Duration  time.Duration            `json:"duration"`
	Connector string                   `json:"connector"`
	Metadata  map[string]interface{}   `json:"metadata,omitempty"`
}

// Command represents a write operation
type Command struct {
	Action     string                 `json:"action"`     // INSERT/UPDATE for SQL, POST/PATCH/DELETE for HTTP
	Statement  string                 `json:"statement"`  // SQL or Service Layer path
	Parameters map[string]interface{} `json:"parameters"` // Bound parameters or JSON body
	Timeout    time.Duration          `json:"timeout"`
}

// CommandResult contains the results of a Command execution
type CommandResult struct {
	Success      bool                   `json:"success"`
	RowsAffected int                    `json:"rows_affected"`
	Duration     time.Duration          `json:"duration"`
	Message      string                 `json:"message"`
	Connector    string                 `json:"connector"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// HealthStatus represents the health of a connector
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error"`
}

// ConnectorError represents errors specific to connector operations
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}

// TimeoutFor picks the effective timeout for an operation: the per-call
// override, then the connector config, then fallback.
func TimeoutFor(override time.Duration, config *ConnectorConfig, fallback time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if config != nil && config.Timeout > 0 {
		return config.Timeout
	}
	return fallback
}
