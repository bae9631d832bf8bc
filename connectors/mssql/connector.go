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

// Package mssql provides the SQL Server connector used to read the SAP B1
// company database.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb" // SQL Server driver ("sqlserver")

	"b1link/connectors/base"
)

const (
	// DriverName is the database/sql driver registered by go-mssqldb
	DriverName = "sqlserver"
	// DefaultPort is the default SQL Server port
	DefaultPort = 1433
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 2
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultConnMaxIdleTime is the default maximum idle time for connections
	DefaultConnMaxIdleTime = 5 * time.Minute
	// DefaultTimeout is the default query timeout
	DefaultTimeout = 30 * time.Second
)

// namedParamRegex matches @name and @@name tokens; the latter are server
// variables and are left alone.
var namedParamRegex = regexp.MustCompile(`(@{1,2})(\w+)`)

// MSSQLConnector implements base.Connector for SQL Server. Rows are
// returned as column-name keyed maps.
type MSSQLConnector struct {
	config *base.ConnectorConfig
	db     *sqlx.DB
	logger *log.Logger
}

// NewMSSQLConnector creates a new SQL Server connector instance
func NewMSSQLConnector() *MSSQLConnector {
	return &MSSQLConnector{
		logger: log.New(os.Stdout, "[B1_MSSQL] ", log.LstdFlags),
	}
}

// Connect opens the pool and pings the server
func (c *MSSQLConnector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.config = config

	dsn, err := BuildDSN(config)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to build DSN", err)
	}

	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to open connection", err)
	}

	maxOpenConns := intOption(config.Options, "max_open_conns", DefaultMaxOpenConns)
	maxIdleConns := intOption(config.Options, "max_idle_conns", DefaultMaxIdleConns)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(durationOption(config.Options, "conn_max_lifetime", DefaultConnMaxLifetime))
	db.SetConnMaxIdleTime(durationOption(config.Options, "conn_max_idle_time", DefaultConnMaxIdleTime))

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return base.NewConnectorError(config.Name, "Connect", "failed to ping database", err)
	}

	c.db = db
	c.logger.Printf("Connected to SQL Server: %s (max_open=%d, max_idle=%d)",
		config.Name, maxOpenConns, maxIdleConns)

	return nil
}

// BuildDSN constructs a sqlserver:// URL from the connection URL or from
// the server/port/database options plus credentials.
func BuildDSN(config *base.ConnectorConfig) (string, error) {
	if config.ConnectionURL != "" {
		u, err := url.Parse(config.ConnectionURL)
		if err != nil {
			return "", fmt.Errorf("invalid connection URL: %w", err)
		}
		if u.Scheme != "sqlserver" {
			return "", fmt.Errorf("connection URL must use the sqlserver scheme, got %q", u.Scheme)
		}
		if u.User == nil && config.Credentials["username"] != "" {
			u.User = url.UserPassword(config.Credentials["username"], config.Credentials["password"])
		}
		return u.String(), nil
	}

	server, _ := config.Options["server"].(string)
	database, _ := config.Options["database"].(string)
	if server == "" {
		return "", fmt.Errorf("server is required")
	}
	if database == "" {
		return "", fmt.Errorf("database name is required")
	}

	// SAP B1 installs often use named instances: HOST\INSTANCE
	host, instance, _ := strings.Cut(server, `\`)
	port := intOption(config.Options, "port", DefaultPort)

	u := &url.URL{Scheme: "sqlserver"}
	if username := config.Credentials["username"]; username != "" {
		u.User = url.UserPassword(username, config.Credentials["password"])
	}
	if instance != "" {
		u.Host = host
		u.Path = instance
	} else {
		u.Host = fmt.Sprintf("%s:%d", host, port)
	}

	params := url.Values{}
	params.Set("database", database)
	params.Set("app name", "b1link")
	if encrypt, ok := config.Options["encrypt"].(string); ok {
		params.Set("encrypt", encrypt)
	}
	if trust, ok := config.Options["trust_server_certificate"].(bool); ok {
		params.Set("TrustServerCertificate", strconv.FormatBool(trust))
	}
	u.RawQuery = params.Encode()

	return u.String(), nil
}

// Disconnect closes the database connection pool
func (c *MSSQLConnector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}

	if err := c.db.Close(); err != nil {
		return base.NewConnectorError(c.Name(), "Disconnect", "failed to close connection", err)
	}
	c.db = nil

	c.logger.Printf("Disconnected from SQL Server: %s", c.Name())
	return nil
}

// HealthCheck verifies the database connection is healthy
func (c *MSSQLConnector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.db == nil {
		return &base.HealthStatus{
			Healthy:   false,
			Error:     "database not connected",
			Timestamp: time.Now(),
		}, nil
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}

	stats := c.db.Stats()

	var version string
	_ = c.db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version)
	if i := strings.IndexByte(version, '\n'); i > 0 {
		version = strings.TrimSpace(version[:i])
	}

	return &base.HealthStatus{
		Healthy: true,
		Latency: latency,
		Details: map[string]string{
			"open_connections": strconv.Itoa(stats.OpenConnections),
			"in_use":           strconv.Itoa(stats.InUse),
			"idle":             strconv.Itoa(stats.Idle),
			"wait_count":       strconv.FormatInt(stats.WaitCount, 10),
			"server_version":   version,
		},
		Timestamp: time.Now(),
	}, nil
}

// Query executes a SELECT and returns each row as a column-keyed map
func (c *MSSQLConnector) Query(ctx context.Context, query *base.Query) (*base.QueryResult, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "database not connected", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, base.TimeoutFor(query.Timeout, c.config, DefaultTimeout))
	defer cancel()

	args, err := buildArgs(query.Statement, query.Parameters)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "failed to build query parameters", err)
	}

	start := time.Now()
	rows, err := c.db.QueryxContext(queryCtx, query.Statement, args...)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		if query.Limit > 0 && len(results) >= query.Limit {
			break
		}

		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, base.NewConnectorError(c.Name(), "Query", "failed to scan row", err)
		}
		for k, v := range row {
			row[k] = convertValue(v)
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "error during row iteration", err)
	}

	duration := time.Since(start)
	c.logger.Printf("Query executed: %d rows in %v", len(results), duration)

	return &base.QueryResult{
		Rows:      results,
		RowCount:  len(results),
		Duration:  duration,
		Connector: c.Name(),
	}, nil
}

// Execute runs INSERT, UPDATE or DELETE statements
func (c *MSSQLConnector) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "database not connected", nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, base.TimeoutFor(cmd.Timeout, c.config, DefaultTimeout))
	defer cancel()

	args, err := buildArgs(cmd.Statement, cmd.Parameters)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "failed to build command parameters", err)
	}

	start := time.Now()
	result, err := c.db.ExecContext(execCtx, cmd.Statement, args...)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "command execution failed", err)
	}
	duration := time.Since(start)

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Printf("Warning: Could not get rows affected: %v", err)
		rowsAffected = 0
	}

	c.logger.Printf("Command executed: %d rows affected in %v", rowsAffected, duration)

	return &base.CommandResult{
		Success:      true,
		RowsAffected: int(rowsAffected),
		Duration:     duration,
		Message:      fmt.Sprintf("%s executed successfully", cmd.Action),
		Connector:    c.Name(),
	}, nil
}

// Name returns the connector name
func (c *MSSQLConnector) Name() string {
	if c.config == nil {
		return "mssql"
	}
	return c.config.Name
}

// Type returns the connector type
func (c *MSSQLConnector) Type() string {
	return "mssql"
}

// Version returns the connector version
func (c *MSSQLConnector) Version() string {
	return "1.0.0"
}

// Capabilities returns the list of supported capabilities
func (c *MSSQLConnector) Capabilities() []string {
	return []string{
		"query",
		"execute",
		"named_parameters",
		"connection_pooling",
	}
}

// buildArgs binds every @name placeholder in the statement to the value of
// the same key in params. Each name is bound once even if it appears
// several times.
func buildArgs(statement string, params map[string]interface{}) ([]interface{}, error) {
	matches := namedParamRegex.FindAllStringSubmatch(statement, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(matches))
	args := make([]interface{}, 0, len(matches))
	for _, match := range matches {
		if match[1] == "@@" {
			continue
		}
		name := match[2]
		if seen[name] {
			continue
		}
		val, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("missing parameter: %s", name)
		}
		seen[name] = true
		args = append(args, sql.Named(name, val))
	}

	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}

// convertValue turns driver byte slices (DECIMAL, NUMERIC, MONEY and
// legacy text types) into strings; everything else is passed through.
func convertValue(val interface{}) interface{} {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

func intOption(options map[string]interface{}, key string, def int) int {
	switch v := options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func durationOption(options map[string]interface{}, key string, def time.Duration) time.Duration {
	switch v := options[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case time.Duration:
		return v
	}
	return def
}
