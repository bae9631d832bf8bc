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

// Package servicelayer talks to the SAP Business One Service Layer, the
// HTTPS/OData front end of the DI core. It implements base.Connector for
// generic reads and writes, and exposes the handful of typed business
// object operations the order adaptor needs.
package servicelayer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"b1link/connectors/base"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 60 * time.Second
	// DefaultMaxResponseSize is the maximum response body size (10MB)
	DefaultMaxResponseSize = 10 * 1024 * 1024
	// DefaultMaxRetries is the default number of retry attempts for reads
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the initial delay between retries
	DefaultRetryDelay = 200 * time.Millisecond
	// MaxRetryDelay is the maximum delay between retries
	MaxRetryDelay = 5 * time.Second
	// DefaultRequestsPerSecond paces calls against a single session
	DefaultRequestsPerSecond = 10.0
)

// Client implements base.Connector for the SAP B1 Service Layer. One
// Client holds one B1 session; the session cookie lives in the client's
// cookie jar.
type Client struct {
	config     *base.ConnectorConfig
	httpClient *http.Client
	logger     *log.Logger
	limiter    *rate.Limiter

	baseURL   string
	companyDB string
	username  string
	password  string
	language  int

	maxResponseSize int64
	maxRetries      int
	retryDelay      time.Duration

	mu          sync.RWMutex
	sessionID   string
	version     string
	companyName string
}

// NewClient creates a new Service Layer client with default settings
func NewClient() *Client {
	return &Client{
		logger:          log.New(os.Stdout, "[B1_SERVICE_LAYER] ", log.LstdFlags),
		maxResponseSize: DefaultMaxResponseSize,
		maxRetries:      DefaultMaxRetries,
		retryDelay:      DefaultRetryDelay,
		limiter:         rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), int(DefaultRequestsPerSecond)),
	}
}

// Connect validates the configuration, logs in and reads the company name.
//
// Recognised options: base_url (or ConnectionURL), company_db, language,
// allow_private_ips, tls_skip_verify, requests_per_second, retry_delay.
// Credentials: username, password.
func (c *Client) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.config = config

	baseURL := config.ConnectionURL
	if baseURL == "" {
		baseURL, _ = config.Options["base_url"].(string)
	}
	if baseURL == "" {
		return base.NewConnectorError(config.Name, "Connect", "base_url is required", nil)
	}

	opts := base.DefaultURLValidationOptions()
	if allow, ok := config.Options["allow_private_ips"].(bool); ok {
		opts.AllowPrivateIPs = allow
	}
	if err := base.ValidateURL(baseURL, opts); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "invalid base_url", err)
	}
	c.baseURL = strings.TrimSuffix(baseURL, "/")

	c.companyDB, _ = config.Options["company_db"].(string)
	if c.companyDB == "" {
		return base.NewConnectorError(config.Name, "Connect", "company_db is required", nil)
	}

	c.username = config.Credentials["username"]
	c.password = config.Credentials["password"]
	if c.username == "" {
		return base.NewConnectorError(config.Name, "Connect", "username is required", nil)
	}

	langName, _ := config.Options["language"].(string)
	lang, err := LanguageCode(langName)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "invalid language", err)
	}
	c.language = lang

	if config.MaxRetries > 0 {
		c.maxRetries = config.MaxRetries
	}
	if delay, ok := config.Options["retry_delay"].(string); ok {
		if parsed, err := time.ParseDuration(delay); err == nil {
			c.retryDelay = parsed
		}
	}
	if rps, ok := floatOption(config.Options, "requests_per_second"); ok && rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	// Service Layer installs commonly run with a self-signed certificate.
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if skipVerify, ok := config.Options["tls_skip_verify"].(bool); ok && skipVerify {
		tlsConfig.InsecureSkipVerify = true
		c.logger.Printf("WARNING: TLS verification disabled for %s", config.Name)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to create cookie jar", err)
	}

	c.httpClient = &http.Client{
		Timeout: base.TimeoutFor(0, config, DefaultTimeout),
		Jar:     jar,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
			MaxIdleConns:    10,
			MaxConnsPerHost: 5,
			IdleConnTimeout: 90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	if err := c.login(ctx); err != nil {
		c.httpClient = nil
		return base.NewConnectorError(config.Name, "Connect", "login failed", err)
	}

	name, err := c.fetchCompanyName(ctx)
	if err != nil {
		_ = c.Disconnect(ctx)
		return base.NewConnectorError(config.Name, "Connect", "failed to read company info", err)
	}

	c.mu.Lock()
	c.companyName = name
	version := c.version
	c.mu.Unlock()

	c.logger.Printf("Connected to SAP B1 Service Layer: %s (company=%s, db=%s, version=%s)",
		config.Name, name, c.companyDB, version)

	return nil
}

func (c *Client) login(ctx context.Context) error {
	payload := map[string]interface{}{
		"CompanyDB": c.companyDB,
		"UserName":  c.username,
		"Password":  c.password,
	}
	if c.language != 0 {
		payload["Language"] = c.language
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	status, resp, err := c.send(ctx, http.MethodPost, "/Login", body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return parseError(status, resp)
	}

	c.mu.Lock()
	c.sessionID = gjson.GetBytes(resp, "SessionId").String()
	c.version = gjson.GetBytes(resp, "Version").String()
	c.mu.Unlock()

	return nil
}

func (c *Client) fetchCompanyName(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/CompanyService_GetAdminInfo", nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(resp, "CompanyName").String(), nil
}

// Disconnect logs out and releases idle connections
func (c *Client) Disconnect(ctx context.Context) error {
	if c.httpClient == nil {
		return nil
	}

	c.mu.Lock()
	loggedIn := c.sessionID != ""
	c.sessionID = ""
	c.mu.Unlock()

	if loggedIn {
		if status, _, err := c.send(ctx, http.MethodPost, "/Logout", nil); err != nil {
			c.logger.Printf("Warning: logout failed: %v", err)
		} else if status >= 300 {
			c.logger.Printf("Warning: logout returned HTTP %d", status)
		}
	}

	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	c.httpClient = nil

	c.logger.Printf("Disconnected from SAP B1 Service Layer: %s", c.Name())
	return nil
}

// HealthCheck reads the admin info with the current session
func (c *Client) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.httpClient == nil {
		return &base.HealthStatus{
			Healthy:   false,
			Error:     "not logged in",
			Timestamp: time.Now(),
		}, nil
	}

	start := time.Now()
	name, err := c.fetchCompanyName(ctx)
	latency := time.Since(start)

	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}

	c.mu.RLock()
	version := c.version
	c.mu.RUnlock()

	return &base.HealthStatus{
		Healthy: true,
		Latency: latency,
		Details: map[string]string{
			"base_url":     c.baseURL,
			"company_db":   c.companyDB,
			"company_name": name,
			"version":      version,
		},
		Timestamp: time.Now(),
	}, nil
}

// Query GETs an OData path. Parameters become query options ($filter,
// $select, ...). Collections yield one row per element of "value"; a
// single entity yields one row.
func (c *Client) Query(ctx context.Context, query *base.Query) (*base.QueryResult, error) {
	if c.httpClient == nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "not logged in", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, base.TimeoutFor(query.Timeout, c.config, DefaultTimeout))
	defer cancel()

	path := normalizePath(query.Statement)
	params := url.Values{}
	for key, val := range query.Parameters {
		params.Set(key, fmt.Sprintf("%v", val))
	}
	if query.Limit > 0 && params.Get("$top") == "" {
		params.Set("$top", strconv.Itoa(query.Limit))
	}
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + params.Encode()
	}

	start := time.Now()
	resp, err := c.do(queryCtx, http.MethodGet, path, nil)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "request failed", err)
	}
	duration := time.Since(start)

	root := gjson.ParseBytes(resp).Map()
	rows := make([]map[string]interface{}, 0)
	if value, ok := root["value"]; ok && value.IsArray() {
		for _, item := range value.Array() {
			if query.Limit > 0 && len(rows) >= query.Limit {
				break
			}
			if m, ok := item.Value().(map[string]interface{}); ok {
				rows = append(rows, m)
			} else {
				rows = append(rows, map[string]interface{}{"value": item.Value()})
			}
		}
	} else if len(root) > 0 {
		row := make(map[string]interface{}, len(root))
		for k, v := range root {
			if strings.Contains(k, "odata.") {
				continue
			}
			row[k] = v.Value()
		}
		rows = append(rows, row)
	}

	metadata := map[string]interface{}{}
	for _, key := range []string{"odata.nextLink", "@odata.nextLink"} {
		if next, ok := root[key]; ok {
			metadata["next_link"] = next.String()
		}
	}

	c.logger.Printf("GET %s: %d rows, %v", base.SanitizeLogString(query.Statement), len(rows), duration)

	return &base.QueryResult{
		Rows:      rows,
		RowCount:  len(rows),
		Duration:  duration,
		Connector: c.Name(),
		Metadata:  metadata,
	}, nil
}

// Execute sends POST, PATCH or DELETE with Parameters as the JSON body.
// A DocEntry in the response is returned in Metadata.
func (c *Client) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	if c.httpClient == nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "not logged in", nil)
	}

	method := strings.ToUpper(cmd.Action)
	if method == "" {
		method = http.MethodPost
	}
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodDelete:
	default:
		return nil, base.NewConnectorError(c.Name(), "Execute",
			fmt.Sprintf("unsupported HTTP method: %s", method), nil)
	}

	var body []byte
	if len(cmd.Parameters) > 0 {
		var err error
		body, err = json.Marshal(cmd.Parameters)
		if err != nil {
			return nil, base.NewConnectorError(c.Name(), "Execute", "failed to marshal body", err)
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, base.TimeoutFor(cmd.Timeout, c.config, DefaultTimeout))
	defer cancel()

	start := time.Now()
	resp, err := c.do(execCtx, method, normalizePath(cmd.Statement), body)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Execute", "request failed", err)
	}
	duration := time.Since(start)

	metadata := map[string]interface{}{}
	if docEntry := gjson.GetBytes(resp, "DocEntry"); docEntry.Exists() {
		metadata["DocEntry"] = docEntry.Int()
	}

	c.logger.Printf("%s %s: %v", method, base.SanitizeLogString(cmd.Statement), duration)

	return &base.CommandResult{
		Success:      true,
		RowsAffected: 1,
		Duration:     duration,
		Message:      fmt.Sprintf("%s %s executed successfully", method, cmd.Statement),
		Connector:    c.Name(),
		Metadata:     metadata,
	}, nil
}

// Name returns the connector instance name
func (c *Client) Name() string {
	if c.config != nil {
		return c.config.Name
	}
	return "servicelayer"
}

// Type returns the connector type
func (c *Client) Type() string {
	return "servicelayer"
}

// Version returns the connector version
func (c *Client) Version() string {
	return "1.0.0"
}

// Capabilities returns the list of connector capabilities
func (c *Client) Capabilities() []string {
	return []string{
		"query",
		"execute",
		"odata",
		"session-relogin",
		"retry",
		"rate-limit",
	}
}

// do sends a request with the session cookie. A 401 triggers one fresh
// login and a replay. Only GETs are retried on transient failures so that
// document creation is never sent twice.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	maxRetries := 0
	if method == http.MethodGet {
		maxRetries = c.maxRetries
	}

	relogged := false
	for attempt := 0; ; {
		status, resp, err := c.send(ctx, method, path, body)

		if err == nil && status == http.StatusUnauthorized && !relogged {
			relogged = true
			c.logger.Printf("Session expired, logging in again")
			if err := c.login(ctx); err != nil {
				return nil, fmt.Errorf("re-login failed: %w", err)
			}
			continue
		}

		if attempt >= maxRetries || (err == nil && !isRetryableStatusCode(status)) {
			if err != nil {
				return nil, err
			}
			if status < 200 || status >= 300 {
				return nil, parseError(status, resp)
			}
			return resp, nil
		}

		attempt++
		delay := c.calculateBackoff(attempt)
		c.logger.Printf("Retry attempt %d/%d for %s %s after %v", attempt, maxRetries, method, base.SanitizeLogString(path), delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// send performs exactly one HTTP exchange
func (c *Client) send(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "b1link-servicelayer/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > c.maxResponseSize {
		return resp.StatusCode, nil, fmt.Errorf("response size exceeds limit of %d bytes", c.maxResponseSize)
	}

	return resp.StatusCode, data, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	return delay
}

func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func floatOption(options map[string]interface{}, key string) (float64, bool) {
	switch v := options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
