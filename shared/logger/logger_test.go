// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse JSON log: %v\nOutput: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		instanceID     string
		expectedInstID string
	}{
		{"with instance ID set", "b1link-1", "b1link-1"},
		{"without instance ID", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INSTANCE_ID", tt.instanceID)

			logger := New("gateway")
			if logger.Component != "gateway" {
				t.Errorf("Expected component gateway, got %s", logger.Component)
			}
			if logger.InstanceID != tt.expectedInstID {
				t.Errorf("Expected instance ID %s, got %s", tt.expectedInstID, logger.InstanceID)
			}
			if logger.Container == "" {
				t.Error("Expected container to be set from hostname")
			}
		})
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(*Logger, string, string, string, map[string]interface{})
		level   LogLevel
	}{
		{"Info log", (*Logger).Info, INFO},
		{"Error log", (*Logger).Error, ERROR},
		{"Warn log", (*Logger).Warn, WARN},
		{"Debug log", (*Logger).Debug, DEBUG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter("sapb1", &buf)
			logger.SetLevel(DEBUG)

			tt.logFunc(logger, "shop", "req-1", "Order inserted", map[string]interface{}{"doc_entry": "812"})

			entries := decodeEntries(t, &buf)
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry.Level != tt.level {
				t.Errorf("Expected level %s, got %s", tt.level, entry.Level)
			}
			if entry.Message != "Order inserted" || entry.ClientID != "shop" || entry.RequestID != "req-1" {
				t.Errorf("unexpected entry: %+v", entry)
			}
			if entry.Component != "sapb1" {
				t.Errorf("Expected component sapb1, got %s", entry.Component)
			}
			if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
				t.Errorf("Invalid timestamp format: %s", entry.Timestamp)
			}
			if entry.Fields["doc_entry"] != "812" {
				t.Errorf("unexpected fields: %v", entry.Fields)
			}
		})
	}
}

func TestMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("gateway", &buf)
	logger.SetLevel(WARN)

	logger.Debug("", "", "debug", nil)
	logger.Info("", "", "info", nil)
	logger.Warn("", "", "warn", nil)
	logger.Error("", "", "error", nil)

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected WARN and ERROR only, got %d entries", len(entries))
	}
	if entries[0].Message != "warn" || entries[1].Message != "error" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var buf bytes.Buffer
	logger := NewWithWriter("gateway", &buf)

	logger.Warn("", "", "ignored", nil)
	logger.Error("", "", "kept", nil)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 || entries[0].Message != "kept" {
		t.Errorf("unexpected entries: %+v", entries)
	}

	t.Setenv("LOG_LEVEL", "verbose")
	if got := NewWithWriter("gateway", &buf).minLevel; got != INFO {
		t.Errorf("unknown LOG_LEVEL should default to INFO, got %s", got)
	}
}

func TestInfoWithDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("gateway", &buf)

	logger.InfoWithDuration("shop", "req-2", "Request completed", 12.5, nil)

	entries := decodeEntries(t, &buf)
	if entries[0].Fields["duration_ms"] != 12.5 {
		t.Errorf("duration_ms = %v", entries[0].Fields["duration_ms"])
	}
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("gateway", &buf)

	logger.ErrorWithCode("shop", "req-3", "Request failed", 502, errors.New("SAP B1 error -5002"),
		map[string]interface{}{"path": "/api/v1/orders"})

	entry := decodeEntries(t, &buf)[0]
	if entry.Fields["status_code"] != float64(502) {
		t.Errorf("status_code = %v", entry.Fields["status_code"])
	}
	if entry.Fields["error"] != "SAP B1 error -5002" || entry.Fields["path"] != "/api/v1/orders" {
		t.Errorf("unexpected fields: %v", entry.Fields)
	}
}

func TestConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("gateway", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("shop", "", "concurrent", map[string]interface{}{"n": n})
		}(i)
	}
	wg.Wait()

	if entries := decodeEntries(t, &buf); len(entries) != 20 {
		t.Errorf("expected 20 well-formed entries, got %d", len(entries))
	}
}

func TestRequestContext(t *testing.T) {
	clientID, requestID := FromContext(context.Background())
	if clientID != "" || requestID != "" {
		t.Errorf("expected empty ids, got %q %q", clientID, requestID)
	}

	ctx := WithRequest(context.Background(), "shop-frontend", "req-42")
	clientID, requestID = FromContext(ctx)
	if clientID != "shop-frontend" {
		t.Errorf("expected client shop-frontend, got %q", clientID)
	}
	if requestID != "req-42" {
		t.Errorf("expected request req-42, got %q", requestID)
	}
}
