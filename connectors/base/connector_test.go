// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package base

import (
	"errors"
	"testing"
	"time"
)

func TestConnectorError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *ConnectorError
		wantMsg string
	}{
		{
			name: "with cause",
			err: &ConnectorError{
				ConnectorName: "b1-db",
				Operation:     "Query",
				Message:       "query execution failed",
				Cause:         errors.New("login failed for user 'sa'"),
			},
			wantMsg: "b1-db.Query: query execution failed (cause: login failed for user 'sa')",
		},
		{
			name: "without cause",
			err: &ConnectorError{
				ConnectorName: "b1-sl",
				Operation:     "Execute",
				Message:       "not logged in",
			},
			wantMsg: "b1-sl.Execute: not logged in",
		},
		{
			name:    "empty fields",
			err:     &ConnectorError{Message: "error"},
			wantMsg: ".: error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConnectorError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewConnectorError("b1-db", "Connect", "failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}

	var connErr *ConnectorError
	if !errors.As(error(err), &connErr) {
		t.Fatal("expected errors.As to match *ConnectorError")
	}
	if connErr.Operation != "Connect" {
		t.Errorf("Operation = %q, want %q", connErr.Operation, "Connect")
	}

	if NewConnectorError("c", "op", "msg", nil).Unwrap() != nil {
		t.Error("Unwrap() should return nil when Cause is nil")
	}
}

func TestTimeoutFor(t *testing.T) {
	cfg := &ConnectorConfig{Timeout: 7 * time.Second}

	tests := []struct {
		name     string
		override time.Duration
		config   *ConnectorConfig
		want     time.Duration
	}{
		{"override wins", time.Second, cfg, time.Second},
		{"config timeout", 0, cfg, 7 * time.Second},
		{"nil config", 0, nil, 30 * time.Second},
		{"zero config timeout", 0, &ConnectorConfig{}, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeoutFor(tt.override, tt.config, 30*time.Second); got != tt.want {
				t.Errorf("TimeoutFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
