// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")
	t.Setenv("OTHER_VAR", "other_value")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dollar brace syntax", "prefix ${TEST_VAR} suffix", "prefix test_value suffix"},
		{"dollar syntax", "prefix $TEST_VAR suffix", "prefix test_value suffix"},
		{"default value - var exists", "${TEST_VAR:-default}", "test_value"},
		{"default value - var not exists", "${B1LINK_UNDEFINED_VAR:-default_val}", "default_val"},
		{"undefined var - empty result", "${B1LINK_UNDEFINED_VAR}", ""},
		{"multiple vars", "${TEST_VAR} and ${OTHER_VAR}", "test_value and other_value"},
		{"no vars", "plain text without variables", "plain text without variables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvVars(tt.input); got != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "b1link.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadSettingsFile(t *testing.T) {
	t.Setenv("B1_TEST_DB_PASSWORD", "s3cret")

	path := writeConfigFile(t, `
version: "1.0"
sapb1:
  server: b1sql
  language: ln_French
  db_server_type: dst_MSSQL2017
  company_db: SBODEMOFR
  b1_username: manager
  b1_password: ${B1_TEST_B1_PASSWORD:-changeme}
  db_username: sa
  db_password: ${B1_TEST_DB_PASSWORD}
  db_port: 1433
  timeout: 90s
`)

	s, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Language != "ln_French" || s.CompanyDB != "SBODEMOFR" {
		t.Errorf("unexpected settings: %+v", s)
	}
	if s.B1Password != "changeme" || s.DBPassword != "s3cret" {
		t.Errorf("env expansion failed: b1=%q db=%q", s.B1Password, s.DBPassword)
	}
	if s.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v", s.Timeout)
	}
	if s.DIAPI != "ServiceLayer" || s.ServiceLayerURL != "https://b1sql:50000/b1s/v1" {
		t.Errorf("defaults not applied: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadSettingsFile_Errors(t *testing.T) {
	if _, err := LoadSettingsFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	noVersion := writeConfigFile(t, "sapb1:\n  server: b1sql\n")
	if _, err := LoadSettingsFile(noVersion); err == nil {
		t.Error("expected error for missing version")
	}

	invalid := writeConfigFile(t, "version: [unclosed\n")
	if _, err := LoadSettingsFile(invalid); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_FromConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
version: "1.0"
sapb1:
  server: filehost
  company_db: SBODEMOUS
  b1_username: manager
  b1_password: x
  db_username: sa
  db_password: y
`)
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SAPB1_SERVER", "envhost")

	s, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Server != "filehost" {
		t.Errorf("config file should take precedence, got server %q", s.Server)
	}
}

func TestExampleConfigFileParses(t *testing.T) {
	path := writeConfigFile(t, ExampleConfigFile())
	s, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if s.DBServerType != "dst_MSSQL2016" {
		t.Errorf("DBServerType = %q", s.DBServerType)
	}
}
