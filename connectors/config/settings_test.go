// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"context"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SAPB1_SERVER", `B1SQL\SAPB1`)
	t.Setenv("SAPB1_COMPANYDB", "SBODEMOUS")
	t.Setenv("SAPB1_B1USERNAME", "manager")
	t.Setenv("SAPB1_B1PASSWORD", "b1pass")
	t.Setenv("SAPB1_DBUSERNAME", "sa")
	t.Setenv("SAPB1_DBPASSWORD", "dbpass")
}

func TestLoadSettingsFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SAPB1_DB_PORT", "14330")
	t.Setenv("SAPB1_TIMEOUT", "45s")
	t.Setenv("SAPB1_DBSERVERTYPE", "dst_MSSQL2019")

	s, err := LoadSettingsFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if s.DIAPI != "ServiceLayer" {
		t.Errorf("DIAPI = %q, want default", s.DIAPI)
	}
	if s.Language != "ln_English" {
		t.Errorf("Language = %q, want default", s.Language)
	}
	if s.DBPort != 14330 {
		t.Errorf("DBPort = %d", s.DBPort)
	}
	if s.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", s.Timeout)
	}
	if s.ServiceLayerURL != "https://B1SQL:50000/b1s/v1" {
		t.Errorf("ServiceLayerURL = %q", s.ServiceLayerURL)
	}
}

func TestLoadSettingsFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "SAPB1_DB_PORT", "abc"},
		{"bad timeout", "SAPB1_TIMEOUT", "soon"},
		{"bad tls flag", "SAPB1_TLS_SKIP_VERIFY", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadSettingsFromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			Server: "b1sql", CompanyDB: "SBODEMOUS",
			B1Username: "manager", B1Password: "x",
			DBUsername: "sa", DBPassword: "y",
			Language: "ln_English",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"valid", func(*Settings) {}, ""},
		{"missing passwords", func(s *Settings) { s.B1Password = ""; s.DBPassword = "" }, "SAPB1_B1PASSWORD, SAPB1_DBPASSWORD"},
		{"unknown language", func(s *Settings) { s.Language = "ln_Elvish" }, "unknown SAP B1 language"},
		{"hana", func(s *Settings) { s.DBServerType = "dst_HANADB" }, "not supported"},
		{"bad port", func(s *Settings) { s.DBPort = 70000 }, "invalid database port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSettings_ConnectorConfigs(t *testing.T) {
	s := &Settings{
		Server: "b1sql", CompanyDB: "SBODEMOUS",
		B1Username: "manager", B1Password: "b1pass",
		DBUsername: "sa", DBPassword: "dbpass",
		DBPort: 1434, Language: "ln_German",
		ServiceLayerURL: "https://b1:50000/b1s/v1",
		TLSSkipVerify:   true,
		Timeout:         10 * time.Second,
	}

	db := s.DatabaseConfig()
	if db.Type != "mssql" || db.Options["server"] != "b1sql" || db.Options["database"] != "SBODEMOUS" {
		t.Errorf("unexpected database config: %+v", db)
	}
	if db.Options["port"] != 1434 || db.Credentials["password"] != "dbpass" {
		t.Errorf("unexpected database options/credentials: %+v", db)
	}
	if db.Options["trust_server_certificate"] != true {
		t.Error("expected trust_server_certificate with tls_skip_verify")
	}

	sl := s.ServiceLayerConfig()
	if sl.Type != "servicelayer" || sl.ConnectionURL != "https://b1:50000/b1s/v1" {
		t.Errorf("unexpected service layer config: %+v", sl)
	}
	if sl.Options["company_db"] != "SBODEMOUS" || sl.Options["language"] != "ln_German" {
		t.Errorf("unexpected service layer options: %v", sl.Options)
	}
	if sl.Credentials["username"] != "manager" || sl.Timeout != 10*time.Second {
		t.Errorf("unexpected service layer credentials/timeout: %+v", sl)
	}
}

func TestLoad_AppliesSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SAPB1_B1PASSWORD", "")
	t.Setenv("SAPB1_DBPASSWORD", "")
	t.Setenv("SAPB1_SECRET_ARN", "arn:aws:secretsmanager:us-east-1:123456789012:secret:b1-abc123")

	secrets := NewLocalSecretsManager()
	secrets.SetSecret("arn:aws:secretsmanager:us-east-1:123456789012:secret:b1-abc123", map[string]string{
		"b1_password": "from-secret-b1",
		"db_password": "from-secret-db",
	})

	s, err := Load(context.Background(), secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.B1Password != "from-secret-b1" || s.DBPassword != "from-secret-db" {
		t.Errorf("secrets not applied: %+v", s)
	}
	if s.B1Username != "manager" {
		t.Errorf("username should be kept when the secret lacks it, got %q", s.B1Username)
	}
}

func TestLoad_SecretARNWithoutManager(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SAPB1_SECRET_ARN", "arn:aws:secretsmanager:us-east-1:123456789012:secret:b1")

	if _, err := Load(context.Background(), nil); err == nil {
		t.Fatal("expected error when secret_arn is set without a secrets manager")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("SAPB1_SERVER", "")
	t.Setenv("SAPB1_COMPANYDB", "")
	t.Setenv(ConfigFileEnv, "")

	_, err := Load(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "SAPB1_SERVER") {
		t.Fatalf("expected missing SAPB1_SERVER error, got %v", err)
	}
}
