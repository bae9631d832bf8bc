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

package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"b1link/connectors/base"
	"b1link/connectors/servicelayer"
)

const (
	// EnvPrefix prefixes every SAP B1 setting in the environment
	EnvPrefix = "SAPB1_"
	// ConfigFileEnv names a YAML file that replaces the environment settings
	ConfigFileEnv = "B1LINK_CONFIG_FILE"

	defaultDIAPI            = "ServiceLayer"
	defaultLanguage         = "ln_English"
	defaultServiceLayerPort = 50000
	defaultTimeout          = 30 * time.Second
)

// Settings holds everything needed to reach one SAP B1 company: the
// business object API and the company database.
type Settings struct {
	DIAPI           string        `yaml:"diapi"`
	Server          string        `yaml:"server"`
	Language        string        `yaml:"language"`
	DBServerType    string        `yaml:"db_server_type"`
	CompanyDB       string        `yaml:"company_db"`
	B1Username      string        `yaml:"b1_username"`
	B1Password      string        `yaml:"b1_password"`
	DBUsername      string        `yaml:"db_username"`
	DBPassword      string        `yaml:"db_password"`
	DBPort          int           `yaml:"db_port"`
	ServiceLayerURL string        `yaml:"service_layer_url"`
	TLSSkipVerify   bool          `yaml:"tls_skip_verify"`
	Timeout         time.Duration `yaml:"timeout"`
	SecretARN       string        `yaml:"secret_arn"`
}

// LoadSettingsFromEnv reads SAPB1_* variables. Unset optional values get
// defaults; validation happens in Validate.
func LoadSettingsFromEnv() (*Settings, error) {
	s := &Settings{
		DIAPI:           getEnvOrDefault(EnvPrefix+"DIAPI", defaultDIAPI),
		Server:          os.Getenv(EnvPrefix + "SERVER"),
		Language:        getEnvOrDefault(EnvPrefix+"LANGUAGE", defaultLanguage),
		DBServerType:    os.Getenv(EnvPrefix + "DBSERVERTYPE"),
		CompanyDB:       os.Getenv(EnvPrefix + "COMPANYDB"),
		B1Username:      os.Getenv(EnvPrefix + "B1USERNAME"),
		B1Password:      os.Getenv(EnvPrefix + "B1PASSWORD"),
		DBUsername:      os.Getenv(EnvPrefix + "DBUSERNAME"),
		DBPassword:      os.Getenv(EnvPrefix + "DBPASSWORD"),
		ServiceLayerURL: os.Getenv(EnvPrefix + "SERVICE_LAYER_URL"),
		SecretARN:       os.Getenv(EnvPrefix + "SECRET_ARN"),
	}

	if portStr := os.Getenv(EnvPrefix + "DB_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid %sDB_PORT: %s", EnvPrefix, portStr)
		}
		s.DBPort = port
	}

	if timeoutStr := os.Getenv(EnvPrefix + "TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format: %s", timeoutStr)
		}
		s.Timeout = timeout
	}

	if skip := os.Getenv(EnvPrefix + "TLS_SKIP_VERIFY"); skip != "" {
		v, err := strconv.ParseBool(skip)
		if err != nil {
			return nil, fmt.Errorf("invalid %sTLS_SKIP_VERIFY: %s", EnvPrefix, skip)
		}
		s.TLSSkipVerify = v
	}

	s.applyDefaults()
	return s, nil
}

// Load resolves settings from the file named by B1LINK_CONFIG_FILE or the
// environment, overlays credentials from the secrets manager when a
// secret ARN is configured, and validates the result.
func Load(ctx context.Context, secrets SecretsManager) (*Settings, error) {
	var (
		s   *Settings
		err error
	)
	if path := os.Getenv(ConfigFileEnv); path != "" {
		s, err = LoadSettingsFile(path)
	} else {
		s, err = LoadSettingsFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if s.SecretARN != "" {
		if secrets == nil {
			return nil, fmt.Errorf("secret_arn is set but no secrets manager is available")
		}
		if err := s.ApplySecrets(ctx, secrets); err != nil {
			return nil, err
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ApplySecrets overwrites usernames and passwords with the values stored
// under SecretARN. Recognised keys: b1_username, b1_password,
// db_username, db_password.
func (s *Settings) ApplySecrets(ctx context.Context, secrets SecretsManager) error {
	values, err := secrets.GetSecret(ctx, s.SecretARN)
	if err != nil {
		return fmt.Errorf("failed to load SAP B1 credentials: %w", err)
	}

	for key, target := range map[string]*string{
		"b1_username": &s.B1Username,
		"b1_password": &s.B1Password,
		"db_username": &s.DBUsername,
		"db_password": &s.DBPassword,
	} {
		if v, ok := values[key]; ok && v != "" {
			*target = v
		}
	}
	return nil
}

// Validate checks required values and the language and server type names
func (s *Settings) Validate() error {
	var missing []string
	for name, value := range map[string]string{
		"SERVER":     s.Server,
		"COMPANYDB":  s.CompanyDB,
		"B1USERNAME": s.B1Username,
		"B1PASSWORD": s.B1Password,
		"DBUSERNAME": s.DBUsername,
		"DBPASSWORD": s.DBPassword,
	} {
		if value == "" {
			missing = append(missing, EnvPrefix+name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if _, err := servicelayer.LanguageCode(s.Language); err != nil {
		return err
	}
	if err := servicelayer.ValidateDBServerType(s.DBServerType); err != nil {
		return err
	}
	if s.DBPort < 0 || s.DBPort > 65535 {
		return fmt.Errorf("invalid database port: %d", s.DBPort)
	}
	return nil
}

// DatabaseConfig returns the connector configuration for the company
// database.
func (s *Settings) DatabaseConfig() *base.ConnectorConfig {
	options := map[string]interface{}{
		"server":   s.Server,
		"database": s.CompanyDB,
	}
	if s.DBPort > 0 {
		options["port"] = s.DBPort
	}
	if s.TLSSkipVerify {
		options["trust_server_certificate"] = true
	}

	return &base.ConnectorConfig{
		Name: "b1-db",
		Type: "mssql",
		Credentials: map[string]string{
			"username": s.DBUsername,
			"password": s.DBPassword,
		},
		Options:    options,
		Timeout:    s.Timeout,
		MaxRetries: 3,
	}
}

// ServiceLayerConfig returns the connector configuration for the business
// object API.
func (s *Settings) ServiceLayerConfig() *base.ConnectorConfig {
	return &base.ConnectorConfig{
		Name:          "b1-service-layer",
		Type:          "servicelayer",
		ConnectionURL: s.ServiceLayerURL,
		Credentials: map[string]string{
			"username": s.B1Username,
			"password": s.B1Password,
		},
		Options: map[string]interface{}{
			"company_db":      s.CompanyDB,
			"language":        s.Language,
			"tls_skip_verify": s.TLSSkipVerify,
		},
		Timeout:    s.Timeout,
		MaxRetries: 3,
	}
}

func (s *Settings) applyDefaults() {
	if s.DIAPI == "" {
		s.DIAPI = defaultDIAPI
	}
	if s.Language == "" {
		s.Language = defaultLanguage
	}
	if s.Timeout == 0 {
		s.Timeout = defaultTimeout
	}
	if s.ServiceLayerURL == "" && s.Server != "" {
		// SERVER may name a SQL instance (HOST\INSTANCE); the Service Layer
		// runs on the host.
		host, _, _ := strings.Cut(s.Server, `\`)
		s.ServiceLayerURL = fmt.Sprintf("https://%s:%d/b1s/v1", host, defaultServiceLayerPort)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
