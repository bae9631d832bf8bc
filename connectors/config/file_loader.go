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
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the root of a b1link configuration file
type File struct {
	Version string   `yaml:"version"`
	SAPB1   Settings `yaml:"sapb1"`
}

// LoadSettingsFile reads a YAML configuration file. ${VAR} and
// ${VAR:-default} references are expanded before parsing.
func LoadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if file.Version == "" {
		return nil, fmt.Errorf("config file must specify a version")
	}

	settings := file.SAPB1
	settings.applyDefaults()
	return &settings, nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR}, ${VAR:-default} and $VAR. Undefined
// variables without a default become empty strings.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// ExampleConfigFile returns a commented sample configuration
func ExampleConfigFile() string {
	return `# b1link configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default}

version: "1.0"

sapb1:
  diapi: ServiceLayer
  server: ${SAPB1_SERVER:-b1sql}
  language: ln_English
  db_server_type: dst_MSSQL2016
  company_db: ${SAPB1_COMPANYDB:-SBODEMOUS}
  b1_username: ${SAPB1_B1USERNAME:-manager}
  b1_password: ${SAPB1_B1PASSWORD}
  db_username: ${SAPB1_DBUSERNAME:-sa}
  db_password: ${SAPB1_DBPASSWORD}
  db_port: 1433
  # Defaults to https://<server host>:50000/b1s/v1
  service_layer_url: ${SAPB1_SERVICE_LAYER_URL}
  tls_skip_verify: false
  timeout: 30s
  # Optional: read the usernames and passwords from AWS Secrets Manager
  secret_arn: ${SAPB1_SECRET_ARN}
`
}
