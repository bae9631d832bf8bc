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
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// URLValidationOptions configures URL validation behavior
type URLValidationOptions struct {
	// AllowPrivateIPs permits private/internal addresses. SAP B1 servers
	// normally live on the company LAN, so this defaults to true.
	AllowPrivateIPs bool
	// AllowedSchemes specifies permitted URL schemes
	AllowedSchemes []string
	// BlockedHosts explicitly blocks certain hostnames
	BlockedHosts []string
}

// DefaultURLValidationOptions returns the defaults used for Service Layer URLs
func DefaultURLValidationOptions() URLValidationOptions {
	return URLValidationOptions{
		AllowPrivateIPs: true,
		AllowedSchemes:  []string{"https", "http"},
	}
}

// ValidateURL checks the scheme, host presence, blocklist and, unless
// private addresses are allowed, that the host does not resolve to an
// internal IP.
func ValidateURL(rawURL string, opts URLValidationOptions) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if err := validateScheme(parsedURL.Scheme, opts.AllowedSchemes); err != nil {
		return err
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must contain a hostname")
	}

	if isHostBlocked(hostname, opts.BlockedHosts) {
		return fmt.Errorf("hostname %q is blocked", hostname)
	}

	if !opts.AllowPrivateIPs {
		if err := validateHostNotPrivate(hostname); err != nil {
			return err
		}
	}

	return nil
}

func validateScheme(scheme string, allowedSchemes []string) error {
	if len(allowedSchemes) == 0 {
		allowedSchemes = []string{"https", "http"}
	}

	scheme = strings.ToLower(scheme)
	for _, allowed := range allowedSchemes {
		if scheme == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("URL scheme %q is not allowed; permitted schemes: %v", scheme, allowedSchemes)
}

func validateHostNotPrivate(hostname string) error {
	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("connection to private/internal IP %s is not allowed", ip)
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname %q: %w", hostname, err)
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("connection to private/internal IP %s is not allowed (hostname: %s)", ip, hostname)
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is private, loopback, or otherwise internal
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		// 100.64.0.0/10 (Carrier-grade NAT)
		if ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127 {
			return true
		}
		// 0.0.0.0/8
		if ip4[0] == 0 {
			return true
		}
	}

	return false
}

func isHostBlocked(hostname string, blockedHosts []string) bool {
	hostname = strings.ToLower(hostname)
	for _, blocked := range blockedHosts {
		blocked = strings.ToLower(blocked)
		if hostname == blocked || strings.HasSuffix(hostname, "."+blocked) {
			return true
		}
	}
	return false
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// SanitizeLogString strips line breaks and ANSI sequences from values that
// came from the consumer application before they reach a log line.
func SanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = ansiRegex.ReplaceAllString(s, "")
	const maxLogLength = 500
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}
	return s
}

var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedIdentifiers are refused even though they match the identifier
// pattern. SAP B1 column names never collide with them.
var reservedIdentifiers = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "TABLE": true, "FROM": true, "WHERE": true,
	"AND": true, "OR": true, "NOT": true, "NULL": true, "JOIN": true, "UNION": true,
	"EXEC": true, "EXECUTE": true, "TRUNCATE": true, "GRANT": true, "REVOKE": true,
}

// ValidateSQLIdentifier checks if a string is safe to splice into SQL as a
// column or table name. Caller-supplied field names go through this
// before any statement is assembled.
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierRegex.MatchString(identifier) {
		return fmt.Errorf("invalid SQL identifier: %q", identifier)
	}
	if reservedIdentifiers[strings.ToUpper(identifier)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", identifier)
	}
	return nil
}
