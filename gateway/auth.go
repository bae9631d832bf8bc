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

package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// anonymousCaller identifies requests when authentication is disabled
const anonymousCaller = "anonymous"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
)

// Authenticator validates HS256 bearer tokens. The subject claim names the
// calling application.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns nil when secret is empty, which disables
// authentication.
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret)}
}

// Authenticate checks an Authorization header value and returns the caller
func (a *Authenticator) Authenticate(header string) (string, error) {
	if a == nil {
		return anonymousCaller, nil
	}

	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return "", errMissingToken
	}

	token, err := jwt.Parse(strings.TrimSpace(tokenString), func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: subject claim is required", errInvalidToken)
	}
	return subject, nil
}
