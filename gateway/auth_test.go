// Copyright 2025 b1link
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_Disabled(t *testing.T) {
	auth := NewAuthenticator("")
	assert.Nil(t, auth)

	caller, err := auth.Authenticate("")
	require.NoError(t, err)
	assert.Equal(t, anonymousCaller, caller)
}

func TestAuthenticator(t *testing.T) {
	auth := NewAuthenticator("s3cret")

	tests := []struct {
		name    string
		header  func(t *testing.T) string
		want    string
		wantErr error
	}{
		{
			name:   "valid token",
			header: func(t *testing.T) string { return "Bearer " + signToken(t, "s3cret", "shop", jwt.SigningMethodHS256) },
			want:   "shop",
		},
		{
			name:    "missing header",
			header:  func(t *testing.T) string { return "" },
			wantErr: errMissingToken,
		},
		{
			name:    "basic auth",
			header:  func(t *testing.T) string { return "Basic dXNlcjpwYXNz" },
			wantErr: errMissingToken,
		},
		{
			name:    "wrong secret",
			header:  func(t *testing.T) string { return "Bearer " + signToken(t, "nope", "shop", jwt.SigningMethodHS256) },
			wantErr: errInvalidToken,
		},
		{
			name:    "wrong algorithm",
			header:  func(t *testing.T) string { return "Bearer " + signToken(t, "s3cret", "shop", jwt.SigningMethodHS512) },
			wantErr: errInvalidToken,
		},
		{
			name:    "no subject",
			header:  func(t *testing.T) string { return "Bearer " + signToken(t, "s3cret", "", jwt.SigningMethodHS256) },
			wantErr: errInvalidToken,
		},
		{
			name: "expired",
			header: func(t *testing.T) string {
				claims := jwt.RegisteredClaims{
					Subject:   "shop",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
				require.NoError(t, err)
				return "Bearer " + token
			},
			wantErr: errInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller, err := auth.Authenticate(tt.header(t))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, caller)
		})
	}
}
