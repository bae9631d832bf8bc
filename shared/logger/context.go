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

package logger

import "context"

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const (
	ctxKeyClientID  contextKey = "client_id"
	ctxKeyRequestID contextKey = "request_id"
)

// WithRequest stores the caller and request id so that code further down
// the call chain can log them without threading extra arguments.
func WithRequest(ctx context.Context, clientID, requestID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientID, clientID)
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// FromContext returns the client and request id stored by WithRequest
func FromContext(ctx context.Context) (clientID, requestID string) {
	if ctx == nil {
		return "", ""
	}
	clientID, _ = ctx.Value(ctxKeyClientID).(string)
	requestID, _ = ctx.Value(ctxKeyRequestID).(string)
	return clientID, requestID
}
