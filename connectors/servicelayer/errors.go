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

package servicelayer

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// B1Error is a failure reported by SAP Business One itself, the Service
// Layer counterpart of the DI-API GetLastError / GetLastErrorDescription
// pair.
type B1Error struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *B1Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("SAP B1 error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("SAP B1 error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsSessionExpired reports whether the error means the session cookie is
// no longer valid.
func (e *B1Error) IsSessionExpired() bool {
	return e.StatusCode == http.StatusUnauthorized || e.Code == -301
}

// parseError decodes an OData error body:
//
//	{"error": {"code": -10, "message": {"lang": "en-us", "value": "..."}}}
//
// Older versions return message as a plain string. Anything else is kept
// verbatim, shortened to 200 characters.
func parseError(statusCode int, body []byte) *B1Error {
	b1err := &B1Error{StatusCode: statusCode}

	if gjson.ValidBytes(body) {
		root := gjson.GetBytes(body, "error")
		if root.Exists() {
			b1err.Code = int(root.Get("code").Int())
			msg := root.Get("message")
			if v := msg.Get("value"); v.Exists() {
				b1err.Message = v.String()
			} else {
				b1err.Message = msg.String()
			}
		}
	}

	if b1err.Message == "" {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		if text == "" {
			text = http.StatusText(statusCode)
		}
		b1err.Message = text
	}

	return b1err
}
