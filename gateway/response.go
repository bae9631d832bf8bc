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
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"b1link/sapb1"
)

// Envelope wraps every response body
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// errBadRequest marks request bodies that could not be decoded
var errBadRequest = errors.New("bad request")

func writeJSONResponse(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	writeEnvelope(w, statusCode, Envelope{
		Success:   true,
		Data:      data,
		RequestID: requestIDFrom(r),
	})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	writeEnvelope(w, statusCode, Envelope{
		Success:   false,
		Error:     message,
		RequestID: requestIDFrom(r),
	})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("[GATEWAY] Error encoding response: %v", err)
	}
}

// errorStatus maps adaptor errors to HTTP status codes. Anything that is
// not a caller mistake came from SAP B1 or its database.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, sapb1.ErrInvalidFilter),
		errors.Is(err, sapb1.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, sapb1.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sapb1.ErrOrderInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
