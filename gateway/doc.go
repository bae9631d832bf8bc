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

// Package gateway serves the SAP B1 operations to the front-end shop over
// HTTP. Every response uses the same JSON envelope:
//
//	{"success": true, "data": ..., "request_id": "..."}
//	{"success": false, "error": "Order 1001 is not found.", "request_id": "..."}
//
// Routes under /api/v1 require an HS256 bearer token when JWT_SECRET is
// set and are rate limited per caller when REDIS_URL is set.
package gateway
