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

/*
Package logger provides structured JSON logging for the b1link gateway and
order adaptor.

Each entry is a single JSON line carrying the timestamp, level, component,
instance and container, the caller (client id), the request id and free
form fields:

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"gateway","instance_id":"b1link-1","container":"web-7f9c",
	 "client_id":"shop-frontend","request_id":"5f0c...",
	 "message":"Order inserted","fields":{"doc_entry":"812"}}

Usage:

	log := logger.New("sapb1")
	log.Info("shop-frontend", reqID, "Order inserted", map[string]interface{}{
	    "fe_order_id": "100000123",
	})

INSTANCE_ID names the deployment instance and LOG_LEVEL (DEBUG, INFO,
WARN, ERROR) sets the minimum level written. Loggers are safe for
concurrent use.
*/
package logger
