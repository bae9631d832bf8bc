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
Command b1gateway serves the SAP B1 connector over HTTP.

# Usage

	b1gateway

# Environment Variables

SAP B1 (read by the connector configuration):
  - SAPB1_SERVER, SAPB1_COMPANYDB: database server and company database
  - SAPB1_B1USERNAME, SAPB1_B1PASSWORD: Service Layer login
  - SAPB1_DBUSERNAME, SAPB1_DBPASSWORD: SQL Server login
  - SAPB1_SECRET_ARN: optional AWS Secrets Manager secret with the credentials
  - B1LINK_CONFIG_FILE: optional YAML file replacing the SAPB1_* variables

Gateway:
  - PORT: HTTP server port (default: 8080)
  - JWT_SECRET: HS256 secret; authentication is disabled when unset
  - REDIS_URL: lookup cache and distributed rate limiting
  - RATE_LIMIT_PER_MINUTE: requests per caller per minute (default: 600)
  - LEDGER_URL, LEDGER_DIALECT: order ledger database (postgres or mysql)
  - ARCHIVE_TYPE: s3, gcs, azureblob or none (default: none)

# Example

	export SAPB1_SERVER="b1sql01"
	export SAPB1_COMPANYDB="SBODEMOUS"
	export REDIS_URL="redis://localhost:6379/0"
	./b1gateway
*/
package main

import "b1link/gateway"

func main() {
	gateway.Run()
}
