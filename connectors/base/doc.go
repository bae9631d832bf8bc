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
Package base defines the request/response contract shared by the b1link
connectors.

# Connectors

Two connectors implement Connector:

  - mssql - the SAP B1 company database (reporting tables ORDR, OCPR,
    ODLN, DLN1, OADM, OEXD, OSHP)
  - servicelayer - the SAP B1 business-object API (orders, business
    partners, contact employees)

# Query Operations

Reads use named parameters. For SQL Server the placeholders are @name:

	query := &Query{
	    Statement:  "SELECT TOP 1 DocEntry FROM dbo.ORDR WHERE NumAtCard = @NumAtCard",
	    Parameters: map[string]interface{}{"NumAtCard": "100000123"},
	}

	result, err := connector.Query(ctx, query)

For the Service Layer the statement is an OData path:

	query := &Query{Statement: "BusinessPartners('C20000')"}

# Command Operations

	cmd := &Command{
	    Action:     "POST",
	    Statement:  "Orders(42)/Cancel",
	}

# Error Handling

Connector failures are returned as *ConnectorError and keep the driver or
HTTP error as Cause:

	var connErr *ConnectorError
	if errors.As(err, &connErr) {
	    log.Printf("%s.%s failed: %s", connErr.ConnectorName, connErr.Operation, connErr.Message)
	}

# Thread Safety

Connector implementations must be safe for concurrent use once Connect
has returned.
*/
package base
