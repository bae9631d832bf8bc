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
Package sapb1 exposes SAP Business One sales orders, contacts, deliveries
and lookup tables to a front-end application.

Reads go straight to the company database (ORDR, OCPR, ODLN, DLN1, OADM,
OEXD, OSHP) with SQL assembled from caller filters. Writes go through the
business object API so that SAP B1 keeps control of numbering and
validation.

	a := sapb1.New(settings, sapb1.WithCache(sapb1.NewMemoryCache()))
	defer a.Close(ctx)

	orders, err := a.GetOrders(ctx, 10, []string{"DocEntry", "DocTotal"}, sapb1.Filter{
		"CardCode": {Value: "C20000"},
		"DocDate":  {Value: "2024-01-01", Op: ">="},
	})

Every value read from the database is returned as a string. A filter
condition defaults to equality; Op may be one of =, <>, !=, <, <=, >, >=,
LIKE and NOT LIKE.
*/
package sapb1
