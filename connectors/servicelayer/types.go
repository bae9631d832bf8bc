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

import "encoding/json"

// ContactEmployee is one line of BusinessPartners.ContactEmployees (OCPR).
type ContactEmployee struct {
	CardCode     string `json:"CardCode,omitempty"`
	InternalCode int    `json:"InternalCode,omitempty"`
	Name         string `json:"Name,omitempty"`
	FirstName    string `json:"FirstName,omitempty"`
	LastName     string `json:"LastName,omitempty"`
	Phone1       string `json:"Phone1,omitempty"`
	EMail        string `json:"E_Mail,omitempty"`
	Address      string `json:"Address,omitempty"`
}

// BusinessPartner is the subset of OCRD the connector reads and updates.
type BusinessPartner struct {
	CardCode         string            `json:"CardCode"`
	CardName         string            `json:"CardName,omitempty"`
	ContactEmployees []ContactEmployee `json:"ContactEmployees,omitempty"`
}

// AddressExtension carries the bill-to and ship-to address of a document.
type AddressExtension struct {
	BillToStreet  string `json:"BillToStreet,omitempty"`
	BillToCity    string `json:"BillToCity,omitempty"`
	BillToZipCode string `json:"BillToZipCode,omitempty"`
	BillToState   string `json:"BillToState,omitempty"`
	BillToCounty  string `json:"BillToCounty,omitempty"`
	BillToCountry string `json:"BillToCountry,omitempty"`
	ShipToStreet  string `json:"ShipToStreet,omitempty"`
	ShipToCity    string `json:"ShipToCity,omitempty"`
	ShipToZipCode string `json:"ShipToZipCode,omitempty"`
	ShipToState   string `json:"ShipToState,omitempty"`
	ShipToCounty  string `json:"ShipToCounty,omitempty"`
	ShipToCountry string `json:"ShipToCountry,omitempty"`
}

// DocumentLine is one item row of a marketing document.
type DocumentLine struct {
	ItemCode  string      `json:"ItemCode"`
	Quantity  json.Number `json:"Quantity"`
	Price     json.Number `json:"Price,omitempty"`
	TaxCode   string      `json:"TaxCode,omitempty"`
	LineTotal json.Number `json:"LineTotal,omitempty"`
}

// AdditionalExpense is a document-level freight charge.
type AdditionalExpense struct {
	ExpenseCode int         `json:"ExpenseCode"`
	LineTotal   json.Number `json:"LineTotal,omitempty"`
	TaxCode     string      `json:"TaxCode,omitempty"`
}

// Document is a sales order as posted to /Orders. UserFields holds UDF
// values (U_*) which are written as top-level properties.
type Document struct {
	CardCode                   string              `json:"CardCode"`
	CardName                   string              `json:"CardName,omitempty"`
	DocDueDate                 string              `json:"DocDueDate,omitempty"`
	DocCurrency                string              `json:"DocCurrency,omitempty"`
	ContactPersonCode          int                 `json:"ContactPersonCode,omitempty"`
	DiscountPercent            json.Number         `json:"DiscountPercent,omitempty"`
	TransportationCode         int                 `json:"TransportationCode,omitempty"`
	PaymentMethod              string              `json:"PaymentMethod,omitempty"`
	NumAtCard                  string              `json:"NumAtCard,omitempty"`
	AddressExtension           *AddressExtension   `json:"AddressExtension,omitempty"`
	DocumentLines              []DocumentLine      `json:"DocumentLines"`
	DocumentAdditionalExpenses []AdditionalExpense `json:"DocumentAdditionalExpenses,omitempty"`
	UserFields                 map[string]string   `json:"-"`
}

type documentAlias Document

// MarshalJSON flattens UserFields into the document body.
func (d *Document) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal((*documentAlias)(d))
	if err != nil || len(d.UserFields) == 0 {
		return data, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for name, value := range d.UserFields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		fields[name] = raw
	}
	return json.Marshal(fields)
}
