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

package sapb1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"b1link/connectors/servicelayer"
	"b1link/shared/logger"
)

// Contact is a contact person to add under a business partner
type Contact struct {
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Tel1      string `json:"Tel1"`
	Email     string `json:"E_MailL"`
	Address   string `json:"Address"`
}

// Column limits of OCPR and ORDR
const (
	maxContactNamePrefix = 36
	maxAddress           = 100
	maxTelephone         = 20
	maxCardName          = 50
)

// GetContacts returns contact persons (OCPR) of a business partner whose
// columns equal the given values. A nil value matches NULL.
func (a *Adaptor) GetContacts(ctx context.Context, num int, columns []string, cardCode string, contact map[string]interface{}) ([]Record, error) {
	if num <= 0 {
		num = 1
	}

	filter := make(Filter, len(contact)+1)
	for field, value := range contact {
		if strings.EqualFold(field, "cardcode") {
			continue
		}
		filter[field] = Condition{Value: value}
	}
	filter["cardcode"] = Condition{Value: cardCode}

	statement, params, err := buildSelect("dbo.OCPR", num, columns, filter)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, statement, params)
}

// InsertContact adds a contact person to a business partner and returns
// its CntctCode. The contact name gets a timestamp suffix so that two
// contacts with the same first and last name stay distinct.
func (a *Adaptor) InsertContact(ctx context.Context, cardCode string, contact Contact) (string, error) {
	if cardCode == "" {
		return "", fmt.Errorf("%w: card code is required", ErrInvalidRequest)
	}

	s, err := a.Session(ctx)
	if err != nil {
		return "", err
	}

	if _, err := s.Company.GetBusinessPartner(ctx, cardCode); err != nil {
		var b1Err *servicelayer.B1Error
		if errors.As(err, &b1Err) && b1Err.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("business partner %s: %w", cardCode, ErrNotFound)
		}
		return "", err
	}

	name := a.contactName(contact.FirstName, contact.LastName)
	employee := servicelayer.ContactEmployee{
		Name:      name,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Phone1:    contact.Tel1,
		EMail:     contact.Email,
		Address:   TrimValue(contact.Address, maxAddress),
	}
	if err := s.Company.AddContactEmployee(ctx, cardCode, employee); err != nil {
		clientID, requestID := logger.FromContext(ctx)
		a.logger.Error(clientID, requestID, "Failed to add contact", map[string]interface{}{
			"card_code": cardCode,
			"error":     err.Error(),
		})
		return "", err
	}

	records, err := a.GetContacts(ctx, 1, []string{"cntctcode"}, cardCode, map[string]interface{}{
		"Name":      name,
		"FirstName": contact.FirstName,
		"LastName":  contact.LastName,
		"E_MailL":   contact.Email,
	})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("contact %q of %s after insert: %w", name, cardCode, ErrNotFound)
	}

	code, _ := records[0].Lookup("cntctcode")
	return code, nil
}

// GetContactPersonCode finds the bill-to contact of an order under its
// business partner, creating the contact when there is no match.
func (a *Adaptor) GetContactPersonCode(ctx context.Context, order *OrderRequest) (string, error) {
	records, err := a.GetContacts(ctx, 1, []string{"cntctcode"}, order.CardCode, map[string]interface{}{
		"FirstName": order.BillToFirstName,
		"LastName":  order.BillToLastName,
		"E_MailL":   order.BillToEmail,
	})
	if err != nil {
		return "", err
	}
	if len(records) == 1 {
		if code, ok := records[0].Lookup("cntctcode"); ok && code != "" {
			return code, nil
		}
	}

	address := fmt.Sprintf("%s, %s, %s %s, %s",
		order.BillToAddress, order.BillToCity, order.BillToState, order.BillToZipCode, order.BillToCountry)

	return a.InsertContact(ctx, order.CardCode, Contact{
		FirstName: order.BillToFirstName,
		LastName:  order.BillToLastName,
		Tel1:      order.BillToTelephone,
		Email:     order.BillToEmail,
		Address:   TrimValue(address, maxAddress),
	})
}

// contactName is "First Last" cut to 36 characters plus the unix time
// with two decimals, which fits OCPR.Name (50).
func (a *Adaptor) contactName(first, last string) string {
	ts := float64(a.now().UnixNano()) / 1e9
	return TrimValue(first+" "+last, maxContactNamePrefix) + " " + strconv.FormatFloat(ts, 'f', 2, 64)
}
