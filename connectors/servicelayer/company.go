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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"b1link/connectors/base"
)

// CompanyName returns the company name read at login
func (c *Client) CompanyName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.companyName
}

// GetBusinessPartner reads a business partner with its contact employees
func (c *Client) GetBusinessPartner(ctx context.Context, cardCode string) (*BusinessPartner, error) {
	if c.httpClient == nil {
		return nil, base.NewConnectorError(c.Name(), "GetBusinessPartner", "not logged in", nil)
	}

	path := entityPath("BusinessPartners", cardCode) + "?$select=CardCode,CardName,ContactEmployees"
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "GetBusinessPartner",
			fmt.Sprintf("failed to read business partner %s", cardCode), err)
	}

	var bp BusinessPartner
	if err := json.Unmarshal(resp, &bp); err != nil {
		return nil, base.NewConnectorError(c.Name(), "GetBusinessPartner", "invalid response body", err)
	}
	return &bp, nil
}

// AddContactEmployee appends one contact line to a business partner. The
// Service Layer adds collection lines without an InternalCode on PATCH.
func (c *Client) AddContactEmployee(ctx context.Context, cardCode string, contact ContactEmployee) error {
	if c.httpClient == nil {
		return base.NewConnectorError(c.Name(), "AddContactEmployee", "not logged in", nil)
	}

	contact.InternalCode = 0
	body, err := json.Marshal(map[string]interface{}{
		"ContactEmployees": []ContactEmployee{contact},
	})
	if err != nil {
		return base.NewConnectorError(c.Name(), "AddContactEmployee", "failed to marshal body", err)
	}

	if _, err := c.do(ctx, http.MethodPatch, entityPath("BusinessPartners", cardCode), body); err != nil {
		return base.NewConnectorError(c.Name(), "AddContactEmployee",
			fmt.Sprintf("failed to update business partner %s", cardCode), err)
	}

	c.logger.Printf("Added contact %q to business partner %s", contact.Name, base.SanitizeLogString(cardCode))
	return nil
}

// AddOrder posts a sales order and returns its DocEntry
func (c *Client) AddOrder(ctx context.Context, doc *Document) (int, error) {
	if c.httpClient == nil {
		return 0, base.NewConnectorError(c.Name(), "AddOrder", "not logged in", nil)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return 0, base.NewConnectorError(c.Name(), "AddOrder", "failed to marshal order", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/Orders", body)
	if err != nil {
		return 0, base.NewConnectorError(c.Name(), "AddOrder", "failed to add order", err)
	}

	docEntry := int(gjson.GetBytes(resp, "DocEntry").Int())
	c.logger.Printf("Added order for %s: DocEntry=%d", base.SanitizeLogString(doc.CardCode), docEntry)
	return docEntry, nil
}

// CancelOrder cancels an open sales order
func (c *Client) CancelOrder(ctx context.Context, docEntry int) error {
	if c.httpClient == nil {
		return base.NewConnectorError(c.Name(), "CancelOrder", "not logged in", nil)
	}

	path := fmt.Sprintf("/Orders(%d)/Cancel", docEntry)
	if _, err := c.do(ctx, http.MethodPost, path, nil); err != nil {
		return base.NewConnectorError(c.Name(), "CancelOrder",
			fmt.Sprintf("failed to cancel order %d", docEntry), err)
	}

	c.logger.Printf("Cancelled order DocEntry=%d", docEntry)
	return nil
}

// Close ends the session
func (c *Client) Close(ctx context.Context) error {
	return c.Disconnect(ctx)
}

// entityPath builds /Set('key') with OData quote doubling
func entityPath(entitySet, key string) string {
	escaped := url.PathEscape(strings.ReplaceAll(key, "'", "''"))
	return fmt.Sprintf("/%s('%s')", entitySet, escaped)
}
