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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"b1link/archive"
	"b1link/connectors/base"
	"b1link/connectors/servicelayer"
	"b1link/ledger"
	"b1link/shared/logger"
)

// DefaultOrderCount is used when GetOrders is called with num <= 0
const DefaultOrderCount = 1

// DefaultPendingTimeout is how long an insert may hold its ledger
// reservation before another request may take it over
const DefaultPendingTimeout = 10 * time.Minute

// FrontendID is the order id of the front-end shop. It decodes from both
// JSON strings and numbers.
type FrontendID string

// UnmarshalJSON accepts "1001" and 1001
func (f *FrontendID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FrontendID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("fe_order_id must be a string or a number: %w", err)
	}
	*f = FrontendID(n.String())
	return nil
}

// OrderItem is one document line of an order
type OrderItem struct {
	ItemCode  string      `json:"itemcode"`
	Quantity  json.Number `json:"quantity"`
	Price     json.Number `json:"price,omitempty"`
	TaxCode   string      `json:"taxcode,omitempty"`
	LineTotal json.Number `json:"linetotal,omitempty"`
}

// OrderRequest is a sales order as sent by the front end
type OrderRequest struct {
	CardCode   string `json:"card_code"`
	DocDueDate string `json:"doc_due_date"`

	BillToFirstName string `json:"billto_firstname"`
	BillToLastName  string `json:"billto_lastname"`
	BillToEmail     string `json:"billto_email"`
	BillToTelephone string `json:"billto_telephone"`
	BillToAddress   string `json:"billto_address"`
	BillToCity      string `json:"billto_city"`
	BillToState     string `json:"billto_state"`
	BillToZipCode   string `json:"billto_zipcode"`
	BillToCountry   string `json:"billto_country"`
	BillToCounty    string `json:"billto_county,omitempty"`

	ShipToAddress string `json:"shipto_address"`
	ShipToCity    string `json:"shipto_city"`
	ShipToState   string `json:"shipto_state"`
	ShipToZipCode string `json:"shipto_zipcode"`
	ShipToCountry string `json:"shipto_country"`
	ShipToCounty  string `json:"shipto_county"`

	Items []OrderItem `json:"items"`

	ExpensesFreightName string      `json:"expenses_freightname,omitempty"`
	ExpensesLineTotal   json.Number `json:"expenses_linetotal,omitempty"`
	ExpensesTaxCode     string      `json:"expenses_taxcode,omitempty"`

	DiscountPercent json.Number `json:"discount_percent,omitempty"`
	TransportName   string      `json:"transport_name,omitempty"`
	PaymentMethod   string      `json:"payment_method,omitempty"`

	FrontendID    FrontendID `json:"fe_order_id"`
	FrontendIDUDF string     `json:"fe_order_id_udf,omitempty"`
}

// Validate checks the fields InsertOrder cannot do without
func (o *OrderRequest) Validate() error {
	if o.CardCode == "" {
		return fmt.Errorf("%w: card_code is required", ErrInvalidRequest)
	}
	if o.FrontendID == "" {
		return fmt.Errorf("%w: fe_order_id is required", ErrInvalidRequest)
	}
	if err := validateUDF(o.FrontendIDUDF); err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}
	for i, item := range o.Items {
		if item.ItemCode == "" {
			return fmt.Errorf("%w: items[%d].itemcode is required", ErrInvalidRequest, i)
		}
		if item.Quantity == "" {
			return fmt.Errorf("%w: items[%d].quantity is required", ErrInvalidRequest, i)
		}
	}
	return nil
}

// CancelRequest identifies the order to cancel
type CancelRequest struct {
	FrontendID    FrontendID `json:"fe_order_id"`
	FrontendIDUDF string     `json:"fe_order_id_udf,omitempty"`
}

func validateUDF(udf string) error {
	if udf == "" {
		return nil
	}
	if err := base.ValidateSQLIdentifier(udf); err != nil {
		return fmt.Errorf("%w: fe_order_id_udf: %v", ErrInvalidRequest, err)
	}
	return nil
}

// GetOrders returns sales orders (ORDR) matching filter
func (a *Adaptor) GetOrders(ctx context.Context, num int, columns []string, filter Filter) ([]Record, error) {
	if num <= 0 {
		num = DefaultOrderCount
	}

	statement, params, err := buildSelect("dbo.ORDR", num, columns, filter)
	if err != nil {
		return nil, err
	}
	return a.query(ctx, statement, params)
}

// InsertOrder creates a sales order and returns its DocEntry. When a
// ledger is configured the front-end id is reserved before anything is
// sent to SAP B1, and an order that was already inserted is not sent
// again; the recorded DocEntry is returned instead. Concurrent calls for
// the same id within one process share a single insert.
func (a *Adaptor) InsertOrder(ctx context.Context, order *OrderRequest) (string, error) {
	if order == nil {
		return "", fmt.Errorf("%w: order is required", ErrInvalidRequest)
	}
	if err := order.Validate(); err != nil {
		return "", err
	}

	feID := string(order.FrontendID)
	v, err, shared := a.inserts.Do(feID, func() (interface{}, error) {
		return a.insertOrder(ctx, order)
	})
	if shared {
		clientID, requestID := logger.FromContext(ctx)
		a.logger.Debug(clientID, requestID, "Order insert shared with a concurrent request", map[string]interface{}{
			"fe_order_id": feID,
		})
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *Adaptor) insertOrder(ctx context.Context, order *OrderRequest) (string, error) {
	clientID, requestID := logger.FromContext(ctx)
	feID := string(order.FrontendID)

	if a.ledger != nil {
		docEntry, done, err := a.reserveOrder(ctx, feID, order.FrontendIDUDF)
		if err != nil {
			return "", err
		}
		if done {
			return docEntry, nil
		}
	}

	a.archivePayload(ctx, feID, "insert", order)

	s, err := a.Session(ctx)
	if err != nil {
		a.releaseOrder(ctx, feID)
		return "", err
	}

	doc, err := a.buildDocument(ctx, order)
	if err != nil {
		a.releaseOrder(ctx, feID)
		return "", err
	}

	docEntry, err := s.Company.AddOrder(ctx, doc)
	if err != nil {
		a.logger.Error(clientID, requestID, "Failed to insert order", map[string]interface{}{
			"fe_order_id": feID,
			"error":       err.Error(),
		})
		a.releaseOrder(ctx, feID)
		return "", fmt.Errorf("failed to insert order %s: %w", feID, err)
	}

	// From here on the order exists in SAP B1. The reservation stays in
	// place on error so that a retry finds the order instead of posting it
	// again.
	boOrderID := ""
	if docEntry > 0 {
		boOrderID = strconv.Itoa(docEntry)
	} else {
		id, found, err := a.findDocEntry(ctx, feID, order.FrontendIDUDF)
		if err != nil {
			return "", err
		}
		if !found {
			return "", &OrderNotFoundError{FrontendID: feID}
		}
		boOrderID = id
	}

	a.recordInsert(ctx, feID, boOrderID)

	a.logger.Info(clientID, requestID, "Order inserted", map[string]interface{}{
		"fe_order_id": feID,
		"doc_entry":   boOrderID,
	})
	return boOrderID, nil
}

// maxReserveAttempts bounds the reserve/claim loop when other requests keep
// changing the ledger row underneath
const maxReserveAttempts = 3

// reserveOrder takes the ledger reservation for feID. The bool result is
// true when the order already exists in SAP B1; the string is then its
// DocEntry.
func (a *Adaptor) reserveOrder(ctx context.Context, feID, udf string) (string, bool, error) {
	clientID, requestID := logger.FromContext(ctx)

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		reserved, err := a.ledger.Reserve(ctx, feID)
		if err != nil {
			return "", false, err
		}
		if reserved {
			return "", false, nil
		}

		entry, err := a.ledger.Lookup(ctx, feID)
		if err != nil {
			return "", false, err
		}
		if entry == nil {
			// released between Reserve and Lookup
			continue
		}

		switch entry.Status {
		case ledger.StatusInserted:
			a.logger.Info(clientID, requestID, "Order already inserted", map[string]interface{}{
				"fe_order_id": feID,
				"doc_entry":   entry.DocEntry,
			})
			return entry.DocEntry, true, nil

		case ledger.StatusPending:
			if a.now().Sub(entry.UpdatedAt) < a.pendingTimeout {
				return "", false, fmt.Errorf("%w: order %s", ErrOrderInProgress, feID)
			}

			// A stale reservation: the previous attempt may have created the
			// order before it died.
			id, found, err := a.findDocEntry(ctx, feID, udf)
			if err != nil {
				return "", false, err
			}
			if found {
				a.logger.Warn(clientID, requestID, "Recovered order from stale reservation", map[string]interface{}{
					"fe_order_id": feID,
					"doc_entry":   id,
				})
				a.recordInsert(ctx, feID, id)
				return id, true, nil
			}
		}

		claimed, err := a.ledger.Claim(ctx, entry)
		if err != nil {
			return "", false, err
		}
		if claimed {
			return "", false, nil
		}
	}

	return "", false, fmt.Errorf("%w: order %s", ErrOrderInProgress, feID)
}

func (a *Adaptor) releaseOrder(ctx context.Context, feID string) {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.Release(ctx, feID); err != nil {
		clientID, requestID := logger.FromContext(ctx)
		a.logger.Error(clientID, requestID, "Failed to release order reservation", map[string]interface{}{
			"fe_order_id": feID,
			"error":       err.Error(),
		})
	}
}

func (a *Adaptor) recordInsert(ctx context.Context, feID, docEntry string) {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.RecordInsert(ctx, feID, docEntry); err != nil {
		clientID, requestID := logger.FromContext(ctx)
		a.logger.Error(clientID, requestID, "Failed to record inserted order", map[string]interface{}{
			"fe_order_id": feID,
			"doc_entry":   docEntry,
			"error":       err.Error(),
		})
	}
}

// buildDocument maps the front-end order onto an ORDR document. It
// resolves currency, contact person, freight and shipping type codes.
func (a *Adaptor) buildDocument(ctx context.Context, o *OrderRequest) (*servicelayer.Document, error) {
	o.BillToTelephone = TrimValue(o.BillToTelephone, maxTelephone)
	o.BillToAddress = TrimValue(o.BillToAddress, maxAddress)
	o.ShipToAddress = TrimValue(o.ShipToAddress, maxAddress)

	doc := &servicelayer.Document{
		CardCode:   o.CardCode,
		CardName:   TrimValue(o.BillToFirstName+" "+o.BillToLastName, maxCardName),
		DocDueDate: o.DocDueDate,
	}

	currency, err := a.GetMainCurrency(ctx)
	if err != nil {
		return nil, err
	}
	doc.DocCurrency = currency

	contactCode, err := a.GetContactPersonCode(ctx, o)
	if err != nil {
		return nil, err
	}
	if doc.ContactPersonCode, err = atoi("contact code", contactCode); err != nil {
		return nil, err
	}

	if o.ExpensesFreightName != "" {
		code, err := a.GetExpnsCode(ctx, o.ExpensesFreightName)
		if err != nil {
			return nil, err
		}
		expnsCode, err := atoi("freight code", code)
		if err != nil {
			return nil, err
		}
		doc.DocumentAdditionalExpenses = []servicelayer.AdditionalExpense{{
			ExpenseCode: expnsCode,
			LineTotal:   o.ExpensesLineTotal,
			TaxCode:     o.ExpensesTaxCode,
		}}
	}

	doc.DiscountPercent = o.DiscountPercent

	if o.TransportName != "" {
		code, err := a.GetTrnspCode(ctx, o.TransportName)
		if err != nil {
			return nil, err
		}
		if doc.TransportationCode, err = atoi("shipping type code", code); err != nil {
			return nil, err
		}
	}

	doc.PaymentMethod = o.PaymentMethod

	if o.FrontendIDUDF != "" {
		doc.UserFields = map[string]string{o.FrontendIDUDF: string(o.FrontendID)}
	} else {
		doc.NumAtCard = string(o.FrontendID)
	}

	billToCounty := o.BillToCounty
	if billToCounty == "" {
		billToCounty = o.BillToCountry
	}
	doc.AddressExtension = &servicelayer.AddressExtension{
		BillToStreet:  o.BillToAddress,
		BillToCity:    o.BillToCity,
		BillToZipCode: o.BillToZipCode,
		BillToState:   o.BillToState,
		BillToCounty:  billToCounty,
		BillToCountry: o.BillToCountry,
		ShipToStreet:  o.ShipToAddress,
		ShipToCity:    o.ShipToCity,
		ShipToZipCode: o.ShipToZipCode,
		ShipToState:   o.ShipToState,
		ShipToCounty:  o.ShipToCounty,
		ShipToCountry: o.ShipToCountry,
	}

	doc.DocumentLines = make([]servicelayer.DocumentLine, 0, len(o.Items))
	for _, item := range o.Items {
		doc.DocumentLines = append(doc.DocumentLines, servicelayer.DocumentLine{
			ItemCode:  item.ItemCode,
			Quantity:  item.Quantity,
			Price:     item.Price,
			TaxCode:   item.TaxCode,
			LineTotal: item.LineTotal,
		})
	}

	return doc, nil
}

// CancelOrder cancels the sales order carrying the front-end order id and
// returns its DocEntry.
func (a *Adaptor) CancelOrder(ctx context.Context, req CancelRequest) (string, error) {
	feID := string(req.FrontendID)
	if feID == "" {
		return "", fmt.Errorf("%w: fe_order_id is required", ErrInvalidRequest)
	}
	if err := validateUDF(req.FrontendIDUDF); err != nil {
		return "", err
	}

	clientID, requestID := logger.FromContext(ctx)
	a.archivePayload(ctx, feID, "cancel", req)

	boOrderID, found, err := a.findDocEntry(ctx, feID, req.FrontendIDUDF)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &OrderNotFoundError{FrontendID: feID}
	}

	docEntry, err := atoi("DocEntry", boOrderID)
	if err != nil {
		return "", err
	}

	s, err := a.Session(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Company.CancelOrder(ctx, docEntry); err != nil {
		a.logger.Error(clientID, requestID, "Failed to cancel order", map[string]interface{}{
			"fe_order_id": feID,
			"doc_entry":   boOrderID,
			"error":       err.Error(),
		})
		return "", fmt.Errorf("failed to cancel order %s: %w", feID, err)
	}

	if a.ledger != nil {
		if err := a.ledger.RecordCancel(ctx, feID, boOrderID); err != nil {
			a.logger.Error(clientID, requestID, "Failed to record cancelled order", map[string]interface{}{
				"fe_order_id": feID,
				"error":       err.Error(),
			})
		}
	}

	a.logger.Info(clientID, requestID, "Order cancelled", map[string]interface{}{
		"fe_order_id": feID,
		"doc_entry":   boOrderID,
	})
	return boOrderID, nil
}

// findDocEntry looks the order up by the UDF holding the front-end id,
// or by NumAtCard when no UDF is used.
func (a *Adaptor) findDocEntry(ctx context.Context, feID, udf string) (string, bool, error) {
	field := "NumAtCard"
	if udf != "" {
		field = udf
	}

	records, err := a.GetOrders(ctx, 1, []string{"DocEntry"}, Filter{field: {Value: feID}})
	if err != nil {
		return "", false, err
	}
	if len(records) == 0 {
		return "", false, nil
	}
	docEntry, ok := records[0].Lookup("DocEntry")
	return docEntry, ok && docEntry != "", nil
}

// archivePayload stores the request body. Failures are logged only.
func (a *Adaptor) archivePayload(ctx context.Context, feID, action string, payload interface{}) {
	if a.archive == nil {
		return
	}
	if _, ok := a.archive.(archive.Nop); ok {
		return
	}

	clientID, requestID := logger.FromContext(ctx)
	body, err := json.Marshal(payload)
	if err == nil {
		err = a.archive.Put(ctx, archive.OrderKey(feID, action, a.now()), body, "application/json")
	}
	if err != nil {
		a.logger.Warn(clientID, requestID, "Failed to archive order payload", map[string]interface{}{
			"fe_order_id": feID,
			"action":      action,
			"error":       err.Error(),
		})
	}
}

func atoi(what, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, value, err)
	}
	return n, nil
}
