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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"b1link/sapb1"
	"b1link/shared/logger"
)

// SearchRequest selects orders or shipments
type SearchRequest struct {
	Num         int          `json:"num"`
	Columns     []string     `json:"columns"`
	Params      sapb1.Filter `json:"params"`
	ItemColumns []string     `json:"item_columns,omitempty"`
}

// ContactSearchRequest selects contacts of one business partner
type ContactSearchRequest struct {
	Num      int                    `json:"num"`
	Columns  []string               `json:"columns"`
	CardCode string                 `json:"card_code"`
	Contact  map[string]interface{} `json:"contact"`
}

// InsertContactRequest adds a contact to a business partner
type InsertContactRequest struct {
	CardCode string        `json:"card_code"`
	Contact  sapb1.Contact `json:"contact"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, r, map[string]interface{}{
		"status":    "healthy",
		"service":   "b1link-gateway",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}, http.StatusOK)
}

func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Info(r.Context())
	s.respond(w, r, "info", info, err)
}

func (s *Server) currencyHandler(w http.ResponseWriter, r *http.Request) {
	currency, err := s.service.GetMainCurrency(r.Context())
	s.respond(w, r, "get_main_currency", map[string]string{"main_currency": currency}, err)
}

func (s *Server) searchOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "get_orders", err)
		return
	}

	orders, err := s.service.GetOrders(r.Context(), req.Num, req.Columns, req.Params)
	s.respond(w, r, "get_orders", orders, err)
}

func (s *Server) insertOrderHandler(w http.ResponseWriter, r *http.Request) {
	var order sapb1.OrderRequest
	if err := decodeBody(w, r, &order); err != nil {
		s.fail(w, r, "insert_order", err)
		return
	}

	docEntry, err := s.service.InsertOrder(r.Context(), &order)
	s.respond(w, r, "insert_order", map[string]string{"bo_order_id": docEntry}, err)
}

func (s *Server) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req sapb1.CancelRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "cancel_order", err)
		return
	}

	docEntry, err := s.service.CancelOrder(r.Context(), req)
	s.respond(w, r, "cancel_order", map[string]string{"bo_order_id": docEntry}, err)
}

func (s *Server) searchContactsHandler(w http.ResponseWriter, r *http.Request) {
	var req ContactSearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "get_contacts", err)
		return
	}
	if req.CardCode == "" {
		s.fail(w, r, "get_contacts", fmt.Errorf("%w: card_code is required", sapb1.ErrInvalidRequest))
		return
	}

	contacts, err := s.service.GetContacts(r.Context(), req.Num, req.Columns, req.CardCode, req.Contact)
	s.respond(w, r, "get_contacts", contacts, err)
}

func (s *Server) insertContactHandler(w http.ResponseWriter, r *http.Request) {
	var req InsertContactRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "insert_contact", err)
		return
	}

	code, err := s.service.InsertContact(r.Context(), req.CardCode, req.Contact)
	s.respond(w, r, "insert_contact", map[string]string{"contact_code": code}, err)
}

func (s *Server) resolveContactHandler(w http.ResponseWriter, r *http.Request) {
	var order sapb1.OrderRequest
	if err := decodeBody(w, r, &order); err != nil {
		s.fail(w, r, "get_contact_person_code", err)
		return
	}
	if order.CardCode == "" {
		s.fail(w, r, "get_contact_person_code", fmt.Errorf("%w: card_code is required", sapb1.ErrInvalidRequest))
		return
	}

	code, err := s.service.GetContactPersonCode(r.Context(), &order)
	s.respond(w, r, "get_contact_person_code", map[string]string{"contact_code": code}, err)
}

func (s *Server) expenseCodeHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	code, err := s.service.GetExpnsCode(r.Context(), name)
	s.respond(w, r, "get_expns_code", map[string]string{"expns_code": code}, err)
}

func (s *Server) transportCodeHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	code, err := s.service.GetTrnspCode(r.Context(), name)
	s.respond(w, r, "get_trnsp_code", map[string]string{"trnsp_code": code}, err)
}

func (s *Server) searchShipmentsHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, "get_shipments", err)
		return
	}

	shipments, err := s.service.GetShipments(r.Context(), req.Num, req.Columns, req.Params, req.ItemColumns)
	s.respond(w, r, "get_shipments", shipments, err)
}

// respond writes data on success or the mapped error
func (s *Server) respond(w http.ResponseWriter, r *http.Request, operation string, data interface{}, err error) {
	if err != nil {
		s.fail(w, r, operation, err)
		return
	}
	observeOperation(operation, nil)
	writeJSONResponse(w, r, data, http.StatusOK)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	observeOperation(operation, err)

	status := errorStatus(err)
	clientID, requestID := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.ErrorWithCode(clientID, requestID, "SAP B1 operation failed", status, err, map[string]interface{}{
			"operation": operation,
		})
	} else {
		s.logger.Warn(clientID, requestID, "Rejected request", map[string]interface{}{
			"operation": operation,
			"status":    status,
			"error":     err.Error(),
		})
	}
	writeJSONError(w, r, err.Error(), status)
}

// decodeBody reads a JSON body keeping numbers as json.Number so that
// filter values reach SQL Server unrounded.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: request body is empty", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
