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
	"strconv"
	"strings"
)

// DefaultShipmentCount is used when GetShipments is called with num <= 0
const DefaultShipmentCount = 100

// GetShipments returns deliveries (ODLN) matching filter, each with its
// lines (DLN1). DocEntry is always part of the header columns.
func (a *Adaptor) GetShipments(ctx context.Context, num int, columns []string, filter Filter, itemColumns []string) ([]Shipment, error) {
	if num <= 0 {
		num = DefaultShipmentCount
	}
	if len(columns) > 0 && !containsFold(columns, "DocEntry") {
		columns = append(append([]string(nil), columns...), "DocEntry")
	}

	statement, params, err := buildSelect("dbo.ODLN", num, columns, filter)
	if err != nil {
		return nil, err
	}
	itemCols, err := selectList(itemColumns)
	if err != nil {
		return nil, err
	}

	headers, err := a.query(ctx, statement, params)
	if err != nil {
		return nil, err
	}

	shipments := make([]Shipment, 0, len(headers))
	for _, header := range headers {
		docEntry, _ := header.Lookup("DocEntry")
		items, err := a.shipmentItems(ctx, docEntry, itemCols)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, Shipment{Fields: header, Items: items})
	}
	return shipments, nil
}

func (a *Adaptor) shipmentItems(ctx context.Context, docEntry, cols string) ([]Record, error) {
	var key interface{} = docEntry
	if n, err := strconv.ParseInt(docEntry, 10, 64); err == nil {
		key = n
	}
	return a.query(ctx, "SELECT "+cols+" FROM dbo.DLN1 WHERE DocEntry = @DocEntry",
		map[string]interface{}{"DocEntry": key})
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
