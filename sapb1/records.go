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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is how date and datetime columns are rendered
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one row with every value rendered as a string. NULL becomes "".
type Record map[string]string

// Lookup finds a column ignoring case. SQL Server returns column names as
// written in the select list, which callers do not always match.
func (r Record) Lookup(column string) (string, bool) {
	if v, ok := r[column]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return "", false
}

func toRecord(row map[string]interface{}) Record {
	rec := make(Record, len(row))
	for k, v := range row {
		rec[k] = formatValue(v)
	}
	return rec
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(TimestampLayout)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Shipment is a delivery header (ODLN) with its lines (DLN1)
type Shipment struct {
	Fields Record
	Items  []Record
}

// MarshalJSON writes the header columns with the lines under "items"
func (s Shipment) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Fields)+1)
	for k, v := range s.Fields {
		out[k] = v
	}
	items := s.Items
	if items == nil {
		items = []Record{}
	}
	out["items"] = items
	return json.Marshal(out)
}

// TrimValue cuts value to at most max characters
func TrimValue(value string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(value) <= max {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
