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
	"sort"
	"strings"
	"time"

	"b1link/connectors/base"
)

// Condition is one field constraint. An empty Op means equality.
type Condition struct {
	Value interface{} `json:"value"`
	Op    string      `json:"op,omitempty"`
}

// Filter maps a column name to its condition. All conditions must hold.
type Filter map[string]Condition

var allowedOps = map[string]bool{
	"=":        true,
	"<>":       true,
	"!=":       true,
	"<":        true,
	"<=":       true,
	">":        true,
	">=":       true,
	"LIKE":     true,
	"NOT LIKE": true,
}

// normalizeOp upper-cases the operator and collapses inner whitespace so
// that "not  like" and "NOT LIKE" are the same operator.
func normalizeOp(op string) (string, error) {
	op = strings.ToUpper(strings.Join(strings.Fields(op), " "))
	if op == "" {
		return "=", nil
	}
	if !allowedOps[op] {
		return "", fmt.Errorf("%w: operator %q is not supported", ErrInvalidFilter, op)
	}
	return op, nil
}

// where renders the filter as "a = @w1 AND b LIKE @w2". Fields are emitted
// in sorted order so the statement text is stable.
func (f Filter) where() (string, map[string]interface{}, error) {
	params := make(map[string]interface{})
	if len(f) == 0 {
		return "", params, nil
	}

	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	clauses := make([]string, 0, len(fields))
	for i, field := range fields {
		if err := base.ValidateSQLIdentifier(field); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}

		cond := f[field]
		op, err := normalizeOp(cond.Op)
		if err != nil {
			return "", nil, err
		}

		if cond.Value == nil {
			switch op {
			case "=":
				clauses = append(clauses, field+" IS NULL")
			case "<>", "!=":
				clauses = append(clauses, field+" IS NOT NULL")
			default:
				return "", nil, fmt.Errorf("%w: operator %s cannot compare %s with null", ErrInvalidFilter, op, field)
			}
			continue
		}

		value, err := bindValue(cond.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: field %s: %v", ErrInvalidFilter, field, err)
		}

		name := fmt.Sprintf("w%d", i+1)
		params[name] = value
		clauses = append(clauses, fmt.Sprintf("%s %s @%s", field, op, name))
	}

	return strings.Join(clauses, " AND "), params, nil
}

// bindValue converts a decoded JSON value into something the driver can
// bind. Objects and arrays are refused.
func bindValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		if f, err := val.Float64(); err == nil {
			return f, nil
		}
		return val.String(), nil
	case string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// selectList renders the column list, "*" when no columns are given
func selectList(columns []string) (string, error) {
	if len(columns) == 0 {
		return "*", nil
	}
	for _, col := range columns {
		if err := base.ValidateSQLIdentifier(col); err != nil {
			return "", fmt.Errorf("%w: column: %v", ErrInvalidFilter, err)
		}
	}
	return strings.Join(columns, ", "), nil
}

// buildSelect assembles SELECT TOP n cols FROM table [WHERE ...]. A top of
// zero or less omits the TOP clause.
func buildSelect(table string, top int, columns []string, filter Filter) (string, map[string]interface{}, error) {
	cols, err := selectList(columns)
	if err != nil {
		return "", nil, err
	}

	where, params, err := filter.where()
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if top > 0 {
		fmt.Fprintf(&sb, "TOP %d ", top)
	}
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(table)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	return sb.String(), params, nil
}
