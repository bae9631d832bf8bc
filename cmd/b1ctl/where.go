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

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"b1link/sapb1"
)

// whereOps maps --where operator tokens to filter operators. Two-character
// tokens come first so that "<=" is not read as "<".
var whereOps = []struct {
	token string
	op    string
}{
	{"!~", "NOT LIKE"},
	{"<>", "<>"},
	{"!=", "!="},
	{"<=", "<="},
	{">=", ">="},
	{"~", "LIKE"},
	{"=", "="},
	{"<", "<"},
	{">", ">"},
}

// parseWhere turns expressions like DocNum>=100, CardName~C% or
// U_FeOrderId=null into a filter. Numbers are sent as numbers unless
// quoted.
func parseWhere(exprs []string) (sapb1.Filter, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	filter := make(sapb1.Filter, len(exprs))
	for _, expr := range exprs {
		field, cond, err := parseCondition(expr)
		if err != nil {
			return nil, err
		}
		if _, dup := filter[field]; dup {
			return nil, fmt.Errorf("field %s given more than once in --where", field)
		}
		filter[field] = cond
	}
	return filter, nil
}

func parseCondition(expr string) (string, sapb1.Condition, error) {
	i := strings.IndexAny(expr, "!~<>=")
	if i < 0 {
		return "", sapb1.Condition{}, fmt.Errorf("invalid --where %q: missing operator", expr)
	}

	field := strings.TrimSpace(expr[:i])
	if field == "" {
		return "", sapb1.Condition{}, fmt.Errorf("invalid --where %q: missing field", expr)
	}

	rest := expr[i:]
	for _, op := range whereOps {
		if strings.HasPrefix(rest, op.token) {
			value := strings.TrimSpace(rest[len(op.token):])
			return field, sapb1.Condition{Value: whereValue(value), Op: op.op}, nil
		}
	}
	return "", sapb1.Condition{}, fmt.Errorf("invalid --where %q: unknown operator", expr)
}

func whereValue(raw string) interface{} {
	if len(raw) >= 2 {
		if q := raw[0]; (q == '"' || q == '\'') && raw[len(raw)-1] == q {
			return raw[1 : len(raw)-1]
		}
	}
	if strings.EqualFold(raw, "null") {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal([]byte(raw), &n); err == nil && raw != "" {
		return n
	}
	return raw
}
