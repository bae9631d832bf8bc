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
	"fmt"
)

// GetMainCurrency returns OADM.MainCurncy, the local currency of the company
func (a *Adaptor) GetMainCurrency(ctx context.Context) (string, error) {
	return a.cached(ctx, "main_currency", func(ctx context.Context) (string, error) {
		return a.lookupCode(ctx, "SELECT MainCurncy FROM dbo.OADM", nil, "MainCurncy", "main currency")
	})
}

// GetExpnsCode returns the freight code (OEXD.ExpnsCode) for a freight name
func (a *Adaptor) GetExpnsCode(ctx context.Context, expnsName string) (string, error) {
	return a.cached(ctx, "expns:"+expnsName, func(ctx context.Context) (string, error) {
		return a.lookupCode(ctx,
			"SELECT TOP 1 ExpnsCode FROM dbo.OEXD WHERE ExpnsName = @name",
			map[string]interface{}{"name": expnsName},
			"ExpnsCode", fmt.Sprintf("freight %q", expnsName))
	})
}

// GetTrnspCode returns the shipping type code (OSHP.TrnspCode) for a
// shipping type name
func (a *Adaptor) GetTrnspCode(ctx context.Context, trnspName string) (string, error) {
	return a.cached(ctx, "trnsp:"+trnspName, func(ctx context.Context) (string, error) {
		return a.lookupCode(ctx,
			"SELECT TOP 1 TrnspCode FROM dbo.OSHP WHERE TrnspName = @name",
			map[string]interface{}{"name": trnspName},
			"TrnspCode", fmt.Sprintf("shipping type %q", trnspName))
	})
}

func (a *Adaptor) lookupCode(ctx context.Context, statement string, params map[string]interface{}, column, what string) (string, error) {
	records, err := a.query(ctx, statement, params)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	value, ok := records[0].Lookup(column)
	if !ok {
		return "", fmt.Errorf("%s: column %s missing from result", what, column)
	}
	return value, nil
}
