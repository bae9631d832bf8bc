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
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilter is returned for unknown operators, bad field names
	// and values that cannot be bound as SQL parameters.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidRequest is returned when an order or contact payload is
	// missing required fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOrderInProgress is returned when another request is still
	// inserting the same front-end order.
	ErrOrderInProgress = errors.New("order insert in progress")
)

// OrderNotFoundError is returned by CancelOrder when no sales order carries
// the front-end order id.
type OrderNotFoundError struct {
	FrontendID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("Order %s is not found.", e.FrontendID)
}

// Is makes errors.Is(err, ErrNotFound) match
func (e *OrderNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
