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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"b1link/sapb1"
)

// queryFlags are shared by the read commands
type queryFlags struct {
	num     int
	columns []string
	where   []string
}

func (q *queryFlags) register(cmd *cobra.Command, defaultNum int) {
	cmd.Flags().IntVarP(&q.num, "num", "n", defaultNum, "Maximum number of rows")
	cmd.Flags().StringSliceVarP(&q.columns, "columns", "c", nil, "Columns to return (default: all)")
	cmd.Flags().StringArrayVarP(&q.where, "where", "w", nil, "Condition as field<op>value; ops: = != <> < <= > >= ~ (LIKE) !~ (NOT LIKE)")
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the connected company",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				return a.Info(ctx)
			})
		},
	}
}

func currencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "currency",
		Short: "Show the company's main currency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				currency, err := a.GetMainCurrency(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]string{"main_currency": currency}, nil
			})
		},
	}
}

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Search, insert and cancel sales orders",
	}

	cmd.AddCommand(ordersListCmd())
	cmd.AddCommand(ordersInsertCmd())
	cmd.AddCommand(ordersCancelCmd())

	return cmd
}

func ordersListCmd() *cobra.Command {
	var q queryFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sales orders",
		Long: `List sales orders from ORDR.

Examples:
  b1ctl orders list --where NumAtCard=1001
  b1ctl orders list -n 20 -c DocEntry,DocNum,CardCode --where "DocTotal>=500"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseWhere(q.where)
			if err != nil {
				return err
			}
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				return a.GetOrders(ctx, q.num, q.columns, filter)
			})
		},
	}
	q.register(cmd, sapb1.DefaultOrderCount)

	return cmd
}

func ordersInsertCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a sales order from a JSON file",
		Long: `Insert a sales order. The file holds the same JSON body the gateway
accepts on POST /api/v1/orders. Use "-" to read standard input.

Examples:
  b1ctl orders insert --file order-1001.json
  cat order.json | b1ctl orders insert --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			order, err := readOrder(cmd, file)
			if err != nil {
				return err
			}
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				docEntry, err := a.InsertOrder(ctx, order)
				if err != nil {
					return nil, err
				}
				return map[string]string{"bo_order_id": docEntry}, nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Order JSON file (required)")

	return cmd
}

func readOrder(cmd *cobra.Command, file string) (*sapb1.OrderRequest, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open order file: %w", err)
		}
		defer f.Close()
		r = f
	}

	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var order sapb1.OrderRequest
	if err := decoder.Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to parse order: %w", err)
	}
	return &order, nil
}

func ordersCancelCmd() *cobra.Command {
	var (
		feOrderID string
		udf       string
	)

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a sales order by its front-end order id",
		Long: `Cancel a sales order. The order is found through NumAtCard, or through
the given user-defined field.

Examples:
  b1ctl orders cancel --fe-order-id 1001
  b1ctl orders cancel --fe-order-id 1001 --udf U_FeOrderId`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if feOrderID == "" {
				return fmt.Errorf("--fe-order-id is required")
			}
			req := sapb1.CancelRequest{FrontendID: sapb1.FrontendID(feOrderID), FrontendIDUDF: udf}
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				docEntry, err := a.CancelOrder(ctx, req)
				if err != nil {
					return nil, err
				}
				return map[string]string{"bo_order_id": docEntry}, nil
			})
		},
	}

	cmd.Flags().StringVar(&feOrderID, "fe-order-id", "", "Front-end order id (required)")
	cmd.Flags().StringVar(&udf, "udf", "", "User-defined field holding the front-end order id")

	return cmd
}

func shipmentsCmd() *cobra.Command {
	var (
		q           queryFlags
		itemColumns []string
	)

	cmd := &cobra.Command{
		Use:   "shipments",
		Short: "List deliveries with their lines",
		Long: `List deliveries from ODLN, each with its DLN1 lines.

Examples:
  b1ctl shipments --where "DocDate>=2024-01-01" --item-columns ItemCode,Quantity,TrackNo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseWhere(q.where)
			if err != nil {
				return err
			}
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				return a.GetShipments(ctx, q.num, q.columns, filter, itemColumns)
			})
		},
	}
	q.register(cmd, sapb1.DefaultShipmentCount)
	cmd.Flags().StringSliceVar(&itemColumns, "item-columns", nil, "Line columns to return (default: all)")

	return cmd
}

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List and add business partner contacts",
	}

	cmd.AddCommand(contactsListCmd())
	cmd.AddCommand(contactsAddCmd())

	return cmd
}

func contactsListCmd() *cobra.Command {
	var (
		q        queryFlags
		cardCode string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts of a business partner",
		Long: `List contacts (OCPR) of one business partner.

Examples:
  b1ctl contacts list --card-code C20000 --where "E_MailL=jane@example.com"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cardCode == "" {
				return fmt.Errorf("--card-code is required")
			}
			filter, err := parseWhere(q.where)
			if err != nil {
				return err
			}
			contact := make(map[string]interface{}, len(filter))
			for field, cond := range filter {
				if cond.Op != "=" {
					return fmt.Errorf("contacts only support equality conditions, got %s on %s", cond.Op, field)
				}
				contact[field] = cond.Value
			}
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				return a.GetContacts(ctx, q.num, q.columns, cardCode, contact)
			})
		},
	}
	q.register(cmd, 1)
	cmd.Flags().StringVar(&cardCode, "card-code", "", "Business partner code (required)")

	return cmd
}

func contactsAddCmd() *cobra.Command {
	var (
		cardCode string
		contact  sapb1.Contact
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact to a business partner",
		Long: `Add a contact employee and print its code.

Examples:
  b1ctl contacts add --card-code C20000 --first-name Jane --last-name Doe --email jane@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cardCode == "" {
				return fmt.Errorf("--card-code is required")
			}
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				code, err := a.InsertContact(ctx, cardCode, contact)
				if err != nil {
					return nil, err
				}
				return map[string]string{"contact_code": code}, nil
			})
		},
	}

	cmd.Flags().StringVar(&cardCode, "card-code", "", "Business partner code (required)")
	cmd.Flags().StringVar(&contact.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&contact.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&contact.Tel1, "phone", "", "Telephone")
	cmd.Flags().StringVar(&contact.Email, "email", "", "E-mail address")
	cmd.Flags().StringVar(&contact.Address, "address", "", "Address")

	return cmd
}

func lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Resolve freight expense and shipping type codes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "expense [name]",
		Short: "Freight expense code (OEXD) by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				code, err := a.GetExpnsCode(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return map[string]string{"expns_code": code}, nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "transport [name]",
		Short: "Shipping type code (OSHP) by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdaptor(cmd, func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error) {
				code, err := a.GetTrnspCode(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return map[string]string{"trnsp_code": code}, nil
			})
		},
	})

	return cmd
}
