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

// Package main implements b1ctl, a command-line client for one SAP B1
// company. It reads the same SAPB1_* settings as the gateway.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"b1link/connectors/config"
	"b1link/sapb1"
	"b1link/shared/logger"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "b1ctl",
		Short:         "SAP Business One connector CLI",
		Long:          `b1ctl queries and updates one SAP Business One company through the Service Layer and the company database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(currencyCmd())
	rootCmd.AddCommand(ordersCmd())
	rootCmd.AddCommand(shipmentsCmd())
	rootCmd.AddCommand(contactsCmd())
	rootCmd.AddCommand(lookupCmd())

	return rootCmd
}

// openAdaptor loads settings the way the gateway does
func openAdaptor(ctx context.Context) (*sapb1.Adaptor, error) {
	var secrets config.SecretsManager
	if sm, err := config.NewAWSSecretsManager(ctx, config.AWSSecretsManagerOptions{}); err == nil {
		secrets = sm
	}

	settings, err := config.Load(ctx, secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to load SAP B1 settings: %w", err)
	}

	return sapb1.New(settings,
		sapb1.WithLogger(logger.New("b1ctl")),
		sapb1.WithCache(sapb1.NewMemoryCache()),
	), nil
}

// withAdaptor opens a session-backed adaptor, runs fn and closes the
// session afterwards.
func withAdaptor(cmd *cobra.Command, fn func(ctx context.Context, a *sapb1.Adaptor) (interface{}, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	adaptor, err := openAdaptor(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = adaptor.Close(ctx) }()

	result, err := fn(ctx, adaptor)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
