// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/l5-scheduler/l5/internal/secrets"
	l5err "github.com/l5-scheduler/l5/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// secretService is the keyring service from config, falling back to "l5".
func secretService() string {
	if s := strings.TrimSpace(viper.GetString("secrets.service")); s != "" {
		return s
	}
	return secrets.DefaultService
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long:  "List, set and delete secrets stored under the L5 service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretListCmd(),
		newSecretSetCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret; the value is read from stdin when omitted",
		Long: fmt.Sprintf("Store a secret under the L5 service. Known names: %s.",
			strings.Join(secrets.CredentialKeys, ", ")),
		Args: cobra.RangeArgs(1, 2),
		RunE: runSecretSet,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory()
	keys, err := store.List(secretService())
	if err != nil {
		return l5err.Errorf(l5err.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return l5err.Errorf(l5err.CodeCLIInputInvalid, "reading value for %q from stdin: %w", name, err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return l5err.Errorf(l5err.CodeCLIInputInvalid, "secret %q must not be empty", name)
	}

	if err := secretStoreFactory().Store(secretService(), name, value); err != nil {
		return l5err.Errorf(l5err.CodeSecretStoreFailure, "storing secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s\n", name)
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	if err := store.Delete(secretService(), name); err != nil {
		if l5err.HasCode(err, l5err.CodeSecretNotFound) {
			return l5err.Errorf(l5err.CodeSecretNotFound, "secret %q not found", name)
		}
		return l5err.Errorf(l5err.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
