// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/loginguard/internal/config"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the config file JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.Schema()
			if err != nil {
				return err
			}
			if output == "" {
				cmd.Println(string(schema))
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return oops.Code("CLI_WRITE").With("path", output).Wrap(err)
			}
			if err := os.WriteFile(output, schema, 0o600); err != nil {
				return oops.Code("CLI_WRITE").With("path", output).Wrap(err)
			}
			cmd.Printf("Generated %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the schema to a file instead of stdout")
	return cmd
}
