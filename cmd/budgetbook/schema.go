// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

package main

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/budgetbook/budgetbook/internal/validation"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "schema [NAME]",
		Short: "Print the JSON Schemas of the API request bodies",
		Long: `Print the JSON Schema documents used to validate request bodies.
With --out, each schema is written to <dir>/<name>.schema.json instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := validation.NewRequests()
			if err != nil {
				return err
			}
			docs := requests.Documents()

			names := make([]string, 0, len(docs))
			for name := range docs {
				names = append(names, name)
			}
			slices.Sort(names)

			if len(args) == 1 {
				if _, ok := docs[args[0]]; !ok {
					return oops.Code("SCHEMA_NOT_FOUND").
						With("name", args[0]).
						Errorf("unknown schema %q (available: %v)", args[0], names)
				}
				names = []string{args[0]}
			}

			if outDir == "" {
				for _, name := range names {
					cmd.Println(string(docs[name]))
				}
				return nil
			}

			if err := os.MkdirAll(outDir, 0o750); err != nil {
				return oops.Code("SCHEMA_WRITE_FAILED").With("dir", outDir).Wrap(err)
			}
			for _, name := range names {
				outPath := filepath.Join(outDir, name+".schema.json")
				if err := os.WriteFile(outPath, docs[name], 0o600); err != nil {
					return oops.Code("SCHEMA_WRITE_FAILED").With("path", outPath).Wrap(err)
				}
				cmd.Printf("Generated %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "write schemas to this directory")
	return cmd
}
