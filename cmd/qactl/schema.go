package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/qa-ensemble-retrieval/pkg/postgres"
)

var schemaApply bool

func init() {
	schemaCmd.Flags().BoolVar(&schemaApply, "apply", false, "create the tables in the configured database")
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print or apply the corpus database schema",
	Long: `Print the DDL for the category, question and answer tables. With --apply
the statements run in one transaction against the configured database;
existing tables are left untouched.

Examples:
  qactl schema > schema.sql
  qactl schema --apply`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, _ []string) error {
	if !schemaApply {
		_, err := fmt.Fprint(cmd.OutOrStdout(), corpus.Schema)
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pg, err := postgres.New(cmd.Context(), cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	err = pg.InTx(cmd.Context(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(cmd.Context(), corpus.Schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s\n", cfg.Postgres.Database)
	return nil
}
