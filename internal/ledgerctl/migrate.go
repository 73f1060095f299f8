package ledgerctl

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/radieske/noloss-ledger-poc/internal/shared/db"
)

//go:embed schema.sql
var schema string

func newMigrateCmd(defaultDSN string) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema (idempotent)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pg, err := db.ConnectPostgres(dsn)
			if err != nil {
				return err
			}
			defer pg.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := Migrate(ctx, pg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", defaultDSN, "Postgres DSN")
	return cmd
}

// Migrate aplica o schema embutido numa única transação
func Migrate(ctx context.Context, pg *sql.DB) error {
	tx, err := pg.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit()
}
